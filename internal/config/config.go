// internal/config/config.go
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable of the server and the historian.
type Config struct {
	Port     string
	Env      string
	LogLevel string

	DefaultTimeLimitSec int
	MinTimeLimitSec     int
	MaxTimeLimitSec     int
	CountdownTick       time.Duration

	EvaluationTimeout time.Duration
	EvaluatorURL      string
	ChallengesFile    string

	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	ResultsQueueName string

	DatabaseURL        string
	HistorianBatchSize int
	HistorianFlush     time.Duration

	InviteTokenTTL       time.Duration
	InvitePrivateKeyPath string
	InvitePublicKeyPath  string
	AllowedOrigins       []string
}

// Load reads an optional .env file and then the environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("CODEARENA_ENV", "dev"),
		LogLevel: getEnv("LOG_LEVEL", ""),

		DefaultTimeLimitSec: getEnvInt("DEFAULT_TIME_LIMIT_SEC", 300),
		MinTimeLimitSec:     getEnvInt("MIN_TIME_LIMIT_SEC", 30),
		MaxTimeLimitSec:     getEnvInt("MAX_TIME_LIMIT_SEC", 3600),
		CountdownTick:       getEnvDuration("COUNTDOWN_TICK", time.Second),

		EvaluationTimeout: getEnvDuration("EVALUATION_TIMEOUT", 10*time.Second),
		EvaluatorURL:      getEnv("EVALUATOR_URL", ""),
		ChallengesFile:    getEnv("CHALLENGES_FILE", ""),

		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		ResultsQueueName: getEnv("RESULTS_QUEUE_NAME", "codearena_results"),

		DatabaseURL:        getEnv("DATABASE_URL", ""),
		HistorianBatchSize: getEnvInt("HISTORIAN_BATCH_SIZE", 20),
		HistorianFlush:     time.Duration(getEnvInt("HISTORIAN_FLUSH_MS", 500)) * time.Millisecond,

		InviteTokenTTL:       getEnvDuration("INVITE_TOKEN_TTL", 24*time.Hour),
		InvitePrivateKeyPath: getEnv("INVITE_PRIVATE_KEY", ""),
		InvitePublicKeyPath:  getEnv("INVITE_PUBLIC_KEY", ""),
		AllowedOrigins:       splitList(getEnv("ALLOWED_ORIGINS", "*")),
	}
	if cfg.LogLevel == "" {
		if cfg.IsProduction() {
			cfg.LogLevel = "info"
		} else {
			cfg.LogLevel = "debug"
		}
	}
	return cfg
}

// IsProduction reports whether CODEARENA_ENV selects production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

// getEnvDuration accepts Go durations ("750ms") or plain seconds ("10").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	s := getEnv(key, "")
	if s == "" {
		return fallback
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second
	}
	log.Printf("config: could not parse %s=%q, using %s", key, s, fallback)
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
