// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/codearena/internal/broadcast"
	"github.com/jason-s-yu/codearena/internal/cache"
	"github.com/jason-s-yu/codearena/internal/challenge"
	"github.com/jason-s-yu/codearena/internal/config"
	"github.com/jason-s-yu/codearena/internal/evaluator"
	"github.com/jason-s-yu/codearena/internal/handlers"
	"github.com/jason-s-yu/codearena/internal/invite"
	"github.com/jason-s-yu/codearena/internal/matchmaking"
	"github.com/jason-s-yu/codearena/internal/registry"
	"github.com/jason-s-yu/codearena/internal/room"
	"github.com/jason-s-yu/codearena/internal/session"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const memoEntries = 1024

func main() {
	cfg := config.Load()
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatalf("server exited: %v", err)
	}
	logger.Info("Server shutdown complete.")
}

func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Warnf("unknown LOG_LEVEL %q, using info", cfg.LogLevel)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if cfg.IsProduction() {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

func newEvaluator(cfg *config.Config, logger *logrus.Logger) *evaluator.Guard {
	var base evaluator.Evaluator = evaluator.NewRuleEvaluator()
	if cfg.EvaluatorURL != "" {
		logger.Infof("Using remote evaluator at %s", cfg.EvaluatorURL)
		base = evaluator.NewHTTPEvaluator(cfg.EvaluatorURL)
	}
	return evaluator.NewGuard(evaluator.NewMemo(base, memoEntries), cfg.EvaluationTimeout, logger)
}

func newInviteIssuer(cfg *config.Config) (*invite.Issuer, error) {
	if cfg.InvitePrivateKeyPath != "" && cfg.InvitePublicKeyPath != "" {
		return invite.NewFromPath(cfg.InvitePrivateKeyPath, cfg.InvitePublicKeyPath, cfg.InviteTokenTTL)
	}
	return invite.New(cfg.InviteTokenTTL)
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	catalog, err := challenge.LoadFile(cfg.ChallengesFile)
	if err != nil {
		return err
	}
	issuer, err := newInviteIssuer(cfg)
	if err != nil {
		return err
	}

	var publisher room.ResultPublisher
	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		publisher = cache.NewResultQueue(rdb, cfg.ResultsQueueName)
		logger.Infof("Publishing match results to Redis list %q", cfg.ResultsQueueName)
	} else {
		logger.Info("REDIS_ADDR not set; match history is not recorded")
	}

	gateway := broadcast.NewGateway(logger)
	reg := registry.New(logger)
	rooms := room.NewStore(room.Deps{
		Gateway:   gateway,
		Catalog:   catalog,
		Evaluator: newEvaluator(cfg, logger),
		Publisher: publisher,
		Invites:   issuer,
		Presence:  reg,
		Limits: room.Limits{
			DefaultTimeLimit: cfg.DefaultTimeLimitSec,
			MinTimeLimit:     cfg.MinTimeLimitSec,
			MaxTimeLimit:     cfg.MaxTimeLimitSec,
			Tick:             cfg.CountdownTick,
		},
		Logger: logger,
	})
	queue := matchmaking.NewQueue(rooms, logger)
	coord := session.New(reg, queue, rooms, gateway, issuer, logger)

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: handlers.NewRouter(handlers.RouterDeps{
			Base:           ctx,
			Logger:         logger,
			Coordinator:    coord,
			Rooms:          rooms,
			Challenges:     catalog,
			AllowedOrigins: cfg.AllowedOrigins,
			OnlineCount:    reg.Count,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("Running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	coord.Wait()
	rooms.Shutdown()
	return err
}
