// cmd/historian drains finished matches from Redis into Postgres.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/codearena/internal/cache"
	"github.com/jason-s-yu/codearena/internal/config"
	"github.com/jason-s-yu/codearena/internal/database"
	"github.com/jason-s-yu/codearena/internal/historian"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Load()
	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	if cfg.IsProduction() {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatalf("historian exited: %v", err)
	}
	logger.Info("Historian shutdown complete.")
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	if cfg.RedisAddr == "" || cfg.DatabaseURL == "" {
		return errors.New("REDIS_ADDR and DATABASE_URL are required")
	}

	rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer rdb.Close()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	matches := database.NewMatchStore(pool)
	if err := matches.EnsureSchema(ctx); err != nil {
		return err
	}

	svc := historian.New(
		cache.NewResultQueue(rdb, cfg.ResultsQueueName),
		matches,
		cfg.HistorianBatchSize,
		cfg.HistorianFlush,
		logger,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return svc.Run(gctx) })
	return g.Wait()
}
