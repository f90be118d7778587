package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/halcyon-wellness/storefront-api/pkg/config"
	"github.com/halcyon-wellness/storefront-api/pkg/db"
	"github.com/halcyon-wellness/storefront-api/pkg/logger"
	"github.com/halcyon-wellness/storefront-api/pkg/migrate"
	"github.com/halcyon-wellness/storefront-api/pkg/outbox"
	"github.com/halcyon-wellness/storefront-api/pkg/pubsub"
)

func main() {
	drain := flag.Bool("drain", false, "publish the current backlog and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "outbox-publisher"})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: "outbox-publisher",
		Environment: cfg.App.Env,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg, *drain); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(context.Background(), "outbox publisher stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger, drain bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	dispatcher, err := outbox.NewDispatcher(outbox.DispatcherParams{
		DB:           dbClient,
		Repository:   outbox.NewRepository(dbClient.DB()),
		Publisher:    pubsubClient,
		Topics:       outbox.TopicsFromConfig(cfg.PubSub),
		Logger:       logg,
		BatchSize:    cfg.Outbox.BatchSize,
		MaxAttempts:  cfg.Outbox.MaxAttempts,
		PollInterval: time.Duration(cfg.Outbox.PollIntervalMS) * time.Millisecond,
	})
	if err != nil {
		return err
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"batch_size":   cfg.Outbox.BatchSize,
		"max_attempts": cfg.Outbox.MaxAttempts,
		"drain":        drain,
	})
	logg.Info(ctx, "starting outbox publisher")

	if drain {
		return drainBacklog(ctx, logg, dispatcher)
	}
	err = dispatcher.Run(ctx)
	logg.Info(ctx, "outbox publisher shutting down gracefully")
	return err
}

// drainBacklog publishes batches until one comes back empty. Failing rows are
// retried until they run out of attempts.
func drainBacklog(ctx context.Context, logg *logger.Logger, dispatcher *outbox.Dispatcher) error {
	total := 0
	for {
		handled, err := dispatcher.ProcessBatch(ctx)
		if err != nil {
			return err
		}
		if handled == 0 {
			logg.Info(logg.WithField(ctx, "handled", total), "outbox backlog drained")
			return nil
		}
		total += handled
	}
}
