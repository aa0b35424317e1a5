package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/harryospicon/catarse/internal/balance"
	"github.com/harryospicon/catarse/internal/config"
	"github.com/harryospicon/catarse/internal/infra"
	"github.com/harryospicon/catarse/internal/logging"
	"github.com/harryospicon/catarse/internal/notification"
	"github.com/harryospicon/catarse/internal/posting"
	"github.com/harryospicon/catarse/internal/server"
	"github.com/harryospicon/catarse/internal/user"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.AppEnv, cfg.LogLevel)

	ctx := context.Background()

	db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	store := balance.NewPostgresStore(db)
	if err := store.Migrate(ctx); err != nil {
		logger.Error("migrate balance schema", "error", err)
		os.Exit(1)
	}

	cache, err := infra.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("connect redis", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := cache.Close(); err != nil {
			logger.Warn("close redis", "error", err)
		}
	}()

	var notifier notification.Notifier = notification.NewLoggerNotifier(logger)
	if cfg.KafkaEnabled() {
		writer, err := infra.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			logger.Error("configure kafka", "error", err)
			os.Exit(1)
		}
		kafkaNotifier := notification.NewKafkaNotifier(writer)
		defer func() {
			if err := kafkaNotifier.Close(); err != nil {
				logger.Warn("close kafka writer", "error", err)
			}
		}()
		notifier = kafkaNotifier
	}

	srv, err := server.New(cfg, db, cache, notifier, logger)
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	// The sweeper reverses stale refund credits in the background. It only
	// touches the balance store, so it gets its own slim engine.
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	sweepSvc := posting.NewService(posting.Deps{
		Store:    store,
		Users:    user.NewPostgresRepository(db),
		Notifier: notifier,
		Logger:   logging.Component(logger, "sweeper"),
	})
	sweeper := posting.NewSweeper(sweepSvc, cfg.SweepInterval, logging.Component(logger, "sweeper"))
	go sweeper.Run(sweepCtx)

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	stopSweep()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}
