package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"moodwave/internal/config"
	"moodwave/internal/journal"
	"moodwave/internal/queue"
	"moodwave/internal/storage"
	"moodwave/pkg/logger"
	"moodwave/pkg/resilience"

	"go.uber.org/zap"
)

func main() {
	resetDB := flag.Bool("reset-db", false, "Reset database by dropping all tables and re-running migrations")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.Log.Debug); err != nil {
		panic("Failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	logger.Info("Config loaded successfully")
	logger.Info("Starting moodwave journal service")

	if cfg.Postgres.DSN == "" {
		logger.Fatal("POSTGRES_DSN is required")
	}
	if !cfg.JournalEnabled() {
		logger.Fatal("RABBITMQ_URL is required")
	}

	if *resetDB {
		logger.Info("Resetting database...")
		if err := storage.ResetMigrations(cfg.Postgres.DSN); err != nil {
			logger.Fatal("Failed to reset database", zap.Error(err))
		}
		logger.Info("Database reset completed successfully")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var db *storage.PostgresStorage
	err = resilience.Retry(ctx, retryConfig("postgres"), func(ctx context.Context) error {
		var err error
		db, err = storage.NewPostgresStorage(ctx, cfg.Postgres.DSN)
		return err
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("Database connection established")

	var rabbitMQ *queue.RabbitMQ
	err = resilience.Retry(ctx, retryConfig("rabbitmq"), func(ctx context.Context) error {
		var err error
		rabbitMQ, err = queue.NewRabbitMQ(cfg.RabbitMQ.URL)
		return err
	})
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer rabbitMQ.Close()

	logger.Info("RabbitMQ connection established")

	processor := journal.NewProcessor(db)

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := rabbitMQ.Consume(ctx, queue.QueueNameAnalyses, processor.ProcessAnalysis); err != nil {
			logger.Error("Failed to consume messages", zap.Error(err))
			cancel()
		}
	}()

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	<-done
	logger.Info("Journal service shutdown complete")
}

func retryConfig(dependency string) *resilience.RetryConfig {
	rc := resilience.DefaultRetryConfig()
	rc.OnRetry = func(attempt int, err error, wait time.Duration) {
		logger.Warn("Dependency not ready, retrying",
			zap.String("dependency", dependency),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	}
	return rc
}
