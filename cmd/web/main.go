package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"moodwave/internal/config"
	"moodwave/internal/predict"
	"moodwave/internal/queue"
	"moodwave/internal/session"
	"moodwave/internal/web"
	"moodwave/pkg/cache"
	"moodwave/pkg/logger"
	"moodwave/pkg/resilience"

	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}

	// Initialize logger
	if err := logger.Init(cfg.Log.Debug); err != nil {
		panic("Failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	logger.Info("Config loaded successfully")
	logger.Info("Starting moodwave web service",
		zap.String("api_url", cfg.API.BaseURL),
		zap.String("session_store", cfg.Session.Store))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore := newSessionStore(ctx, cfg)
	defer closeStore()

	var recorder session.Recorder
	if cfg.JournalEnabled() {
		rabbitMQ := dialRabbitMQ(ctx, cfg.RabbitMQ.URL)
		defer rabbitMQ.Close()

		recorder = queue.NewJournal(rabbitMQ)
		logger.Info("Analysis journal enabled")
	}

	controller := session.NewController(store, newPredictClient(cfg), recorder,
		session.WithStaleAfter(cfg.Session.LoadingTimeout))

	server := web.NewServer(controller, web.Options{
		CookieName:   cfg.Session.CookieName,
		CookieSecure: cfg.Session.CookieSecure,
		SessionTTL:   cfg.Session.TTL,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Start(cfg.Server.Addr); err != nil {
			logger.Error("HTTP server stopped", zap.Error(err))
			cancel()
		}
	}()

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shut down HTTP server", zap.Error(err))
	}

	logger.Info("Web service shutdown complete")
}

func newPredictClient(cfg *config.Config) *predict.Client {
	var opts []predict.Option
	if cfg.API.BreakerFailures > 0 {
		opts = append(opts, predict.WithCircuitBreaker(resilience.NewCircuitBreaker(cfg.API.BreakerFailures, cfg.API.BreakerCooldown)))
	}
	if cfg.API.Timeout > 0 {
		opts = append(opts, predict.WithTimeout(cfg.API.Timeout))
	}
	if cfg.API.RateLimit > 0 {
		opts = append(opts, predict.WithRateLimiter(resilience.NewRateLimiter(cfg.API.RateLimit, cfg.API.RateInterval)))
	}

	client := predict.NewClient(cfg.API.BaseURL, opts...)
	logger.Info("Predict client initialized", zap.String("endpoint", client.Endpoint()))

	return client
}

func newSessionStore(ctx context.Context, cfg *config.Config) (session.Store, func()) {
	if cfg.Session.Store != config.SessionStoreRedis {
		return session.NewMemoryStore(cfg.Session.TTL), func() {}
	}

	var redisCache *cache.RedisCache
	err := resilience.Retry(ctx, retryConfig("redis"), func(ctx context.Context) error {
		var err error
		redisCache, err = cache.NewRedisCache(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		return err
	})
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}

	logger.Info("Redis cache connection established")

	return session.NewCacheStore(redisCache, cfg.Session.TTL), func() {
		redisCache.Close()
	}
}

func dialRabbitMQ(ctx context.Context, url string) *queue.RabbitMQ {
	var rabbitMQ *queue.RabbitMQ
	err := resilience.Retry(ctx, retryConfig("rabbitmq"), func(ctx context.Context) error {
		var err error
		rabbitMQ, err = queue.NewRabbitMQ(url)
		return err
	})
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}

	logger.Info("RabbitMQ connection established")
	return rabbitMQ
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
