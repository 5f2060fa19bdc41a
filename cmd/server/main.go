package main

import (
	"context"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/tazhibayda/account-service/internal/config"
	api "github.com/tazhibayda/account-service/internal/http"
	"github.com/tazhibayda/account-service/internal/log"
	"github.com/tazhibayda/account-service/internal/media"
	"github.com/tazhibayda/account-service/internal/metrics"
	"github.com/tazhibayda/account-service/internal/queue"
	"github.com/tazhibayda/account-service/internal/repo"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatalf("config: %v", err)
	}

	logger, err := log.Init(os.Getenv("APP_ENV") == "production")
	if err != nil {
		stdlog.Fatalf("logger: %v", err)
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := repo.NewStore(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		logger.Fatal("mongo connect", zap.Error(err))
	}
	defer store.Close(context.Background())

	if err := store.EnsureUserIndexes(ctx); err != nil {
		logger.Fatal("ensure indexes", zap.Error(err))
	}

	med, err := media.NewS3(cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3UseSSL, logger)
	if err != nil {
		logger.Fatal("media storage", zap.Error(err))
	}

	pub := queue.NewNoop()
	if cfg.RabbitURL != "" {
		pub, err = queue.NewRabbit(cfg.RabbitURL, cfg.RabbitExchange)
		if err != nil {
			logger.Fatal("rabbit connect", zap.Error(err))
		}
	}
	defer pub.Close()

	var rds *repo.Redis
	if cfg.RedisAddr != "" {
		rds = repo.NewRedis(cfg.RedisAddr)
		if err := rds.Ping(ctx); err != nil {
			logger.Fatal("redis connect", zap.Error(err))
		}
		defer rds.Close()
	}

	metrics.MustRegister()

	h := api.NewHandler(store, med, pub, rds, cfg)
	r := api.NewRouter(h)

	srvErr := make(chan error, 1)
	go func() { srvErr <- r.Run(":" + cfg.Port) }()

	logger.Info("account-service listening", zap.String("port", cfg.Port))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		logger.Info("shutting down", zap.String("signal", s.String()))
	case err := <-srvErr:
		logger.Error("server error", zap.Error(err))
	}
}
