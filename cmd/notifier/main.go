package main

import (
	"context"
	"encoding/json"
	"fmt"
	stdlog "log"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/tazhibayda/account-service/internal/config"
	"github.com/tazhibayda/account-service/internal/log"
	"github.com/tazhibayda/account-service/internal/mail"
	"github.com/tazhibayda/account-service/internal/queue"
)

func main() {
	cfg, err := config.LoadNotifier()
	if err != nil {
		stdlog.Fatalf("config: %v", err)
	}

	logger, err := log.Init(os.Getenv("APP_ENV") == "production")
	if err != nil {
		stdlog.Fatalf("logger: %v", err)
	}
	defer log.Sync()

	cons, err := queue.NewConsumer(cfg.RabbitURL, cfg.Exchange, cfg.Queue, cfg.RoutingKeys())
	if err != nil {
		logger.Fatal("rabbit consumer init", zap.Error(err))
	}
	defer cons.Close()

	sender := mail.NewSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass,
		cfg.FromEmail, cfg.FromName, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("notifier up",
		zap.String("exchange", cfg.Exchange),
		zap.String("queue", cfg.Queue),
		zap.Strings("keys", cfg.RoutingKeys()),
		zap.Int("workers", cfg.Concurrency))

	if err := cons.Consume(ctx, cfg.Concurrency, func(key string, body []byte) error {
		return dispatch(cfg, sender, logger, key, body)
	}); err != nil {
		logger.Fatal("consumer stopped", zap.Error(err))
	}
}

func dispatch(cfg *config.NotifierConfig, sender *mail.Sender, logger *zap.Logger, key string, body []byte) error {
	switch key {
	case queue.KeyUserResetRequested:
		var ev queue.PasswordResetRequested
		if err := json.Unmarshal(body, &ev); err != nil {
			// poison message, drop it
			logger.Error("bad reset event", zap.Error(err))
			return nil
		}
		resetURL := fmt.Sprintf("%s/reset-password/%s", cfg.PublicBaseURL, url.PathEscape(ev.Token))
		ttl := int(time.Until(ev.ExpiresAt).Minutes())
		if ttl < 1 {
			ttl = 1
		}
		return sender.SendPasswordReset(ev.Email, ev.Name, resetURL, ttl)

	case queue.KeyUserRegistered:
		var ev queue.UserRegistered
		if err := json.Unmarshal(body, &ev); err != nil {
			logger.Error("bad registered event", zap.Error(err))
			return nil
		}
		return sender.SendWelcome(ev.Email, ev.Name)

	default:
		logger.Info("ignoring event", zap.String("key", key))
		return nil
	}
}
