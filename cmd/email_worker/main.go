package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mundotango/mundo-tango-api/config"
	"github.com/mundotango/mundo-tango-api/pkg/helpers"
	"github.com/mundotango/mundo-tango-api/pkg/mailer"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-email-worker", cfg.Env)

	if !cfg.MailSendEnabled {
		logger.Info("MAIL_SEND_ENABLED=false; email worker disabled (no real emails will be sent)")
		return
	}
	if cfg.RabbitMQURL == "" || cfg.RabbitMQEmailQueue == "" {
		log.Fatal("RabbitMQ not configured")
	}
	if cfg.MailgunDomain == "" || cfg.MailgunAPIKey == "" || cfg.MailgunSender == "" {
		log.Fatal("Mailgun not configured")
	}

	mg := mailer.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailgunSender)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Prefetch for fair dispatch
	err := helpers.Consume(ctx, cfg.RabbitMQURL, cfg.RabbitMQEmailQueue, 16, logger, func(ctx context.Context, body []byte) error {
		var job mailer.EmailJob
		if err := json.Unmarshal(body, &job); err != nil {
			return helpers.Permanent(fmt.Errorf("bad message: %w", err))
		}
		c, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		if err := mailer.Deliver(c, mg, job); err != nil {
			return err
		}
		logger.WithField("template", job.Template).Debug("email sent")
		return nil
	})
	if err != nil {
		logger.WithError(err).Fatal("email worker stopped")
	}
	logger.Info("email worker exited")
}
