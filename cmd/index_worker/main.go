package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/mundotango/mundo-tango-api/config"
	app "github.com/mundotango/mundo-tango-api/internal/application"
	"github.com/mundotango/mundo-tango-api/internal/infrastructure/search"
	"github.com/mundotango/mundo-tango-api/pkg/helpers"
)

// index_worker applies search index jobs from RabbitMQ to Elasticsearch.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-index-worker", cfg.Env)

	if cfg.RabbitMQURL == "" || cfg.RabbitMQIndexQueue == "" {
		log.Fatal("RabbitMQ not configured")
	}
	es, err := search.NewESClient(cfg.ESAddrs(), cfg.ElasticsearchUser, cfg.ElasticsearchPass)
	if err != nil {
		log.Fatalf("elasticsearch client: %v", err)
	}
	target := search.NewElastic(es, cfg.ESContentIndex)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = helpers.Consume(ctx, cfg.RabbitMQURL, cfg.RabbitMQIndexQueue, 32, logger, func(ctx context.Context, body []byte) error {
		job, err := app.DecodeIndexJob(body)
		if err != nil {
			return err
		}
		return app.ApplyIndexJob(ctx, target, job)
	})
	if err != nil {
		logger.WithError(err).Fatal("index worker stopped")
	}
	logger.Info("index worker exited")
}
