package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/oksasatya/go-shop-account/config"
	"github.com/oksasatya/go-shop-account/internal/infrastructure/events"
	"github.com/oksasatya/go-shop-account/internal/infrastructure/search"
	"github.com/oksasatya/go-shop-account/pkg/helpers"
)

const prefetch = 16

// indexer consumes user events and keeps the Elasticsearch users index in sync.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-indexer", cfg.Env, cfg.LogLevel)

	if cfg.RabbitMQURL == "" || cfg.RabbitMQUserEventsQueue == "" {
		log.Fatal("RabbitMQ not configured")
	}
	es, err := helpers.NewESClient(cfg.ESAddrs(), cfg.ElasticsearchUser, cfg.ElasticsearchPass)
	if err != nil {
		log.Fatalf("elasticsearch client: %v", err)
	}
	index := search.NewUserIndex(es, cfg.ESUsersIndex)
	if !index.Enabled() {
		log.Fatal("Elasticsearch not configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := index.EnsureIndex(ctx); err != nil {
		logger.WithError(err).Fatal("ensure users index")
	}

	logger.Infof("indexer listening on queue=%s index=%s", cfg.RabbitMQUserEventsQueue, cfg.ESUsersIndex)
	if err := helpers.ConsumeQueue(ctx, cfg.RabbitMQURL, cfg.RabbitMQUserEventsQueue, prefetch, events.Handler(index, logger)); err != nil {
		logger.WithError(err).Fatal("indexer stopped")
	}
	logger.Info("indexer shut down")
}
