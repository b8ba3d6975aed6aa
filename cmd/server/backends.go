package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"inmates/internal/inmates/service"
	"inmates/internal/inmates/store"
	"inmates/internal/platform/config"
	"inmates/internal/platform/kafka"
	"inmates/internal/platform/postgres"
	"inmates/internal/platform/redis"
	audit "inmates/pkg/platform/audit"
	"inmates/pkg/platform/audit/publisher"
	kafkastore "inmates/pkg/platform/audit/store/kafka"
	"inmates/pkg/platform/audit/store/memory"
	pgstore "inmates/pkg/platform/audit/store/postgres"
)

func noop() {}

// buildCache returns a nil cache when caching is disabled.
func buildCache(ctx context.Context, cfg config.Config, log *slog.Logger) (service.ResultCache, func(), error) {
	switch cfg.Cache.Backend {
	case config.BackendMemory:
		return store.NewInMemoryCache(cfg.Cache.TTL), noop, nil
	case config.BackendRedis:
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, noop, fmt.Errorf("result cache: %w", err)
		}
		return store.NewRedisCache(client.Client, cfg.Cache.TTL), func() {
			if err := client.Close(); err != nil {
				log.Warn("failed to close redis client", "error", err)
			}
		}, nil
	default:
		return nil, noop, nil
	}
}

// buildAuditPublisher returns a nil publisher when auditing is disabled.
// The returned cleanup drains buffered events before closing the backend.
func buildAuditPublisher(ctx context.Context, cfg config.Config, log *slog.Logger, reg prometheus.Registerer) (*publisher.Publisher, func(), error) {
	var (
		st        audit.Store
		closeBack = noop
	)

	switch cfg.Audit.Backend {
	case config.BackendMemory:
		st = memory.NewInMemoryStore()
	case config.BackendPostgres:
		db, err := postgres.Open(ctx, cfg.Audit.DatabaseURL)
		if err != nil {
			return nil, noop, fmt.Errorf("audit store: %w", err)
		}
		pg := pgstore.New(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, noop, fmt.Errorf("audit schema: %w", err)
		}
		st = pg
		closeBack = func() { _ = db.Close() }
	case config.BackendKafka:
		client, err := kafka.NewProducer(ctx, cfg.Audit.KafkaBrokers, "inmates-server")
		if err != nil {
			return nil, noop, fmt.Errorf("audit store: %w", err)
		}
		ks := kafkastore.New(client, cfg.Audit.KafkaTopic)
		if err := ks.EnsureTopic(ctx, 3, 1); err != nil {
			client.Close()
			return nil, noop, fmt.Errorf("audit topic: %w", err)
		}
		st = ks
		closeBack = client.Close
	default:
		return nil, noop, nil
	}

	pub := publisher.NewPublisher(st,
		publisher.WithAsyncBuffer(cfg.Audit.BufferSize),
		publisher.WithLogger(log),
		publisher.WithMetrics(publisher.NewMetrics(reg)),
	)
	return pub, func() {
		pub.Close()
		closeBack()
	}, nil
}
