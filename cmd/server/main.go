package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"inmates/internal/inmates/bootstrap"
	"inmates/internal/inmates/handler"
	"inmates/internal/inmates/metrics"
	"inmates/internal/inmates/service"
	"inmates/internal/platform/config"
	"inmates/internal/platform/httpserver"
	"inmates/internal/platform/logger"
	"inmates/internal/ratelimit"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Lookup logic lives in internal/inmates.
func main() {
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	lookupMetrics := metrics.NewWithRegisterer(reg)

	coord, err := bootstrap.Coordinator(cfg.Providers, log, lookupMetrics)
	if err != nil {
		return err
	}

	var cleanup []func()
	defer func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}()

	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(lookupMetrics),
	}

	cache, closeCache, err := buildCache(ctx, cfg, log)
	if err != nil {
		return err
	}
	cleanup = append(cleanup, closeCache)
	if cache != nil {
		opts = append(opts, service.WithCache(cache))
	}

	pub, closeAudit, err := buildAuditPublisher(ctx, cfg, log, reg)
	if err != nil {
		return err
	}
	cleanup = append(cleanup, closeAudit)

	var lister handler.AuditLister
	if pub != nil {
		opts = append(opts, service.WithAuditor(pub))
		lister = pub
	}

	svc, err := service.New(coord, opts...)
	if err != nil {
		return err
	}

	var limiter *ratelimit.Limiter
	if cfg.Server.RateLimit > 0 {
		limiter = ratelimit.NewLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
		go limiter.Run(ctx, time.Minute)
	}

	router := newRouter(cfg, log, reg, limiter, handler.New(svc, lister, log))
	srv := httpserver.New(cfg.Server.Addr, router)

	log.Info("starting inmate lookup server",
		"addr", cfg.Server.Addr,
		"cache_backend", cfg.Cache.Backend,
		"audit_backend", cfg.Audit.Backend,
		"auth_enabled", cfg.Auth.Enabled(),
		"api_rate_limit", cfg.Server.RateLimit,
	)
	return httpserver.Run(ctx, srv, cfg.Server.ShutdownTimeout, log)
}
