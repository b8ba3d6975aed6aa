// Package bootstrap builds the provider adapters and coordinator from
// configuration. Both binaries share it.
package bootstrap

import (
	"fmt"
	"log/slog"

	"inmates/internal/inmates/coordinator"
	"inmates/internal/inmates/metrics"
	"inmates/internal/inmates/normalize"
	"inmates/internal/inmates/providers"
	"inmates/internal/inmates/providers/fbop"
	"inmates/internal/inmates/providers/tdcj"
	"inmates/internal/platform/config"
	"inmates/internal/platform/httpclient"
)

// Providers returns the state then federal adapter. Each gets its own HTTP
// client so rate limits are tracked per upstream.
func Providers(cfg config.Providers, logger *slog.Logger) ([]providers.Provider, error) {
	state, err := tdcj.New(cfg.TDCJBaseURL, httpclient.New(cfg.HTTPClient()), tdcj.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("tdcj adapter: %w", err)
	}

	fbopOpts := []fbop.Option{
		fbop.WithLogger(logger),
		fbop.WithIncludeReleased(cfg.FBOPIncludeReleased),
	}
	if cfg.FBOPFacilities != nil {
		fbopOpts = append(fbopOpts, fbop.WithFacilities(cfg.FBOPFacilities))
	}
	federal, err := fbop.New(cfg.FBOPURL, httpclient.New(cfg.HTTPClient()), fbopOpts...)
	if err != nil {
		return nil, fmt.Errorf("fbop adapter: %w", err)
	}

	return []providers.Provider{state, federal}, nil
}

// Coordinator wires the adapters, the normalizer and observability.
func Coordinator(cfg config.Providers, logger *slog.Logger, m *metrics.Metrics) (*coordinator.Coordinator, error) {
	ps, err := Providers(cfg, logger)
	if err != nil {
		return nil, err
	}
	return coordinator.New(ps, normalize.New(),
		coordinator.WithLogger(logger),
		coordinator.WithMetrics(m),
	)
}
