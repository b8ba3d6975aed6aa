package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"inmates/internal/inmates/handler"
	jwttoken "inmates/internal/jwt_token"
	"inmates/internal/platform/config"
	httpmetrics "inmates/internal/platform/metrics"
	"inmates/internal/ratelimit"
	"inmates/pkg/platform/httputil"
	"inmates/pkg/platform/middleware/auth"
	"inmates/pkg/platform/middleware/metadata"
	"inmates/pkg/platform/middleware/request"
	"inmates/pkg/platform/middleware/requesttime"
)

// newRouter builds the route tree. A nil limiter leaves /v1 unthrottled.
func newRouter(cfg config.Config, log *slog.Logger, reg *prometheus.Registry, limiter *ratelimit.Limiter, h *handler.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(request.Logger(log))
	r.Use(middleware.Recoverer)
	r.Use(httpmetrics.New(reg).Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled() {
			validator := jwttoken.NewJWTServiceAdapter(jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer))
			r.Use(auth.RequireAuth(validator, log))
		}
		if limiter != nil {
			r.Use(ratelimit.NewMiddleware(limiter, log).Handler)
		}
		h.Register(r)
	})
	return r
}
