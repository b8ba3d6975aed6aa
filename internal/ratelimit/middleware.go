package ratelimit

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"

	dErrors "inmates/pkg/domain-errors"
	"inmates/pkg/platform/httputil"
	"inmates/pkg/requestcontext"
)

// Middleware rejects callers that exhaust their bucket with 429.
type Middleware struct {
	limiter *Limiter
	logger  *slog.Logger
}

// NewMiddleware wraps limiter for HTTP use.
func NewMiddleware(limiter *Limiter, logger *slog.Logger) *Middleware {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Middleware{limiter: limiter, logger: logger}
}

// Handler keys buckets by the authenticated actor, falling back to client IP.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		key := clientKey(r)

		res := m.limiter.Allow(key)
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

		if !res.Allowed {
			retry := int(math.Ceil(res.RetryAfter.Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(max(retry, 1)))
			m.logger.WarnContext(ctx, "rate limit exceeded",
				"key", key,
				"request_id", requestcontext.RequestID(ctx),
			)
			httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many requests, try again later"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	ctx := r.Context()
	if actor := requestcontext.Actor(ctx); actor != "" {
		return "actor:" + actor
	}
	if ip := requestcontext.ClientIP(ctx); ip != "" {
		return "ip:" + ip
	}
	return "ip:" + r.RemoteAddr
}
