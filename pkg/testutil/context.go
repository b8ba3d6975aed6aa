package testutil

import (
	"net/http"
	"time"

	"inmates/pkg/requestcontext"
)

// WithActor marks the request as authenticated by actor, as the auth
// middleware would.
func WithActor(req *http.Request, actor string) *http.Request {
	return req.WithContext(requestcontext.WithActor(req.Context(), actor))
}

// WithRequestMetadata sets the request id, client IP and request time that
// the middleware chain would normally provide.
func WithRequestMetadata(req *http.Request, requestID, clientIP string, now time.Time) *http.Request {
	ctx := requestcontext.WithRequestID(req.Context(), requestID)
	ctx = requestcontext.WithClientMetadata(ctx, clientIP, req.UserAgent())
	ctx = requestcontext.WithTime(ctx, now)
	return req.WithContext(ctx)
}
