// Package service wraps the coordinator with result caching and an audit trail.
package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks ResultCache,Auditor

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"inmates/internal/inmates/coordinator"
	"inmates/internal/inmates/metrics"
	"inmates/internal/inmates/models"
	audit "inmates/pkg/platform/audit"
	"inmates/pkg/platform/sentinel"
	"inmates/pkg/requestcontext"
)

// ResultCache stores aggregate results by key.
type ResultCache interface {
	Find(ctx context.Context, key string) (models.Result, error)
	Save(ctx context.Context, key string, result models.Result) error
}

// Auditor records one event per lookup.
type Auditor interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service answers lookups through the coordinator.
type Service struct {
	coordinator *coordinator.Coordinator
	cache       ResultCache
	auditor     Auditor
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

// Option configures the Service.
type Option func(*Service)

// WithCache enables result caching. Only results without provider errors are
// cached, so a transient outage is never replayed from cache.
func WithCache(cache ResultCache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

// WithAuditor enables the audit trail.
func WithAuditor(p Auditor) Option {
	return func(s *Service) {
		s.auditor = p
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New creates a lookup service.
func New(c *coordinator.Coordinator, opts ...Option) (*Service, error) {
	if c == nil {
		return nil, errors.New("coordinator is required")
	}
	s := &Service{
		coordinator: c,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Jurisdictions lists the jurisdictions a lookup can reach.
func (s *Service) Jurisdictions() []models.Jurisdiction {
	return s.coordinator.Jurisdictions()
}

// Query runs q against the given jurisdictions, or all of them when js is empty.
//
// The error is non-nil only for an invalid query or jurisdiction, or when ctx
// ends before every provider answered; provider failures are reported in
// Result.Errors.
func (s *Service) Query(ctx context.Context, q models.Query, js ...models.Jurisdiction) (models.Result, error) {
	if q.IsZero() {
		err := &models.InvalidQueryError{Field: "query", Reason: "query is empty"}
		s.emitRejected(ctx, q, err)
		return models.Result{}, err
	}

	coord, err := s.coordinator.Only(js...)
	if err != nil {
		s.emitRejected(ctx, q, err)
		return models.Result{}, err
	}
	targets := coord.Jurisdictions()
	key := cacheKey(q, targets)

	if result, ok := s.fromCache(ctx, key); ok {
		s.emit(ctx, q, targets, result, true)
		return result, nil
	}

	result, err := coord.Query(ctx, q)
	if err != nil {
		s.logger.WarnContext(ctx, "lookup ended early",
			"request_id", requestcontext.RequestID(ctx),
			"query_kind", q.Kind(),
			"error", err,
		)
		s.emit(context.WithoutCancel(ctx), q, targets, result, false)
		return result, err
	}

	if s.cache != nil && len(result.Errors) == 0 {
		if err := s.cache.Save(ctx, key, result); err != nil {
			s.logger.WarnContext(ctx, "failed to cache lookup result",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		}
	}

	s.emit(ctx, q, targets, result, false)
	return result, nil
}

// QueryByID is a convenience for Query with an id query.
func (s *Service) QueryByID(ctx context.Context, id string, js ...models.Jurisdiction) (models.Result, error) {
	q, err := models.NewIDQuery(id)
	if err != nil {
		s.emitRejected(ctx, q, err)
		return models.Result{}, err
	}
	return s.Query(ctx, q, js...)
}

// QueryByName is a convenience for Query with a name query.
func (s *Service) QueryByName(ctx context.Context, first, last string, js ...models.Jurisdiction) (models.Result, error) {
	q, err := models.NewNameQuery(first, last)
	if err != nil {
		s.emitRejected(ctx, q, err)
		return models.Result{}, err
	}
	return s.Query(ctx, q, js...)
}

func (s *Service) fromCache(ctx context.Context, key string) (models.Result, bool) {
	if s.cache == nil {
		return models.Result{}, false
	}
	result, err := s.cache.Find(ctx, key)
	switch {
	case err == nil:
		s.metrics.IncrementCacheLookup("hit")
		return result, true
	case errors.Is(err, sentinel.ErrNotFound):
		s.metrics.IncrementCacheLookup("miss")
	default:
		s.metrics.IncrementCacheLookup("error")
		s.logger.WarnContext(ctx, "result cache unavailable",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
	return models.Result{}, false
}

func (s *Service) emit(ctx context.Context, q models.Query, targets []models.Jurisdiction, result models.Result, cacheHit bool) {
	action := audit.EventLookupCompleted
	if len(result.Errors) > 0 {
		action = audit.EventLookupDegraded
	}
	event := s.baseEvent(ctx, action, q)
	event.Jurisdictions = jurisdictionNames(targets)
	event.Inmates = len(result.Inmates)
	event.ProviderErrs = len(result.Errors)
	event.CacheHit = cacheHit
	s.publish(ctx, event)
}

func (s *Service) emitRejected(ctx context.Context, q models.Query, cause error) {
	event := s.baseEvent(ctx, audit.EventLookupRejected, q)
	event.Reason = cause.Error()
	s.publish(ctx, event)
}

func (s *Service) baseEvent(ctx context.Context, action audit.AuditEvent, q models.Query) audit.Event {
	event := audit.Event{
		Action:    string(action),
		Timestamp: requestcontext.Now(ctx),
		QueryKind: string(q.Kind()),
		RequestID: requestcontext.RequestID(ctx),
		ActorID:   requestcontext.Actor(ctx),
		ClientIP:  requestcontext.ClientIP(ctx),
	}
	if !q.IsZero() {
		event.SubjectHash = audit.HashSubject(q.Key())
	}
	return event
}

func (s *Service) publish(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"request_id", event.RequestID,
			"error", err,
		)
	}
}

func cacheKey(q models.Query, targets []models.Jurisdiction) string {
	return q.Key() + "|" + strings.Join(jurisdictionNames(targets), ",")
}

func jurisdictionNames(js []models.Jurisdiction) []string {
	out := make([]string, 0, len(js))
	for _, j := range js {
		out = append(out, j.String())
	}
	return out
}
