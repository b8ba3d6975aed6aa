// Package coordinator fans one logical query out to every registered provider
// and merges their answers into a single models.Result.
//
// Every provider runs in its own goroutine and writes only its own outcome
// slot, so nothing is shared while fetches are in flight. Waiting for all of
// them is the only synchronization point. Results are merged in registration
// order, never completion order, which keeps output stable across runs.
//
// A provider failure never fails the query: it becomes one models.ProviderError.
// A record the normalizer rejects is dropped and also reported in-band. The
// coordinator neither retries nor imposes a timeout; adapters own both.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"inmates/internal/inmates/metrics"
	"inmates/internal/inmates/models"
	"inmates/internal/inmates/normalize"
	"inmates/internal/inmates/providers"
)

const tracerName = "inmates/coordinator"

// Normalizer maps a provider-native record onto the canonical Inmate.
type Normalizer interface {
	Normalize(raw providers.RawRecord) (models.Inmate, error)
}

// Coordinator dispatches queries to an explicit, ordered provider list.
type Coordinator struct {
	registry   *providers.Registry
	normalizer Normalizer
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

// Option configures the Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger for provider failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// WithTracer overrides the global OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(c *Coordinator) {
		if t != nil {
			c.tracer = t
		}
	}
}

// New creates a coordinator over ps, merged in the order given.
func New(ps []providers.Provider, normalizer Normalizer, opts ...Option) (*Coordinator, error) {
	if len(ps) == 0 {
		return nil, errors.New("at least one provider is required")
	}
	if normalizer == nil {
		return nil, errors.New("normalizer is required")
	}
	registry, err := providers.NewRegistry(ps...)
	if err != nil {
		return nil, fmt.Errorf("register providers: %w", err)
	}

	c := &Coordinator{
		registry:   registry,
		normalizer: normalizer,
		logger:     slog.New(slog.DiscardHandler),
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Jurisdictions lists the registered jurisdictions in merge order.
func (c *Coordinator) Jurisdictions() []models.Jurisdiction {
	all := c.registry.All()
	out := make([]models.Jurisdiction, 0, len(all))
	for _, p := range all {
		out = append(out, p.Jurisdiction())
	}
	return out
}

// Only returns a coordinator restricted to js, keeping registration order.
// With no arguments it returns c itself.
func (c *Coordinator) Only(js ...models.Jurisdiction) (*Coordinator, error) {
	if len(js) == 0 {
		return c, nil
	}
	sub, err := c.registry.Subset(js...)
	if err != nil {
		return nil, err
	}
	restricted := *c
	restricted.registry = sub
	return &restricted, nil
}

// QueryByID looks an inmate number up in every jurisdiction.
func (c *Coordinator) QueryByID(ctx context.Context, id string) (models.Result, error) {
	q, err := models.NewIDQuery(id)
	if err != nil {
		return models.Result{}, err
	}
	return c.Query(ctx, q)
}

// QueryByName looks a name up in every jurisdiction.
func (c *Coordinator) QueryByName(ctx context.Context, first, last string) (models.Result, error) {
	q, err := models.NewNameQuery(first, last)
	if err != nil {
		return models.Result{}, err
	}
	return c.Query(ctx, q)
}

// Query dispatches q to every provider and waits for all of them.
//
// The returned error is non-nil only for a zero Query or when ctx was canceled
// by the caller; in the latter case the partial result is returned alongside.
func (c *Coordinator) Query(ctx context.Context, q models.Query) (models.Result, error) {
	if q.IsZero() {
		return models.Result{}, &models.InvalidQueryError{Field: "query", Reason: "query is empty"}
	}

	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "inmates.query", trace.WithAttributes(
		attribute.String("query.kind", string(q.Kind())),
		attribute.Int("providers", c.registry.Len()),
	))
	defer span.End()

	outcomes := c.gather(ctx, q)
	result := c.merge(ctx, outcomes)

	c.metrics.ObserveQueryLatency(string(q.Kind()), time.Since(start))
	span.SetAttributes(
		attribute.Int("inmates", len(result.Inmates)),
		attribute.Int("errors", len(result.Errors)),
	)

	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, "query canceled")
		return result, err
	}
	return result, nil
}

// outcome is what one provider produced for one query.
type outcome struct {
	jurisdiction models.Jurisdiction
	records      []providers.RawRecord
	err          error
}

// gather runs every provider concurrently. Each goroutine owns outcomes[i].
func (c *Coordinator) gather(ctx context.Context, q models.Query) []outcome {
	ps := c.registry.All()
	outcomes := make([]outcome, len(ps))

	var g errgroup.Group
	for i, p := range ps {
		g.Go(func() error {
			outcomes[i] = c.fetch(ctx, p, q)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (c *Coordinator) fetch(ctx context.Context, p providers.Provider, q models.Query) (out outcome) {
	j := p.Jurisdiction()
	out.jurisdiction = j

	ctx, span := c.tracer.Start(ctx, "inmates.provider.fetch", trace.WithAttributes(
		attribute.String("jurisdiction", j.String()),
	))
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			out.records = nil
			out.err = providers.NewFetchError(providers.ErrorInternal, j, "provider panicked", fmt.Errorf("%v", r))
		}
		c.metrics.ObserveFetchLatency(j.String(), time.Since(start))
		if out.err != nil {
			span.RecordError(out.err)
			span.SetStatus(codes.Error, string(providers.GetCategory(out.err)))
		} else {
			span.SetAttributes(attribute.Int("records", len(out.records)))
		}
		span.End()
	}()

	out.records, out.err = p.Fetch(ctx, q)
	return out
}

func (c *Coordinator) merge(ctx context.Context, outcomes []outcome) models.Result {
	result := models.Result{
		Inmates: make([]models.Inmate, 0),
		Errors:  make([]models.ProviderError, 0),
	}

	for _, o := range outcomes {
		j := o.jurisdiction

		if o.err != nil {
			fe := providers.Classify(j, o.err)
			c.metrics.IncrementProviderError(j.String(), string(fe.Category))
			c.logger.ErrorContext(ctx, "provider query failed",
				"jurisdiction", j,
				"category", fe.Category,
				"error", o.err,
			)
			result.Errors = append(result.Errors, models.ProviderError{
				Jurisdiction: j,
				Message:      fmt.Sprintf("%s query failed: %s", j, fe.Message),
				Cause:        fe,
			})
			continue
		}

		added := 0
		for _, raw := range o.records {
			inmate, err := c.normalizeFrom(j, raw)
			if err != nil {
				c.metrics.IncrementNormalizationFailure(j.String())
				c.logger.WarnContext(ctx, "dropping record that could not be normalized",
					"jurisdiction", j,
					"error", err,
				)
				result.Errors = append(result.Errors, models.ProviderError{
					Jurisdiction: j,
					Message:      fmt.Sprintf("%s record dropped: could not be normalized", j),
					Cause:        err,
				})
				continue
			}
			result.Inmates = append(result.Inmates, inmate)
			added++
		}

		c.metrics.AddRecordsReturned(j.String(), added)
		c.logger.DebugContext(ctx, "provider query succeeded",
			"jurisdiction", j,
			"raw_records", len(o.records),
			"inmates", added,
		)
	}

	return result
}

// normalizeFrom rejects records whose jurisdiction differs from the provider's.
func (c *Coordinator) normalizeFrom(j models.Jurisdiction, raw providers.RawRecord) (models.Inmate, error) {
	inmate, err := c.normalizer.Normalize(raw)
	if err != nil {
		return models.Inmate{}, err
	}
	if inmate.Jurisdiction != j {
		return models.Inmate{}, &normalize.NormalizationError{
			Raw:    raw,
			Reason: fmt.Sprintf("%s record returned by the %s provider", inmate.Jurisdiction, j),
		}
	}
	return inmate, nil
}
