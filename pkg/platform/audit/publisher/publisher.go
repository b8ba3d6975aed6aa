// Package publisher emits audit events to a Store, either inline or through a
// bounded buffer drained by a background worker.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	audit "inmates/pkg/platform/audit"
	"inmates/pkg/platform/audit/worker"
)

var (
	// ErrBufferFull is returned by Emit in async mode when the buffer is full.
	ErrBufferFull = errors.New("audit buffer full")

	// ErrCircuitOpen is returned when persistence is suspended after repeated failures.
	ErrCircuitOpen = errors.New("audit circuit open")

	// ErrClosed is returned by Emit after Close.
	ErrClosed = errors.New("audit publisher closed")

	// ErrListUnsupported is returned by List when the store cannot read events back.
	ErrListUnsupported = errors.New("audit store does not support listing")
)

// Publisher stamps and forwards audit events to a store.
type Publisher struct {
	store   audit.Store
	guarded *guardedStore
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time

	bufferSize int
	inbox      chan audit.Event
	done       chan struct{}

	mu     sync.RWMutex
	closed bool
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithAsyncBuffer enables async mode with a buffer of size events.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.bufferSize = size
	}
}

// WithLogger sets the logger used for persistence failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// WithCircuitBreaker overrides the default circuit breaker.
func WithCircuitBreaker(cb *CircuitBreaker) Option {
	return func(p *Publisher) {
		if cb != nil {
			p.guarded.breaker = cb
		}
	}
}

// WithClock overrides the clock used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPublisher creates a publisher over store. Without WithAsyncBuffer, Emit
// persists inline.
func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	p.guarded = &guardedStore{store: store, breaker: NewCircuitBreaker(5, 30*time.Second)}
	for _, opt := range opts {
		opt(p)
	}
	p.guarded.metrics = p.metrics

	if p.bufferSize > 0 {
		p.inbox = make(chan audit.Event, p.bufferSize)
		p.done = make(chan struct{})
		w := worker.NewWorker(p.guarded, p.inbox, p.logger, nil)
		go func() {
			defer close(p.done)
			_ = w.Run(context.Background())
		}()
	}
	return p
}

// Emit records event. Missing ID, timestamp and category are filled in.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now()
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}

	if p.inbox == nil {
		if err := p.guarded.Append(ctx, event); err != nil {
			return err
		}
		p.metrics.incEmitted()
		return nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.inbox <- event:
		p.metrics.incEmitted()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.metrics.incDropped("buffer_full")
		p.logger.WarnContext(ctx, "audit buffer full, dropping event",
			"action", event.Action,
			"request_id", event.RequestID,
		)
		return ErrBufferFull
	}
}

// List returns the most recent events when the store supports reading.
func (p *Publisher) List(ctx context.Context, limit int) ([]audit.Event, error) {
	lister, ok := p.store.(audit.Lister)
	if !ok {
		return nil, ErrListUnsupported
	}
	return lister.ListRecent(ctx, limit)
}

// Close stops accepting events and waits for buffered ones to be persisted.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	if p.inbox != nil {
		close(p.inbox)
	}
	p.mu.Unlock()

	if p.done != nil {
		<-p.done
	}
}

// guardedStore wraps a store with the circuit breaker.
type guardedStore struct {
	store   audit.Store
	breaker *CircuitBreaker
	metrics *Metrics
}

func (g *guardedStore) Append(ctx context.Context, event audit.Event) error {
	if !g.breaker.Allow() {
		g.metrics.incDropped("circuit_open")
		return ErrCircuitOpen
	}
	if err := g.store.Append(ctx, event); err != nil {
		g.breaker.RecordFailure()
		g.metrics.incPersistFailures()
		g.metrics.setCircuitBreakerState(g.breaker.IsOpen())
		return fmt.Errorf("persist audit event: %w", err)
	}
	g.breaker.RecordSuccess()
	g.metrics.setCircuitBreakerState(false)
	return nil
}
