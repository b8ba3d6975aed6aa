package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "inmates/pkg/platform/audit"
	"inmates/pkg/platform/audit/store/memory"
)

func lookupEvent() audit.Event {
	return audit.Event{
		Action:      string(audit.EventLookupCompleted),
		QueryKind:   "id",
		SubjectHash: audit.HashSubject("id:1"),
	}
}

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	err := pub.Emit(context.Background(), lookupEvent())
	require.NoError(t, err)

	events, err := pub.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventLookupCompleted), events[0].Action)
	assert.Equal(t, audit.CategoryCompliance, events[0].Category)
	assert.NotEmpty(t, events[0].ID)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100))

	for range 10 {
		require.NoError(t, pub.Emit(context.Background(), lookupEvent()))
	}
	pub.Close()

	events, err := store.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, events, 10, "all events should be drained on close")

	assert.ErrorIs(t, pub.Emit(context.Background(), lookupEvent()), ErrClosed)
	pub.Close()
}

func TestPublisher_BufferFull_DropsEvent(t *testing.T) {
	blocking := &blockingStore{release: make(chan struct{})}
	pub := NewPublisher(blocking, WithAsyncBuffer(1))

	var wg sync.WaitGroup
	var mu sync.Mutex
	var full int
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if errors.Is(pub.Emit(context.Background(), lookupEvent()), ErrBufferFull) {
				mu.Lock()
				full++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	close(blocking.release)
	pub.Close()

	assert.Positive(t, full, "a one-slot buffer behind a blocked store must drop events")
}

func TestPublisher_SetsTimestamp(t *testing.T) {
	fixed := time.Date(2025, time.February, 3, 4, 5, 6, 0, time.UTC)
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithClock(func() time.Time { return fixed }))
	defer pub.Close()

	require.NoError(t, pub.Emit(context.Background(), lookupEvent()))

	custom := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	event := lookupEvent()
	event.Timestamp = custom
	require.NoError(t, pub.Emit(context.Background(), event))

	events, err := store.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, fixed, events[0].Timestamp)
	assert.Equal(t, custom, events[1].Timestamp)
}

func TestPublisher_CircuitOpensAfterFailures(t *testing.T) {
	failing := &countingStore{err: errors.New("connection refused")}
	pub := NewPublisher(failing,
		WithCircuitBreaker(NewCircuitBreaker(2, time.Hour)),
		WithMetrics(NewMetrics(prometheus.NewRegistry())),
	)
	defer pub.Close()

	ctx := context.Background()
	assert.ErrorContains(t, pub.Emit(ctx, lookupEvent()), "connection refused")
	assert.ErrorContains(t, pub.Emit(ctx, lookupEvent()), "connection refused")
	assert.ErrorIs(t, pub.Emit(ctx, lookupEvent()), ErrCircuitOpen)
	assert.Equal(t, 2, failing.calls)
}

func TestPublisher_ListUnsupported(t *testing.T) {
	pub := NewPublisher(&countingStore{})
	defer pub.Close()
	_, err := pub.List(context.Background(), 5)
	assert.ErrorIs(t, err, ErrListUnsupported)
}

func TestCircuitBreaker_HalfOpen(t *testing.T) {
	now := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(2, time.Minute)
	cb.now = func() time.Time { return now }

	cb.RecordFailure()
	assert.True(t, cb.Allow())
	cb.RecordFailure()
	assert.True(t, cb.IsOpen())
	assert.False(t, cb.Allow())

	now = now.Add(2 * time.Minute)
	assert.True(t, cb.Allow(), "cooldown elapsed lets one attempt through")
	assert.False(t, cb.Allow(), "only one trial call at a time")
	cb.RecordFailure()
	assert.True(t, cb.IsOpen(), "a failure while half-open reopens the circuit")

	now = now.Add(2 * time.Minute)
	require.True(t, cb.Allow())
	cb.RecordSuccess()
	assert.False(t, cb.IsOpen())
}

type countingStore struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *countingStore) Append(context.Context, audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.err
}

type blockingStore struct {
	release chan struct{}
}

func (s *blockingStore) Append(context.Context, audit.Event) error {
	<-s.release
	return nil
}
