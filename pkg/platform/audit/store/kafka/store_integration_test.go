//go:build integration

package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "inmates/pkg/platform/audit"
	"inmates/pkg/testutil/containers"
)

func TestKafkaStoreIntegration(t *testing.T) {
	rp := containers.NewRedpandaContainer(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	producer, err := kgo.NewClient(kgo.SeedBrokers(rp.Broker))
	require.NoError(t, err)
	defer producer.Close()

	store := New(producer, "")
	require.NoError(t, store.EnsureTopic(ctx, 1, 1))
	require.NoError(t, store.EnsureTopic(ctx, 1, 1), "existing topic is not an error")

	event := audit.Event{
		Timestamp:   time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC),
		Action:      string(audit.EventLookupDegraded),
		QueryKind:   "name",
		SubjectHash: audit.HashSubject("name:smith:john"),
		Inmates:     1,
	}
	require.NoError(t, store.Append(ctx, event))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Broker),
		kgo.ConsumeTopics(DefaultTopic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	var record *kgo.Record
	for record == nil {
		fetches := consumer.PollFetches(ctx)
		require.NoError(t, ctx.Err(), "timed out waiting for audit record")
		fetches.EachRecord(func(r *kgo.Record) {
			if record == nil {
				record = r
			}
		})
	}

	var got audit.Event
	require.NoError(t, json.Unmarshal(record.Value, &got))
	assert.Equal(t, got.ID, string(record.Key))
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, audit.CategoryOperations, got.Category)
	assert.Equal(t, event.SubjectHash, got.SubjectHash)

	headers := map[string]string{}
	for _, h := range record.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "operations", headers["category"])
	assert.Equal(t, string(audit.EventLookupDegraded), headers["action"])
}
