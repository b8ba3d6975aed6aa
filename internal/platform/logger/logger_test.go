package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestNewWithWriter(t *testing.T) {
	t.Run("json by default", func(t *testing.T) {
		var buf bytes.Buffer
		NewWithWriter(&buf, "info", "").Info("lookup served", "inmates", 1)
		assert.Contains(t, buf.String(), `"msg":"lookup served"`)
	})

	t.Run("text format", func(t *testing.T) {
		var buf bytes.Buffer
		NewWithWriter(&buf, "info", "text").Info("lookup served")
		assert.Contains(t, buf.String(), `msg="lookup served"`)
	})

	t.Run("level filters", func(t *testing.T) {
		var buf bytes.Buffer
		NewWithWriter(&buf, "error", "json").Warn("dropped")
		assert.Empty(t, buf.String())
	})
}

func TestTraceCorrelation(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "info", "json").With("component", "coordinator")

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x01},
		SpanID:     trace.SpanID{0x02},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	log.InfoContext(ctx, "provider query succeeded")

	assert.Contains(t, buf.String(), `"trace_id":"`+sc.TraceID().String()+`"`)
	assert.Contains(t, buf.String(), `"span_id":"`+sc.SpanID().String()+`"`)

	buf.Reset()
	log.InfoContext(context.Background(), "no span")
	assert.NotContains(t, buf.String(), "trace_id")
}
