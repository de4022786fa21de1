package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &out))
	return out
}

func TestNewWithWriter_TagsService(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter("content-search", "info", &buf).Info("ready")

	out := lastLine(t, &buf)
	assert.Equal(t, "content-search", out["service"])
	assert.Equal(t, "ready", out["msg"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewWithOptions_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithOptions("svc", &buf, Options{Level: "warn"})
	l.Info("dropped")
	assert.Empty(t, buf.String())

	l.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestNewWithOptions_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	NewWithOptions("svc", &buf, Options{Format: "text"}).Info("plain")
	assert.Contains(t, buf.String(), "msg=plain")
	assert.Contains(t, buf.String(), "service=svc")
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	Component(NewWithWriter("svc", "info", &buf), "indexer").Info("x")
	assert.Equal(t, "indexer", lastLine(t, &buf)["component"])
}

func TestWithContext_AllFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("test", "info", &buf)

	traceID, _ := trace.TraceIDFromHex("abcdef1234567890abcdef1234567890")
	spanID, _ := trace.SpanIDFromHex("1234567890abcdef")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	ctx = WithCorrelationID(ctx, "corr-all")
	ctx = WithUserID(ctx, "user-all")

	WithContext(ctx, l).Info("all fields")

	out := lastLine(t, &buf)
	assert.Equal(t, "corr-all", out["correlation_id"])
	assert.Equal(t, "user-all", out["user_id"])
	assert.Equal(t, "abcdef1234567890abcdef1234567890", out["trace_id"])
	assert.Equal(t, "1234567890abcdef", out["span_id"])
}

func TestWithContext_Empty(t *testing.T) {
	var buf bytes.Buffer
	WithContext(context.Background(), NewWithWriter("test", "info", &buf)).Info("bare")

	out := lastLine(t, &buf)
	for _, k := range []string{"correlation_id", "user_id", "trace_id", "span_id"} {
		_, ok := out[k]
		assert.False(t, ok, k)
	}
}

func TestFromContext(t *testing.T) {
	l := NewWithWriter("test", "info", &bytes.Buffer{})
	assert.Same(t, l, FromContext(NewContext(context.Background(), l)))
	assert.Same(t, slog.Default(), FromContext(context.Background()))
}
