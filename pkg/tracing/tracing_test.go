package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInitTracer_Disabled(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), Config{ServiceName: "content-search"})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracer_Enabled(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	shutdown, err := InitTracer(context.Background(), Config{
		Enabled:        true,
		ServiceName:    "content-search",
		ServiceVersion: "1.0.0",
		Environment:    "test",
		OTLPEndpoint:   "127.0.0.1:0",
		SampleRate:     1.0,
	})
	require.NoError(t, err)

	_, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	assert.True(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}

func TestSampler(t *testing.T) {
	assert.Contains(t, Config{SampleRate: 1}.Sampler().Description(), "AlwaysOnSampler")
	assert.Contains(t, Config{SampleRate: 0}.Sampler().Description(), "AlwaysOffSampler")
	assert.Contains(t, Config{SampleRate: 0.25}.Sampler().Description(), "TraceIDRatioBased")
}

func TestTracer_NotNil(t *testing.T) {
	assert.NotNil(t, Tracer("content-search"))
}
