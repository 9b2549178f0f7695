package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return zap.New(core), recorded
}

func TestFromContext(t *testing.T) {
	log, _ := newObservedLogger()
	ctx := WithContext(context.Background(), log)

	assert.Same(t, log, FromContext(ctx))
}

func TestFromContext_FallsBackToNop(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	ctx := context.WithValue(context.Background(), loggerKey, "not a logger")
	assert.NotNil(t, FromContext(ctx))
}

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestID(ctx))
	assert.Empty(t, GetActor(ctx))
	assert.Empty(t, GetImportBatch(ctx))
	assert.Empty(t, GetTraceID(ctx))

	ctx = WithRequestID(ctx, "cli-42")
	ctx = WithActor(ctx, "alice")
	ctx = WithImportBatch(ctx, "batch-7")

	assert.Equal(t, "cli-42", GetRequestID(ctx))
	assert.Equal(t, "alice", GetActor(ctx))
	assert.Equal(t, "batch-7", GetImportBatch(ctx))
}

func TestL_EnrichesWithContextFields(t *testing.T) {
	log, recorded := newObservedLogger()
	ctx := WithContext(context.Background(), log)
	ctx = WithActor(ctx, "alice")
	ctx = WithImportBatch(ctx, "batch-7")

	L(ctx).Info("stock adjusted", zap.Int("after", 7))

	require.Equal(t, 1, recorded.Len())
	fields := recorded.All()[0].ContextMap()
	assert.Equal(t, "alice", fields["actor"])
	assert.Equal(t, "batch-7", fields["import_batch"])
	assert.Equal(t, int64(7), fields["after"])
	assert.NotContains(t, fields, "request_id")
	assert.NotContains(t, fields, "trace_id")
}

func TestL_AddsTraceFieldsFromSpan(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	log, recorded := newObservedLogger()
	ctx, span := tp.Tracer("test").Start(context.Background(), "adjust")
	defer span.End()

	WithLogger(ctx, log).Warn("low stock")

	require.Equal(t, 1, recorded.Len())
	fields := recorded.All()[0].ContextMap()
	assert.Equal(t, span.SpanContext().TraceID().String(), fields["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), fields["span_id"])
	assert.Equal(t, GetTraceID(ctx), fields["trace_id"])
}

func TestContextLogger_With(t *testing.T) {
	log, recorded := newObservedLogger()
	ctx := WithRequestID(context.Background(), "cli-1")

	cl := WithLogger(ctx, log).With(zap.String("sku", "GHE-0001"))
	cl.Debug("debug")
	cl.Info("info")
	cl.Warn("warn")
	cl.Error("error")

	require.Equal(t, 4, recorded.Len())
	for _, entry := range recorded.All() {
		fields := entry.ContextMap()
		assert.Equal(t, "GHE-0001", fields["sku"])
		assert.Equal(t, "cli-1", fields["request_id"])
	}
}

func TestContextLogger_NilLoggerDoesNotPanic(t *testing.T) {
	cl := WithLogger(context.Background(), nil)
	assert.NotPanics(t, func() {
		cl.Info("ignored")
		cl.With(zap.String("k", "v")).Error("ignored")
	})
}
