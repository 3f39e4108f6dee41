package observability_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/chunkfold/internal/observability"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	var record map[string]any

	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	return record
}

func TestTracingHandler_InjectsSpanContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(observability.NewTracingHandler(inner, "chunkfold", "ci", observability.ModeChild))

	traceID, err := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	require.NoError(t, err)

	spanID, err := trace.SpanIDFromHex("0102030405060708")
	require.NoError(t, err)

	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	logger.InfoContext(ctx, "window folded")

	record := decodeLine(t, &buf)
	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", record["trace_id"])
	assert.Equal(t, "0102030405060708", record["span_id"])
	assert.Equal(t, "chunkfold", record["service"])
	assert.Equal(t, "ci", record["env"])
	assert.Equal(t, "child", record["mode"])
}

func TestTracingHandler_GroupKeepsServiceAttrsTopLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, nil)
	logger := slog.New(observability.NewTracingHandler(inner, "chunkfold", "", observability.ModeCLI))

	logger.WithGroup("run").Info("done", "variant", "csv/chunked")

	record := decodeLine(t, &buf)
	assert.Equal(t, "chunkfold", record["service"])
	assert.Equal(t, "cli", record["mode"])
	assert.NotContains(t, record, "env")
	assert.NotContains(t, record, "trace_id")

	group, ok := record["run"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "csv/chunked", group["variant"])
}
