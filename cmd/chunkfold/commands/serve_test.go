package commands

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdown_LogsFailure(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := slog.New(slog.NewTextHandler(&buf, nil))
	ctx := context.Background()

	shutdown(ctx, logger, "metrics server", func(context.Context) error { return nil })
	assert.Empty(t, buf.String())

	shutdown(ctx, logger, "metrics provider", func(context.Context) error {
		return errors.New("reader already shut down")
	})

	out := buf.String()
	assert.Contains(t, out, "shutdown failed")
	assert.Contains(t, out, `component="metrics provider"`)
	assert.Contains(t, out, `error="reader already shut down"`)
}

func TestServeMetrics_StopsCleanly(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := slog.New(slog.NewTextHandler(&buf, nil))

	stop, meter, err := serveMetrics("127.0.0.1:0", logger)
	require.NoError(t, err)
	require.NotNil(t, meter)

	stop()

	assert.Contains(t, buf.String(), "serving metrics")
	assert.NotContains(t, buf.String(), "shutdown failed")
}
