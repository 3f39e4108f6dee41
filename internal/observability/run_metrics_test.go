package observability_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Sumatoshi-tech/chunkfold/internal/observability"
)

func collect(t *testing.T, reader sdkmetric.Reader) map[string]metricdata.Aggregation {
	t.Helper()

	var rm metricdata.ResourceMetrics

	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Aggregation)

	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}

	return out
}

func TestRunMetrics_Record(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	rm, err := observability.NewRunMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	rm.Record(ctx, observability.Run{
		Group: "csv", Variant: "chunked", Duration: 20 * time.Millisecond, PeakBytes: 1 << 20, Records: 1000,
	})
	rm.Record(ctx, observability.Run{Group: "csv", Variant: "naive", Err: errors.New("boom")})

	got := collect(t, reader)

	total, ok := got["chunkfold.run.total"].(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Len(t, total.DataPoints, 2)

	records, ok := got["chunkfold.run.records.total"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, records.DataPoints, 1)
	assert.Equal(t, int64(1000), records.DataPoints[0].Value)

	errs, ok := got["chunkfold.run.errors.total"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, errs.DataPoints, 1)
	assert.Equal(t, int64(1), errs.DataPoints[0].Value)

	peak, ok := got["chunkfold.run.peak.bytes"].(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, peak.DataPoints, 1)
	assert.Equal(t, uint64(1), peak.DataPoints[0].Count)

	assert.Contains(t, got, "chunkfold.run.duration.seconds")
}

func TestRunMetrics_NilIsNoop(t *testing.T) {
	t.Parallel()

	var rm *observability.RunMetrics

	assert.NotPanics(t, func() {
		rm.Record(context.Background(), observability.Run{Group: "g"})
	})
}

func TestPrometheusProvider_ServesRunMetrics(t *testing.T) {
	t.Parallel()

	handler, mp, err := observability.PrometheusProvider()
	require.NoError(t, err)

	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	rm, err := observability.NewRunMetrics(mp.Meter("test"))
	require.NoError(t, err)
	rm.Record(context.Background(), observability.Run{Group: "array", Variant: "mmap", Records: 5})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "chunkfold_run_records")
	assert.Contains(t, string(body), `variant="mmap"`)
}
