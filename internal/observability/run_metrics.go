package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricRunTotal     = "chunkfold.run.total"
	metricRunDuration  = "chunkfold.run.duration.seconds"
	metricRunPeakBytes = "chunkfold.run.peak.bytes"
	metricRunRecords   = "chunkfold.run.records.total"
	metricRunErrors    = "chunkfold.run.errors.total"

	attrGroup   = "group"
	attrVariant = "variant"
	attrStatus  = "status"

	statusOK    = "ok"
	statusError = "error"
)

// Variant runs range from microseconds on tiny datasets to minutes for
// whole-file loads of large ones.
var durationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300}

// 64 KiB to 16 GiB in powers of four.
var peakBuckets = []float64{
	1 << 16, 1 << 18, 1 << 20, 1 << 22, 1 << 24, 1 << 26, 1 << 28, 1 << 30, 1 << 32, 1 << 34,
}

// Run describes one measured strategy execution.
type Run struct {
	Group     string
	Variant   string
	Duration  time.Duration
	PeakBytes uint64
	Records   int64
	Err       error
}

// RunMetrics records strategy runs.
type RunMetrics struct {
	total    metric.Int64Counter
	duration metric.Float64Histogram
	peak     metric.Float64Histogram
	records  metric.Int64Counter
	errors   metric.Int64Counter
}

// NewRunMetrics creates the run instruments on mt.
func NewRunMetrics(mt metric.Meter) (*RunMetrics, error) {
	in := &instruments{meter: mt}

	rm := &RunMetrics{
		total:    in.int64Counter(metricRunTotal, "Strategy runs", "{run}"),
		duration: in.float64Histogram(metricRunDuration, "Strategy run duration", "s", durationBuckets),
		peak:     in.float64Histogram(metricRunPeakBytes, "Peak live heap above baseline", "By", peakBuckets),
		records:  in.int64Counter(metricRunRecords, "Records aggregated", "{record}"),
		errors:   in.int64Counter(metricRunErrors, "Failed strategy runs", "{error}"),
	}

	err := in.err()
	if err != nil {
		return nil, err
	}

	return rm, nil
}

// Record adds one run. A nil receiver does nothing.
func (rm *RunMetrics) Record(ctx context.Context, run Run) {
	if rm == nil {
		return
	}

	status := statusOK
	if run.Err != nil {
		status = statusError
	}

	variant := metric.WithAttributes(
		attribute.String(attrGroup, run.Group),
		attribute.String(attrVariant, run.Variant),
	)

	rm.total.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrGroup, run.Group),
		attribute.String(attrVariant, run.Variant),
		attribute.String(attrStatus, status),
	))

	if run.Err != nil {
		rm.errors.Add(ctx, 1, variant)

		return
	}

	rm.duration.Record(ctx, run.Duration.Seconds(), variant)
	rm.peak.Record(ctx, float64(run.PeakBytes), variant)
	rm.records.Add(ctx, run.Records, variant)
}
