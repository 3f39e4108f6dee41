package bench

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gofrs/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/chunkfold/internal/observability"
	"github.com/Sumatoshi-tech/chunkfold/pkg/aggregate"
	"github.com/Sumatoshi-tech/chunkfold/pkg/alg/stats"
	"github.com/Sumatoshi-tech/chunkfold/pkg/measure"
)

const tracerName = "github.com/Sumatoshi-tech/chunkfold/internal/bench"

var (
	// ErrMismatch marks a variant whose value disagrees with its group baseline.
	ErrMismatch = errors.New("value differs from group baseline")
	// ErrVariantFailed marks a variant that returned an error.
	ErrVariantFailed = errors.New("variant failed")
)

// Executor runs one variant under measurement.
type Executor func(ctx context.Context, v Variant, env Env) (Outcome, measure.Sample, error)

// InProcess measures variants in the current process. Only one measurement
// can be active at a time, so Run calls it sequentially.
func InProcess(opts ...measure.Option) Executor {
	return func(ctx context.Context, v Variant, env Env) (Outcome, measure.Sample, error) {
		return measure.Measure(ctx, func(ctx context.Context) (Outcome, error) {
			return v.Run(ctx, env)
		}, opts...)
	}
}

// Options control Run.
type Options struct {
	// Trials is the number of measured repetitions per variant. Default 1.
	Trials int
	// Tolerance is the relative tolerance of the baseline check for
	// variants that declare none. Default aggregate.DefaultTolerance.
	Tolerance float64
	// Executor defaults to InProcess().
	Executor Executor
	// Metrics, when set, records every trial.
	Metrics *observability.RunMetrics
}

// Row is the measured result of one variant.
type Row struct {
	Group      string        `json:"group" yaml:"group"`
	Variant    string        `json:"variant" yaml:"variant"`
	Baseline   bool          `json:"baseline" yaml:"baseline"`
	Value      float64       `json:"value" yaml:"value"`
	Records    int64         `json:"records" yaml:"records"`
	Deviation  float64       `json:"deviation" yaml:"deviation"`
	Tolerance  float64       `json:"tolerance" yaml:"tolerance"`
	Match      bool          `json:"match" yaml:"match"`
	Seconds    stats.Summary `json:"seconds" yaml:"seconds"`
	PeakBytes  uint64        `json:"peak_bytes" yaml:"peak_bytes"`
	AllocBytes uint64        `json:"alloc_bytes" yaml:"alloc_bytes"`
	HeldBytes  uint64        `json:"held_bytes,omitempty" yaml:"held_bytes,omitempty"`
	Mallocs    uint64        `json:"mallocs" yaml:"mallocs"`
	NumGC      uint64        `json:"num_gc" yaml:"num_gc"`
	RSSBytes   uint64        `json:"rss_bytes" yaml:"rss_bytes"`
	Error      string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// Failed reports whether the variant errored or disagreed with its baseline.
func (r Row) Failed() bool {
	return r.Error != "" || !r.Match
}

// Report is the outcome of one gallery run.
type Report struct {
	RunID       string    `json:"run_id" yaml:"run_id"`
	StartedAt   time.Time `json:"started_at" yaml:"started_at"`
	DatasetRows int64     `json:"dataset_rows" yaml:"dataset_rows"`
	ChunkSize   int       `json:"chunk_size" yaml:"chunk_size"`
	Workers     int       `json:"workers" yaml:"workers"`
	Trials      int       `json:"trials" yaml:"trials"`
	Rows        []Row     `json:"rows" yaml:"rows"`
}

// Err joins one error per failed row, or returns nil.
func (r Report) Err() error {
	var errs []error

	for _, row := range r.Rows {
		switch {
		case row.Error != "":
			errs = append(errs, fmt.Errorf("%w: %s: %s", ErrVariantFailed, row.Variant, row.Error))
		case !row.Match:
			errs = append(errs, fmt.Errorf("%w: %s: %g (deviation %.3g)", ErrMismatch, row.Variant, row.Value, row.Deviation))
		}
	}

	return errors.Join(errs...)
}

// Run measures every variant in order and checks each value against the
// baseline of its group. A variant failure is recorded in its Row; only
// cancellation of ctx stops the run early.
func Run(ctx context.Context, env Env, variants []Variant, opts Options) (Report, error) {
	if opts.Trials <= 0 {
		opts.Trials = 1
	}

	if opts.Tolerance <= 0 {
		opts.Tolerance = aggregate.DefaultTolerance
	}

	if opts.Executor == nil {
		opts.Executor = InProcess()
	}

	id, err := uuid.NewV4()
	if err != nil {
		return Report{}, fmt.Errorf("generate run id: %w", err)
	}

	report := Report{
		RunID:       id.String(),
		StartedAt:   time.Now().UTC(),
		DatasetRows: env.Rows,
		ChunkSize:   env.ChunkSize,
		Workers:     env.Workers,
		Trials:      opts.Trials,
	}

	tracer := otel.Tracer(tracerName)
	logger := env.logger()

	ctx, span := tracer.Start(ctx, "bench.run", trace.WithAttributes(
		attribute.String("run_id", report.RunID),
		attribute.Int("variants", len(variants)),
	))
	defer span.End()

	for _, v := range variants {
		err = ctx.Err()
		if err != nil {
			return report, fmt.Errorf("run interrupted before %s: %w", v.Name, err)
		}

		row := runVariant(ctx, tracer, env, v, opts)

		logger.InfoContext(ctx, "bench: variant done",
			"variant", row.Variant,
			"value", row.Value,
			"records", row.Records,
			"median_seconds", row.Seconds.Median,
			"peak_bytes", row.PeakBytes,
			"error", row.Error,
		)

		report.Rows = append(report.Rows, row)
	}

	checkBaselines(report.Rows)

	return report, nil
}

func runVariant(ctx context.Context, tracer trace.Tracer, env Env, v Variant, opts Options) Row {
	ctx, span := tracer.Start(ctx, "bench.variant", trace.WithAttributes(
		attribute.String("group", v.Group),
		attribute.String("variant", v.Name),
	))
	defer span.End()

	row := Row{Group: v.Group, Variant: v.Name, Baseline: v.Baseline, Tolerance: v.Tolerance}
	if row.Tolerance <= 0 {
		row.Tolerance = opts.Tolerance
	}

	durations := make([]time.Duration, 0, opts.Trials)

	for range opts.Trials {
		out, sample, err := opts.Executor(ctx, v, env)

		opts.Metrics.Record(ctx, observability.Run{
			Group:     v.Group,
			Variant:   v.Name,
			Duration:  sample.Duration,
			PeakBytes: sample.PeakBytes,
			Records:   out.Records,
			Err:       err,
		})

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())

			row.Error = err.Error()

			break
		}

		row.Value = out.Value
		row.Records = out.Records
		durations = append(durations, sample.Duration)
		row.PeakBytes = max(row.PeakBytes, sample.PeakBytes)
		row.AllocBytes = max(row.AllocBytes, sample.AllocBytes)
		row.HeldBytes = max(row.HeldBytes, out.HeldBytes)
		row.Mallocs = max(row.Mallocs, sample.Mallocs)
		row.NumGC = max(row.NumGC, sample.NumGC)
		row.RSSBytes = max(row.RSSBytes, sample.RSSBytes)
	}

	row.Seconds = stats.Summarize(stats.Seconds(durations))

	return row
}

// checkBaselines compares each row with the first successful baseline of its
// group, or with the first successful row when no baseline was selected,
// within the tolerance of the row.
func checkBaselines(rows []Row) {
	ref := make(map[string]float64)

	for _, r := range rows {
		if r.Error == "" && r.Baseline {
			if _, ok := ref[r.Group]; !ok {
				ref[r.Group] = r.Value
			}
		}
	}

	for _, r := range rows {
		if _, ok := ref[r.Group]; !ok && r.Error == "" {
			ref[r.Group] = r.Value
		}
	}

	for i := range rows {
		r := &rows[i]
		if r.Error != "" {
			continue
		}

		base := ref[r.Group]
		r.Match = aggregate.ApproxEqual(base, r.Value, r.Tolerance)
		r.Deviation = relativeDeviation(base, r.Value)
	}
}

func relativeDeviation(base, v float64) float64 {
	scale := max(math.Abs(base), math.Abs(v))
	if scale == 0 {
		return 0
	}

	return math.Abs(v-base) / scale
}
