package bench_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/chunkfold/internal/bench"
	"github.com/Sumatoshi-tech/chunkfold/pkg/aggregate"
	"github.com/Sumatoshi-tech/chunkfold/pkg/measure"
)

type recordingProgress struct {
	steps        int
	descriptions []string
}

func (p *recordingProgress) Describe(d string) { p.descriptions = append(p.descriptions, d) }

func (p *recordingProgress) Add(n int) error {
	p.steps += n

	return nil
}

func testEnv(t *testing.T) bench.Env {
	t.Helper()

	return bench.Env{
		Dir:       t.TempDir(),
		Rows:      3_001,
		Seed:      9,
		ChunkSize: 256,
		Workers:   3,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestSelect(t *testing.T) {
	t.Parallel()

	all, err := bench.Select(nil, nil)
	require.NoError(t, err)
	assert.Len(t, all, len(bench.All()))

	csv, err := bench.Select([]string{bench.GroupCSV}, nil)
	require.NoError(t, err)

	for _, v := range csv {
		assert.Equal(t, bench.GroupCSV, v.Group)
	}

	one, err := bench.Select(nil, []string{"array/mmap"})
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "array/mmap", one[0].Name)

	_, err = bench.Select([]string{"nope"}, nil)
	require.ErrorIs(t, err, bench.ErrUnknownGroup)

	_, err = bench.Select(nil, []string{"csv/nope"})
	require.ErrorIs(t, err, bench.ErrUnknownVariant)

	_, err = bench.Lookup("csv/nope")
	require.ErrorIs(t, err, bench.ErrUnknownVariant)
}

func TestAll_EveryGroupHasOneBaseline(t *testing.T) {
	t.Parallel()

	baselines := make(map[string]int)
	names := make(map[string]bool)

	for _, v := range bench.All() {
		assert.False(t, names[v.Name], "duplicate %s", v.Name)
		names[v.Name] = true

		if v.Baseline {
			baselines[v.Group]++
		}
	}

	for _, g := range bench.Groups {
		assert.Equal(t, 1, baselines[g], g)
	}
}

func TestPrepare_ReusesMatchingDataset(t *testing.T) {
	env := testEnv(t)
	ctx := context.Background()

	first := &recordingProgress{}
	require.NoError(t, bench.Prepare(ctx, env, first))
	assert.Equal(t, bench.PrepareSteps, first.steps)
	assert.Contains(t, first.descriptions, bench.FileRecordsParquet)

	second := &recordingProgress{}
	require.NoError(t, bench.Prepare(ctx, env, second))
	assert.Equal(t, bench.PrepareSteps, second.steps)
	assert.Equal(t, []string{"dataset up to date"}, second.descriptions)

	env.Rows++

	third := &recordingProgress{}
	require.NoError(t, bench.Prepare(ctx, env, third))
	assert.Contains(t, third.descriptions, bench.FileRecordsDB)
}

func TestPrepare_LogsEachWrittenFile(t *testing.T) {
	var buf bytes.Buffer

	env := testEnv(t)
	env.Logger = slog.New(slog.NewTextHandler(&buf, nil))

	require.NoError(t, bench.Prepare(context.Background(), env, &recordingProgress{}))

	out := buf.String()
	assert.Equal(t, bench.PrepareSteps, strings.Count(out, "measure: sample"))
	assert.Contains(t, out, `op="prepare `+bench.FileRecordsParquet+`"`)
	assert.Contains(t, out, `op="prepare `+bench.FileValuesLZ4+`"`)
}

func TestRun_AllVariantsAgreeWithBaselines(t *testing.T) {
	env := testEnv(t)
	ctx := context.Background()

	require.NoError(t, bench.Prepare(ctx, env, &recordingProgress{}))

	report, err := bench.Run(ctx, env, bench.All(), bench.Options{
		Trials:   2,
		Executor: bench.InProcess(measure.WithGC(true)),
	})
	require.NoError(t, err)
	require.NoError(t, report.Err())

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 2, report.Trials)
	require.Len(t, report.Rows, len(bench.All()))

	rows := make(map[string]bench.Row)

	for _, row := range report.Rows {
		assert.True(t, row.Match, "%s deviates by %g", row.Variant, row.Deviation)
		assert.Equal(t, env.Rows, row.Records, row.Variant)
		assert.Equal(t, 2, row.Seconds.N, row.Variant)

		rows[row.Variant] = row
	}

	narrow := rows["frame/efficient-types"]
	assert.InDelta(t, bench.Float32Tolerance, narrow.Tolerance, 0)
	assert.Greater(t, narrow.Deviation, aggregate.DefaultTolerance)
	assert.InDelta(t, aggregate.DefaultTolerance, rows["frame/csv"].Tolerance, 0)

	for _, name := range []string{"generator/list", "lazy/eager"} {
		assert.GreaterOrEqual(t, rows[name].HeldBytes, uint64(8*env.Rows), name)
	}

	assert.Zero(t, rows["generator/stream"].HeldBytes)
	assert.Positive(t, rows["extremes/naive"].Value)
	assert.InEpsilon(t, float64(env.Rows), rows["distinct/chunked"].Value, 0.05)
}

func TestRun_VariantToleranceOverridesRunTolerance(t *testing.T) {
	env := testEnv(t)

	run := func(v float64) func(context.Context, bench.Env) (bench.Outcome, error) {
		return func(context.Context, bench.Env) (bench.Outcome, error) {
			return bench.Outcome{Value: v, Records: 1, HeldBytes: 64}, nil
		}
	}

	variants := []bench.Variant{
		{Name: "t/base", Group: "t", Baseline: true, Run: run(10)},
		{Name: "t/narrow", Group: "t", Tolerance: bench.Float32Tolerance, Run: run(10.0001)},
		{Name: "t/strict", Group: "t", Run: run(10.0001)},
	}

	report, err := bench.Run(context.Background(), env, variants, bench.Options{})
	require.NoError(t, err)
	require.Len(t, report.Rows, 3)

	assert.True(t, report.Rows[1].Match)
	assert.InDelta(t, bench.Float32Tolerance, report.Rows[1].Tolerance, 0)
	assert.False(t, report.Rows[2].Match)
	assert.InDelta(t, aggregate.DefaultTolerance, report.Rows[2].Tolerance, 0)
	assert.Equal(t, uint64(64), report.Rows[0].HeldBytes)
	require.ErrorIs(t, report.Err(), bench.ErrMismatch)
}

var errBroken = errors.New("broken variant")

func TestRun_RecordsFailuresAndMismatches(t *testing.T) {
	env := testEnv(t)

	variants := []bench.Variant{
		{Name: "t/base", Group: "t", Baseline: true, Run: func(context.Context, bench.Env) (bench.Outcome, error) {
			return bench.Outcome{Value: 10, Records: 1}, nil
		}},
		{Name: "t/close", Group: "t", Run: func(context.Context, bench.Env) (bench.Outcome, error) {
			return bench.Outcome{Value: 10 + 1e-12, Records: 1}, nil
		}},
		{Name: "t/off", Group: "t", Run: func(context.Context, bench.Env) (bench.Outcome, error) {
			return bench.Outcome{Value: 11, Records: 1}, nil
		}},
		{Name: "t/broken", Group: "t", Run: func(context.Context, bench.Env) (bench.Outcome, error) {
			return bench.Outcome{}, errBroken
		}},
	}

	report, err := bench.Run(context.Background(), env, variants, bench.Options{})
	require.NoError(t, err)
	require.Len(t, report.Rows, 4)

	assert.True(t, report.Rows[0].Match)
	assert.True(t, report.Rows[1].Match)
	assert.False(t, report.Rows[2].Match)
	assert.InDelta(t, 1.0/11, report.Rows[2].Deviation, 1e-12)
	assert.Equal(t, errBroken.Error(), report.Rows[3].Error)

	err = report.Err()
	require.ErrorIs(t, err, bench.ErrMismatch)
	require.ErrorIs(t, err, bench.ErrVariantFailed)
}

func TestRun_StopsOnCancellation(t *testing.T) {
	env := testEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := bench.Run(ctx, env, bench.All()[:1], bench.Options{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, report.Rows)
}
