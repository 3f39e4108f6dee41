package bench

import (
	"context"

	"github.com/Sumatoshi-tech/chunkfold/pkg/accum"
	"github.com/Sumatoshi-tech/chunkfold/pkg/aggregate"
	"github.com/Sumatoshi-tech/chunkfold/pkg/dataset"
	"github.com/Sumatoshi-tech/chunkfold/pkg/storage/csvfile"
)

const valueColumn = "value"

// csvVariants sum the value column of the id/value table, whose exact total
// is known in closed form.
func csvVariants() []Variant {
	return []Variant{
		{Name: "csv/expected", Group: GroupCSV, Baseline: true, Run: csvExpected},
		{Name: "csv/naive", Group: GroupCSV, Run: csvNaive},
		{Name: "csv/chunked", Group: GroupCSV, Run: csvChunked},
		{Name: "csv/streaming", Group: GroupCSV, Run: csvStreaming},
		{Name: "csv/mmap", Group: GroupCSV, Run: csvMmap},
		{Name: "csv/partitioned", Group: GroupCSV, Run: csvPartitioned},
	}
}

func csvExpected(_ context.Context, env Env) (Outcome, error) {
	return Outcome{Value: dataset.SumIDTimesTwo(env.Rows), Records: env.Rows}, nil
}

func openIDs(env Env) (*csvfile.File[float64], error) {
	return csvfile.Open(env.Path(FileIDsCSV), csvfile.Float64Column(valueColumn))
}

func csvNaive(ctx context.Context, env Env) (Outcome, error) {
	f, err := openIDs(env)
	if err != nil {
		return Outcome{}, err
	}

	res, err := aggregate.Naive(ctx, f, accum.Sum{}, accum.SumOf(identity), aggregate.WithLogger(env.logger()))
	if err != nil {
		return Outcome{}, err
	}

	return outcome(res, res.Value.Total), nil
}

func csvChunkedBy(ctx context.Context, env Env, chunkSize int) (Outcome, error) {
	f, err := openIDs(env)
	if err != nil {
		return Outcome{}, err
	}

	res, err := aggregate.Chunked(ctx, f, chunkSize, accum.Sum{}, accum.SumOf(identity), env.aggregateOptions()...)
	if err != nil {
		return Outcome{}, err
	}

	return outcome(res, res.Value.Total), nil
}

func csvChunked(ctx context.Context, env Env) (Outcome, error) {
	return csvChunkedBy(ctx, env, env.ChunkSize)
}

// csvStreaming folds one row at a time.
func csvStreaming(ctx context.Context, env Env) (Outcome, error) {
	return csvChunkedBy(ctx, env, 1)
}

func csvMmap(_ context.Context, env Env) (Outcome, error) {
	sum, rows, err := csvfile.SumColumnMmap(env.Path(FileIDsCSV), valueColumn)
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{Value: sum, Records: rows}, nil
}

func csvPartitioned(ctx context.Context, env Env) (Outcome, error) {
	f, err := openIDs(env)
	if err != nil {
		return Outcome{}, err
	}

	res, err := aggregate.Partitioned(ctx, f, env.Workers,
		func() accum.Sum { return accum.Sum{} },
		accum.SumOf(identity),
		accum.Combiner[accum.Sum](),
		env.aggregateOptions()...,
	)
	if err != nil {
		return Outcome{}, err
	}

	return outcome(res, res.Value.Total), nil
}
