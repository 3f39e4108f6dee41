package bench

import (
	"context"
	"encoding/binary"

	"github.com/Sumatoshi-tech/chunkfold/pkg/accum"
	"github.com/Sumatoshi-tech/chunkfold/pkg/aggregate"
	"github.com/Sumatoshi-tech/chunkfold/pkg/dataset"
	"github.com/Sumatoshi-tech/chunkfold/pkg/storage/parquetfile"
)

// extremesVariants compute the spread between the smallest and largest
// record value.
func extremesVariants() []Variant {
	return []Variant{
		{Name: "extremes/naive", Group: GroupExtremes, Baseline: true, Run: extremesNaive},
		{Name: "extremes/chunked", Group: GroupExtremes, Run: extremesChunked},
		{Name: "extremes/partitioned", Group: GroupExtremes, Run: extremesPartitioned},
	}
}

// distinctVariants estimate the number of distinct record ids.
func distinctVariants() []Variant {
	return []Variant{
		{Name: "distinct/chunked", Group: GroupDistinct, Baseline: true, Run: distinctChunked},
		{Name: "distinct/partitioned", Group: GroupDistinct, Run: distinctPartitioned},
	}
}

var (
	extremesFold = accum.MinMaxOf(dataset.RecordValue)
	distinctFold = accum.DistinctOf(appendRecordID)
)

func appendRecordID(dst []byte, r dataset.Record) []byte {
	return binary.LittleEndian.AppendUint64(dst, uint64(r.ID))
}

func spread(m accum.MinMax) float64 {
	return m.Max - m.Min
}

func extremesNaive(ctx context.Context, env Env) (Outcome, error) {
	f, err := openRecordsCSV(env)
	if err != nil {
		return Outcome{}, err
	}

	res, err := aggregate.Naive(ctx, f, accum.MinMax{}, extremesFold, aggregate.WithLogger(env.logger()))
	if err != nil {
		return Outcome{}, err
	}

	return outcome(res, spread(res.Value)), nil
}

func extremesChunked(ctx context.Context, env Env) (Outcome, error) {
	f, err := openRecordsCSV(env)
	if err != nil {
		return Outcome{}, err
	}

	res, err := aggregate.Chunked(ctx, f, env.ChunkSize, accum.MinMax{}, extremesFold, env.aggregateOptions()...)
	if err != nil {
		return Outcome{}, err
	}

	return outcome(res, spread(res.Value)), nil
}

func extremesPartitioned(ctx context.Context, env Env) (Outcome, error) {
	f, err := parquetfile.Open[dataset.Record](env.Path(FileRecordsParquet))
	if err != nil {
		return Outcome{}, err
	}

	res, err := aggregate.Partitioned(ctx, f, env.Workers,
		func() accum.MinMax { return accum.MinMax{} },
		extremesFold,
		accum.Combiner[accum.MinMax](),
		env.aggregateOptions()...,
	)
	if err != nil {
		return Outcome{}, err
	}

	return outcome(res, spread(res.Value)), nil
}

func distinctChunked(ctx context.Context, env Env) (Outcome, error) {
	f, err := openRecordsCSV(env)
	if err != nil {
		return Outcome{}, err
	}

	res, err := aggregate.Chunked(ctx, f, env.ChunkSize, accum.Distinct{}, distinctFold, env.aggregateOptions()...)
	if err != nil {
		return Outcome{}, err
	}

	return outcome(res, float64(res.Value.Estimate())), nil
}

func distinctPartitioned(ctx context.Context, env Env) (Outcome, error) {
	f, err := parquetfile.Open[dataset.Record](env.Path(FileRecordsParquet))
	if err != nil {
		return Outcome{}, err
	}

	res, err := aggregate.Partitioned(ctx, f, env.Workers,
		func() accum.Distinct { return accum.Distinct{} },
		distinctFold,
		accum.Combiner[accum.Distinct](),
		env.aggregateOptions()...,
	)
	if err != nil {
		return Outcome{}, err
	}

	return outcome(res, float64(res.Value.Estimate())), nil
}
