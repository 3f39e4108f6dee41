package bench

import (
	"context"
	"errors"

	"github.com/Sumatoshi-tech/chunkfold/pkg/accum"
	"github.com/Sumatoshi-tech/chunkfold/pkg/aggregate"
	"github.com/Sumatoshi-tech/chunkfold/pkg/dataset"
	"github.com/Sumatoshi-tech/chunkfold/pkg/source"
	"github.com/Sumatoshi-tech/chunkfold/pkg/storage/csvfile"
	"github.com/Sumatoshi-tech/chunkfold/pkg/storage/jsonlfile"
	"github.com/Sumatoshi-tech/chunkfold/pkg/storage/parquetfile"
	"github.com/Sumatoshi-tech/chunkfold/pkg/storage/sqlitedb"
)

// frameVariants sum the value column of the id/value/category table stored
// in every tabular format.
func frameVariants() []Variant {
	return []Variant{
		{Name: "frame/naive", Group: GroupFrame, Baseline: true, Run: frameNaive},
		{Name: "frame/csv", Group: GroupFrame, Run: frameCSV},
		{Name: "frame/parquet", Group: GroupFrame, Run: frameParquet},
		{Name: "frame/jsonl", Group: GroupFrame, Run: frameJSONL},
		{Name: "frame/sqlite-pushdown", Group: GroupFrame, Run: frameSQLitePushdown},
		{Name: "frame/sqlite-paged", Group: GroupFrame, Run: frameSQLitePaged},
		{Name: "frame/decimal", Group: GroupFrame, Run: frameDecimal},
		{Name: "frame/efficient-types", Group: GroupFrame, Tolerance: Float32Tolerance, Run: frameEfficientTypes},
	}
}

// Float32Tolerance is the relative tolerance of variants that narrow values
// to float32 before folding them.
const Float32Tolerance = 1e-4

func openRecordsCSV(env Env) (*csvfile.File[dataset.Record], error) {
	return csvfile.Open(env.Path(FileRecordsCSV), csvfile.RecordDecoder())
}

func recordSum(ctx context.Context, env Env, src source.Source[dataset.Record]) (Outcome, error) {
	res, err := aggregate.Chunked(ctx, src, env.ChunkSize, accum.KahanSum{}, accum.KahanOf(dataset.RecordValue),
		env.aggregateOptions()...)
	if err != nil {
		return Outcome{}, err
	}

	return outcome(res, res.Value.Value()), nil
}

func frameNaive(ctx context.Context, env Env) (Outcome, error) {
	f, err := openRecordsCSV(env)
	if err != nil {
		return Outcome{}, err
	}

	res, err := aggregate.Naive(ctx, f, accum.KahanSum{}, accum.KahanOf(dataset.RecordValue),
		aggregate.WithLogger(env.logger()))
	if err != nil {
		return Outcome{}, err
	}

	return outcome(res, res.Value.Value()), nil
}

func frameCSV(ctx context.Context, env Env) (Outcome, error) {
	f, err := openRecordsCSV(env)
	if err != nil {
		return Outcome{}, err
	}

	return recordSum(ctx, env, f)
}

func frameParquet(ctx context.Context, env Env) (Outcome, error) {
	f, err := parquetfile.Open[dataset.Record](env.Path(FileRecordsParquet))
	if err != nil {
		return Outcome{}, err
	}

	return recordSum(ctx, env, f)
}

func frameJSONL(ctx context.Context, env Env) (Outcome, error) {
	f, err := jsonlfile.Open(env.Path(FileRecordsJSONL), jsonlfile.RecordDecoder())
	if err != nil {
		return Outcome{}, err
	}

	return recordSum(ctx, env, f)
}

func frameSQLitePushdown(ctx context.Context, env Env) (out Outcome, err error) {
	db, err := sqlitedb.Open(env.Path(FileRecordsDB))
	if err != nil {
		return Outcome{}, err
	}
	defer func() { err = errors.Join(err, db.Close()) }()

	sum, err := db.SumValue(ctx)
	if err != nil {
		return Outcome{}, err
	}

	n, err := db.Len(ctx)
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{Value: sum, Records: n}, nil
}

func frameSQLitePaged(ctx context.Context, env Env) (out Outcome, err error) {
	db, err := sqlitedb.Open(env.Path(FileRecordsDB))
	if err != nil {
		return Outcome{}, err
	}
	defer func() { err = errors.Join(err, db.Close()) }()

	return recordSum(ctx, env, db)
}

// frameDecimal sums the Parquet values exactly.
func frameDecimal(ctx context.Context, env Env) (Outcome, error) {
	f, err := parquetfile.Open[dataset.Record](env.Path(FileRecordsParquet))
	if err != nil {
		return Outcome{}, err
	}

	res, err := aggregate.Chunked(ctx, f, env.ChunkSize, accum.DecimalSum{}, accum.DecimalOf(dataset.RecordValue),
		env.aggregateOptions()...)
	if err != nil {
		return Outcome{}, err
	}

	return outcome(res, res.Value.Float64()), nil
}

// frameEfficientTypes decodes every row into a dataset.Compact and folds the
// widened float32 values.
func frameEfficientTypes(ctx context.Context, env Env) (Outcome, error) {
	f, err := csvfile.Open(env.Path(FileRecordsCSV), csvfile.CompactDecoder())
	if err != nil {
		return Outcome{}, err
	}

	res, err := aggregate.Chunked(ctx, f, env.ChunkSize, accum.KahanSum{}, accum.KahanOf(dataset.CompactValue),
		env.aggregateOptions()...)
	if err != nil {
		return Outcome{}, err
	}

	return outcome(res, res.Value.Value()), nil
}
