package bench

import (
	"context"
	"errors"

	"github.com/Sumatoshi-tech/chunkfold/pkg/accum"
	"github.com/Sumatoshi-tech/chunkfold/pkg/aggregate"
	"github.com/Sumatoshi-tech/chunkfold/pkg/dataset"
	"github.com/Sumatoshi-tech/chunkfold/pkg/storage/parquetfile"
	"github.com/Sumatoshi-tech/chunkfold/pkg/storage/sqlitedb"
)

// groupByVariants compute per-category moments of the record table.
func groupByVariants() []Variant {
	return []Variant{
		{Name: "groupby/naive", Group: GroupGroupBy, Baseline: true, Run: groupByNaive},
		{Name: "groupby/chunked", Group: GroupGroupBy, Run: groupByChunked},
		{Name: "groupby/partitioned", Group: GroupGroupBy, Run: groupByPartitioned},
		{Name: "groupby/sqlite", Group: GroupGroupBy, Run: groupBySQLite},
	}
}

var groupFold = accum.GroupOf(dataset.RecordCategory, dataset.RecordValue)

// groupScore folds the per-category means and deviations into one
// comparable number.
func groupScore(g accum.GroupMoments) float64 {
	score := 0.0

	for _, k := range g.Keys() {
		m := g[k]
		score += m.Mean() + m.Std()
	}

	return score
}

func groupRecords(g accum.GroupMoments) int64 {
	var n int64

	for _, m := range g {
		n += m.Count
	}

	return n
}

func groupByNaive(ctx context.Context, env Env) (Outcome, error) {
	f, err := openRecordsCSV(env)
	if err != nil {
		return Outcome{}, err
	}

	res, err := aggregate.Naive(ctx, f, accum.GroupMoments{}, groupFold, aggregate.WithLogger(env.logger()))
	if err != nil {
		return Outcome{}, err
	}

	return outcome(res, groupScore(res.Value)), nil
}

func groupByChunked(ctx context.Context, env Env) (Outcome, error) {
	f, err := openRecordsCSV(env)
	if err != nil {
		return Outcome{}, err
	}

	res, err := aggregate.Chunked(ctx, f, env.ChunkSize, accum.GroupMoments{}, groupFold, env.aggregateOptions()...)
	if err != nil {
		return Outcome{}, err
	}

	return outcome(res, groupScore(res.Value)), nil
}

func groupByPartitioned(ctx context.Context, env Env) (Outcome, error) {
	f, err := parquetfile.Open[dataset.Record](env.Path(FileRecordsParquet))
	if err != nil {
		return Outcome{}, err
	}

	res, err := aggregate.Partitioned(ctx, f, env.Workers,
		func() accum.GroupMoments { return accum.GroupMoments{} },
		groupFold,
		accum.Combiner[accum.GroupMoments](),
		env.aggregateOptions()...,
	)
	if err != nil {
		return Outcome{}, err
	}

	return outcome(res, groupScore(res.Value)), nil
}

func groupBySQLite(ctx context.Context, env Env) (out Outcome, err error) {
	db, err := sqlitedb.Open(env.Path(FileRecordsDB))
	if err != nil {
		return Outcome{}, err
	}
	defer func() { err = errors.Join(err, db.Close()) }()

	g, err := db.GroupMoments(ctx)
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{Value: groupScore(g), Records: groupRecords(g)}, nil
}
