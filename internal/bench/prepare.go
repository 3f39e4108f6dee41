package bench

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/chunkfold/pkg/dataset"
	"github.com/Sumatoshi-tech/chunkfold/pkg/measure"
	"github.com/Sumatoshi-tech/chunkfold/pkg/storage/binfile"
	"github.com/Sumatoshi-tech/chunkfold/pkg/storage/csvfile"
	"github.com/Sumatoshi-tech/chunkfold/pkg/storage/jsonlfile"
	"github.com/Sumatoshi-tech/chunkfold/pkg/storage/parquetfile"
	"github.com/Sumatoshi-tech/chunkfold/pkg/storage/sqlitedb"
)

// Dataset file names inside Env.Dir.
const (
	FileIDsCSV         = "ids.csv"
	FileRecordsCSV     = "records.csv"
	FileRecordsJSONL   = "records.jsonl"
	FileRecordsParquet = "records.parquet"
	FileRecordsDB      = "records.db"
	FileValuesBin      = "values.bin"
	FileValuesLZ4      = "values.lz4"

	fileManifest = "manifest.yaml"
)

// Progress receives one Add per written file. *progressbar.ProgressBar
// satisfies it.
type Progress interface {
	Describe(description string)
	Add(n int) error
}

type manifest struct {
	Rows  int64    `yaml:"rows"`
	Seed  uint64   `yaml:"seed"`
	Files []string `yaml:"files"`
}

type step struct {
	file  string
	write func(ctx context.Context, path string) error
}

func steps(env Env) []step {
	records := dataset.Records(env.Rows, env.Seed)
	values := dataset.Uniform(env.Rows, env.Seed)

	return []step{
		{FileIDsCSV, func(ctx context.Context, path string) error {
			return csvfile.Write(ctx, path, dataset.Doubled(env.Rows))
		}},
		{FileRecordsCSV, func(ctx context.Context, path string) error {
			return csvfile.Write(ctx, path, records)
		}},
		{FileRecordsJSONL, func(ctx context.Context, path string) error {
			return jsonlfile.Write(ctx, path, records)
		}},
		{FileRecordsParquet, func(ctx context.Context, path string) error {
			return parquetfile.Write(ctx, path, records, parquetfile.DefaultRowGroupSize)
		}},
		{FileRecordsDB, func(ctx context.Context, path string) error {
			return sqlitedb.Load(ctx, path, records, sqlitedb.DefaultBatch)
		}},
		{FileValuesBin, func(ctx context.Context, path string) error {
			return binfile.Write(ctx, path, values)
		}},
		{FileValuesLZ4, func(ctx context.Context, path string) error {
			return binfile.WriteLZ4(ctx, path, values)
		}},
	}
}

// PrepareSteps is the number of Progress.Add calls Prepare makes.
const PrepareSteps = 7

// Prepare writes every dataset file into env.Dir. Files from an earlier call
// with the same rows and seed are reused.
func Prepare(ctx context.Context, env Env, progress Progress) error {
	err := os.MkdirAll(env.Dir, 0o750)
	if err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	plan := steps(env)
	want := manifest{Rows: env.Rows, Seed: env.Seed}

	for _, s := range plan {
		want.Files = append(want.Files, s.file)
	}

	if upToDate(env, want) {
		env.logger().InfoContext(ctx, "bench: dataset up to date", "dir", env.Dir, "rows", env.Rows)
		progress.Describe("dataset up to date")

		return progress.Add(len(plan))
	}

	for _, s := range plan {
		progress.Describe(s.file)

		path := env.Path(s.file)

		err = os.Remove(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove stale %s: %w", s.file, err)
		}

		write := measure.Instrument("prepare "+s.file, env.logger(), func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.write(ctx, path)
		})

		_, err = write(ctx)
		if err != nil {
			return fmt.Errorf("write %s: %w", s.file, err)
		}

		err = progress.Add(1)
		if err != nil {
			return err
		}
	}

	raw, err := yaml.Marshal(want)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	err = os.WriteFile(env.Path(fileManifest), raw, 0o600)
	if err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	env.logger().InfoContext(ctx, "bench: dataset written", "dir", env.Dir, "rows", env.Rows)

	return nil
}

func upToDate(env Env, want manifest) bool {
	raw, err := os.ReadFile(env.Path(fileManifest))
	if err != nil {
		return false
	}

	var got manifest

	err = yaml.Unmarshal(raw, &got)
	if err != nil || got.Rows != want.Rows || got.Seed != want.Seed || len(got.Files) != len(want.Files) {
		return false
	}

	for _, f := range want.Files {
		_, err = os.Stat(env.Path(f))
		if err != nil {
			return false
		}
	}

	return true
}
