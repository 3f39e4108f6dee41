package commands

import (
	"fmt"
	"log/slog"
	"unsafe"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/chunkfold/internal/bench"
	"github.com/Sumatoshi-tech/chunkfold/internal/config"
	"github.com/Sumatoshi-tech/chunkfold/internal/observability"
	"github.com/Sumatoshi-tech/chunkfold/pkg/aggregate"
	"github.com/Sumatoshi-tech/chunkfold/pkg/dataset"
	"github.com/Sumatoshi-tech/chunkfold/pkg/units"
	"github.com/Sumatoshi-tech/chunkfold/pkg/version"
)

// Flag names shared by generate and run.
const (
	flagConfig     = "config"
	flagDataDir    = "data-dir"
	flagRows       = "rows"
	flagTargetSize = "target-size"
	flagSeed       = "seed"
	flagChunkSize  = "chunk-size"
	flagWorkers    = "workers"
	flagBudget     = "budget"
	flagVerbose    = "verbose"
)

// datasetFlags are the flags that override config file values.
type datasetFlags struct {
	configPath string
	dataDir    string
	rows       int64
	targetSize string
	seed       uint64
	chunkSize  int
	workers    int
	budget     string
	verbose    bool
}

func (f *datasetFlags) register(cmd *cobra.Command, aggregation bool) {
	fl := cmd.Flags()
	fl.StringVar(&f.configPath, flagConfig, "", "config file (default .chunkfold.yaml)")
	fl.StringVar(&f.dataDir, flagDataDir, config.DefaultDir, "dataset directory")
	fl.Int64Var(&f.rows, flagRows, config.DefaultRows, "dataset rows")
	fl.StringVar(&f.targetSize, flagTargetSize, "", "dataset size as bytes of float64 values, e.g. 512MiB (overrides --rows)")
	fl.Uint64Var(&f.seed, flagSeed, config.DefaultSeed, "dataset seed")
	fl.BoolVarP(&f.verbose, flagVerbose, "v", false, "debug logging")

	if aggregation {
		fl.IntVar(&f.chunkSize, flagChunkSize, config.DefaultChunkSize, "records per window")
		fl.IntVar(&f.workers, flagWorkers, 0, "partitioned workers (default from config, else CPU count)")
		fl.StringVar(&f.budget, flagBudget, "", "window memory budget, e.g. 64MiB (overrides --chunk-size)")
	}
}

// settings loads the config file and applies the flags the user set.
func (f *datasetFlags) settings(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed

	if changed(flagDataDir) {
		cfg.Dataset.Dir = f.dataDir
	}

	if changed(flagRows) {
		cfg.Dataset.Rows = f.rows
		cfg.Dataset.TargetSize = ""
	}

	if changed(flagTargetSize) {
		cfg.Dataset.TargetSize = f.targetSize
	}

	if changed(flagSeed) {
		cfg.Dataset.Seed = f.seed
	}

	if changed(flagChunkSize) {
		cfg.Aggregate.ChunkSize = f.chunkSize
	}

	if changed(flagWorkers) {
		cfg.Aggregate.Workers = f.workers
	}

	if changed(flagBudget) {
		budget, parseErr := units.ParseBytes(f.budget)
		if parseErr != nil {
			return nil, fmt.Errorf("--%s: %w", flagBudget, parseErr)
		}

		cfg.Aggregate.ChunkSize = aggregate.ChunkSizeForBudget(budget, uint64(unsafe.Sizeof(dataset.Record{})))
	}

	if f.verbose {
		cfg.Logging.Level = slog.LevelDebug.String()
	}

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate settings: %w", err)
	}

	return cfg, nil
}

func observabilityConfig(cfg *config.Config, mode observability.AppMode) (observability.Config, error) {
	level, err := cfg.Logging.SlogLevel()
	if err != nil {
		return observability.Config{}, err
	}

	oc := observability.DefaultConfig()
	oc.ServiceVersion = version.Version
	oc.Mode = mode
	oc.LogLevel = level
	oc.LogJSON = cfg.Logging.JSON
	oc.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	oc.OTLPHeaders = observability.ParseOTLPHeaders(cfg.Telemetry.OTLPHeaders)
	oc.OTLPInsecure = cfg.Telemetry.OTLPInsecure

	return oc, nil
}

func benchEnv(cfg *config.Config, logger *slog.Logger) (bench.Env, error) {
	rows, err := cfg.Dataset.ResolvedRows()
	if err != nil {
		return bench.Env{}, err
	}

	return bench.Env{
		Dir:       cfg.Dataset.Dir,
		Rows:      rows,
		Seed:      cfg.Dataset.Seed,
		ChunkSize: cfg.Aggregate.ChunkSize,
		Workers:   cfg.Aggregate.Workers,
		Timeout:   cfg.Aggregate.Timeout,
		Logger:    logger,
	}, nil
}
