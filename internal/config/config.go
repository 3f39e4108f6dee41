// Package config loads chunkfold run settings from YAML, environment
// variables and defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/Sumatoshi-tech/chunkfold/pkg/units"
)

// Sentinel validation errors.
var (
	ErrInvalidRows           = errors.New("dataset.rows must be positive")
	ErrInvalidTargetSize     = errors.New("dataset.target_size is not a byte size")
	ErrInvalidChunkSize      = errors.New("aggregate.chunk_size must be positive")
	ErrInvalidWorkers        = errors.New("aggregate.workers must be positive")
	ErrInvalidSampleInterval = errors.New("measure.sample_interval must be positive")
	ErrInvalidTrials         = errors.New("measure.trials must be positive")
	ErrInvalidFormat         = errors.New("report.format is not supported")
	ErrInvalidLogLevel       = errors.New("logging.level is not a slog level")
)

// Formats lists the accepted report.format values.
var Formats = []string{"text", "json", "yaml", "html"}

// ValueBytes is the on-disk size of one value in the binary array file.
const ValueBytes = 8

// Config holds every chunkfold setting.
type Config struct {
	Dataset   DatasetConfig   `mapstructure:"dataset"`
	Aggregate AggregateConfig `mapstructure:"aggregate"`
	Measure   MeasureConfig   `mapstructure:"measure"`
	Report    ReportConfig    `mapstructure:"report"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// DatasetConfig controls the generated data files.
type DatasetConfig struct {
	Dir  string `mapstructure:"dir"`
	Rows int64  `mapstructure:"rows"`
	Seed uint64 `mapstructure:"seed"`
	// TargetSize, when set, overrides Rows with the number of float64 values
	// that fill that many bytes ("512MiB", "1GB").
	TargetSize string `mapstructure:"target_size"`
}

// AggregateConfig controls windowing and fan-out.
type AggregateConfig struct {
	ChunkSize int           `mapstructure:"chunk_size"`
	Workers   int           `mapstructure:"workers"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// MeasureConfig controls the instrumentation harness.
type MeasureConfig struct {
	SampleInterval time.Duration `mapstructure:"sample_interval"`
	GC             bool          `mapstructure:"gc"`
	Trials         int           `mapstructure:"trials"`
	Isolate        bool          `mapstructure:"isolate"`
}

// ReportConfig controls report rendering.
type ReportConfig struct {
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// TelemetryConfig controls OpenTelemetry export.
type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string `mapstructure:"otlp_headers"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
	MetricsAddr  string `mapstructure:"metrics_addr"`
}

// ResolvedRows returns the row count, derived from TargetSize when set.
func (d DatasetConfig) ResolvedRows() (int64, error) {
	if d.TargetSize == "" {
		return d.Rows, nil
	}

	size, err := units.ParseBytes(d.TargetSize)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidTargetSize, d.TargetSize, err)
	}

	return int64(size / ValueBytes), nil
}

// SlogLevel parses Level. An empty level is Info.
func (l LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level

	if l.Level == "" {
		return slog.LevelInfo, nil
	}

	err := level.UnmarshalText([]byte(l.Level))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLogLevel, l.Level)
	}

	return level, nil
}

// Validate checks the settings and returns the first violation.
func (c *Config) Validate() error {
	rows, err := c.Dataset.ResolvedRows()
	if err != nil {
		return err
	}

	if rows <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidRows, rows)
	}

	if c.Aggregate.ChunkSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidChunkSize, c.Aggregate.ChunkSize)
	}

	if c.Aggregate.Workers <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Aggregate.Workers)
	}

	if c.Measure.SampleInterval <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidSampleInterval, c.Measure.SampleInterval)
	}

	if c.Measure.Trials <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidTrials, c.Measure.Trials)
	}

	if !slices.Contains(Formats, c.Report.Format) {
		return fmt.Errorf("%w: %q", ErrInvalidFormat, c.Report.Format)
	}

	_, err = c.Logging.SlogLevel()

	return err
}
