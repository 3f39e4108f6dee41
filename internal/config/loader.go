package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

const (
	configName = ".chunkfold"
	configType = "yaml"
	envPrefix  = "CHUNKFOLD"
)

// Defaults.
const (
	DefaultDir            = "data"
	DefaultRows           = 1_000_000
	DefaultSeed           = 42
	DefaultChunkSize      = 100_000
	DefaultSampleInterval = "1ms"
	DefaultTrials         = 1
	DefaultFormat         = "text"
	DefaultLogLevel       = "info"
)

// Load reads configuration from path, or from .chunkfold.yaml in the
// working directory when path is empty. A missing file is not an error.
// CHUNKFOLD_* environment variables override file values.
func Load(path string) (*Config, error) {
	v := viper.New()

	applyDefaults(v)

	v.SetConfigType(configType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
	}

	err := v.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config

	err = v.Unmarshal(&cfg)
	if err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("dataset.dir", DefaultDir)
	v.SetDefault("dataset.rows", DefaultRows)
	v.SetDefault("dataset.seed", DefaultSeed)
	v.SetDefault("dataset.target_size", "")

	v.SetDefault("aggregate.chunk_size", DefaultChunkSize)
	v.SetDefault("aggregate.workers", runtime.NumCPU())
	v.SetDefault("aggregate.timeout", "0s")

	v.SetDefault("measure.sample_interval", DefaultSampleInterval)
	v.SetDefault("measure.gc", true)
	v.SetDefault("measure.trials", DefaultTrials)
	v.SetDefault("measure.isolate", false)

	v.SetDefault("report.format", DefaultFormat)
	v.SetDefault("report.output", "")

	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.json", false)

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.otlp_headers", "")
	v.SetDefault("telemetry.otlp_insecure", false)
	v.SetDefault("telemetry.metrics_addr", "")
}
