package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/metric"

	"github.com/Sumatoshi-tech/chunkfold/internal/bench"
	"github.com/Sumatoshi-tech/chunkfold/internal/config"
	"github.com/Sumatoshi-tech/chunkfold/internal/isolate"
	"github.com/Sumatoshi-tech/chunkfold/internal/observability"
	"github.com/Sumatoshi-tech/chunkfold/internal/report"
	"github.com/Sumatoshi-tech/chunkfold/pkg/measure"
)

const (
	meterName         = "github.com/Sumatoshi-tech/chunkfold/cmd/chunkfold"
	readHeaderTimeout = 5 * time.Second
)

type runFlags struct {
	datasetFlags

	groups         []string
	variants       []string
	trials         int
	isolate        bool
	format         string
	output         string
	metricsAddr    string
	sampleInterval time.Duration
	timeout        time.Duration
	cpuProfile     string
	heapProfile    string
}

func newRunCommand() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Measure the strategy gallery",
		Long: `Run prepares the dataset if needed, measures every selected variant and
checks that each variant agrees with its group baseline. The command fails
when any variant errors or disagrees.`,
		Example: `  chunkfold run --rows 1000000 --group csv,array
  chunkfold run --variant frame/parquet --isolate --format json -o report.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return flags.run(cmd)
		},
	}

	flags.register(cmd, true)

	fl := cmd.Flags()
	fl.StringSliceVarP(&flags.groups, "group", "g", nil, "groups to run (default all)")
	fl.StringSliceVar(&flags.variants, "variant", nil, "group/name variants to run")
	fl.IntVar(&flags.trials, "trials", config.DefaultTrials, "measured repetitions per variant")
	fl.BoolVar(&flags.isolate, "isolate", false, "measure each variant in a fresh child process")
	fl.StringVarP(&flags.format, "format", "f", config.DefaultFormat, "report format: text, json, yaml, html")
	fl.StringVarP(&flags.output, "output", "o", "", "report file (default stdout)")
	fl.StringVar(&flags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	fl.DurationVar(&flags.sampleInterval, "sample-interval", time.Millisecond, "heap sampling interval")
	fl.DurationVar(&flags.timeout, "timeout", 0, "partitioned worker timeout (0 disables)")
	fl.StringVar(&flags.cpuProfile, "cpuprofile", "", "write a CPU profile to this file")
	fl.StringVar(&flags.heapProfile, "heapprofile", "", "write a heap profile to this file")

	return cmd
}

func (f *runFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	changed := cmd.Flags().Changed

	if changed("trials") {
		cfg.Measure.Trials = f.trials
	}

	if changed("isolate") {
		cfg.Measure.Isolate = f.isolate
	}

	if changed("sample-interval") {
		cfg.Measure.SampleInterval = f.sampleInterval
	}

	if changed("format") {
		cfg.Report.Format = f.format
	}

	if changed("output") {
		cfg.Report.Output = f.output
	}

	if changed("metrics-addr") {
		cfg.Telemetry.MetricsAddr = f.metricsAddr
	}

	if changed("timeout") {
		cfg.Aggregate.Timeout = f.timeout
	}

	return cfg.Validate()
}

func (f *runFlags) run(cmd *cobra.Command) (err error) {
	ctx := cmd.Context()

	cfg, err := f.settings(cmd)
	if err != nil {
		return err
	}

	err = f.apply(cmd, cfg)
	if err != nil {
		return fmt.Errorf("validate settings: %w", err)
	}

	oc, err := observabilityConfig(cfg, observability.ModeCLI)
	if err != nil {
		return err
	}

	providers, err := observability.Init(oc)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	defer func() {
		err = errors.Join(err, providers.Shutdown(context.Background()))
	}()

	logger := providers.Logger

	meter := providers.Meter

	if cfg.Telemetry.MetricsAddr != "" {
		stop, promMeter, serveErr := serveMetrics(cfg.Telemetry.MetricsAddr, logger)
		if serveErr != nil {
			return serveErr
		}
		defer stop()

		meter = promMeter
	}

	metrics, err := observability.NewRunMetrics(meter)
	if err != nil {
		return err
	}

	env, err := benchEnv(cfg, logger)
	if err != nil {
		return err
	}

	variants, err := bench.Select(f.groups, f.variants)
	if err != nil {
		return err
	}

	err = prepare(cmd, env)
	if err != nil {
		return fmt.Errorf("prepare dataset: %w", err)
	}

	executor := bench.InProcess(
		measure.WithSampleInterval(cfg.Measure.SampleInterval),
		measure.WithGC(cfg.Measure.GC),
	)

	if cfg.Measure.Isolate {
		executor = isolate.Runner{
			Args:   []string{childCommand},
			Logger: logger,
		}.Executor()
	}

	stopCPU, err := maybeStartCPUProfile(f.cpuProfile)
	if err != nil {
		return err
	}

	rep, err := bench.Run(ctx, env, variants, bench.Options{
		Trials:   cfg.Measure.Trials,
		Executor: executor,
		Metrics:  metrics,
	})

	stopCPU()
	maybeWriteHeapProfile(f.heapProfile, logger)

	if err != nil {
		return err
	}

	err = writeReport(cmd.OutOrStdout(), cfg.Report, rep)
	if err != nil {
		return err
	}

	return rep.Err()
}

func writeReport(stdout io.Writer, cfg config.ReportConfig, rep bench.Report) (err error) {
	if cfg.Output == "" {
		return report.Write(stdout, rep, cfg.Format)
	}

	file, err := os.Create(cfg.Output)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}

	defer func() {
		err = errors.Join(err, file.Close())
	}()

	return report.Write(file, rep, cfg.Format)
}

// serveMetrics exposes a Prometheus endpoint until the returned stop
// function is called.
func serveMetrics(addr string, logger *slog.Logger) (func(), metric.Meter, error) {
	handler, mp, err := observability.PrometheusProvider()
	if err != nil {
		return nil, nil, err
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: readHeaderTimeout}

	go func() {
		serveErr := srv.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "error", serveErr)
		}
	}()

	logger.Info("serving metrics", "addr", listener.Addr().String())

	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), readHeaderTimeout)
		defer cancel()

		shutdown(ctx, logger, "metrics server", srv.Shutdown)
		shutdown(ctx, logger, "metrics provider", mp.Shutdown)
	}

	return stop, mp.Meter(meterName), nil
}

// shutdown calls fn and logs the error it returns.
func shutdown(ctx context.Context, logger *slog.Logger, what string, fn func(context.Context) error) {
	err := fn(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "shutdown failed", "component", what, "error", err)
	}
}
