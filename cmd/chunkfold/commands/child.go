package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/chunkfold/internal/bench"
	"github.com/Sumatoshi-tech/chunkfold/internal/config"
	"github.com/Sumatoshi-tech/chunkfold/internal/isolate"
	"github.com/Sumatoshi-tech/chunkfold/internal/observability"
	"github.com/Sumatoshi-tech/chunkfold/pkg/measure"
)

const childCommand = "child"

func newChildCommand() *cobra.Command {
	var (
		variant string
		env     bench.Env
	)

	cmd := &cobra.Command{
		Use:    childCommand,
		Short:  "Measure one variant and print its payload (used by run --isolate)",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := bench.Lookup(variant)
			if err != nil {
				return err
			}

			oc := observability.DefaultConfig()
			oc.Mode = observability.ModeChild
			env.Logger = observability.NewLogger(oc)

			return isolate.Serve(cmd.Context(), cmd.OutOrStdout(), v, env,
				measure.WithSampleInterval(time.Millisecond),
				measure.WithGC(true),
			)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&variant, isolate.FlagVariant, "", "group/name of the variant")
	fl.StringVar(&env.Dir, isolate.FlagDataDir, config.DefaultDir, "dataset directory")
	fl.Int64Var(&env.Rows, isolate.FlagRows, config.DefaultRows, "dataset rows")
	fl.Uint64Var(&env.Seed, isolate.FlagSeed, config.DefaultSeed, "dataset seed")
	fl.IntVar(&env.ChunkSize, isolate.FlagChunkSize, config.DefaultChunkSize, "records per window")
	fl.IntVar(&env.Workers, isolate.FlagWorkers, 1, "partitioned workers")
	fl.DurationVar(&env.Timeout, isolate.FlagTimeout, 0, "partitioned worker timeout")

	_ = cmd.MarkFlagRequired(isolate.FlagVariant)

	return cmd
}
