package commands

import (
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/chunkfold/internal/bench"
	"github.com/Sumatoshi-tech/chunkfold/internal/observability"
)

func newGenerateCommand() *cobra.Command {
	var flags datasetFlags

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write the dataset in every storage format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.settings(cmd)
			if err != nil {
				return err
			}

			oc, err := observabilityConfig(cfg, observability.ModeCLI)
			if err != nil {
				return err
			}

			env, err := benchEnv(cfg, observability.NewLogger(oc))
			if err != nil {
				return err
			}

			return prepare(cmd, env)
		},
	}

	flags.register(cmd, false)

	return cmd
}

func prepare(cmd *cobra.Command, env bench.Env) error {
	bar := progressbar.NewOptions(bench.PrepareSteps,
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionSetDescription("dataset"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	err := bench.Prepare(cmd.Context(), env, bar)
	if err != nil {
		return err
	}

	return bar.Finish()
}
