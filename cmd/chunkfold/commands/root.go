// Package commands implements the chunkfold subcommands.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/chunkfold/pkg/version"
)

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "chunkfold",
		Short: "Compare the memory and time cost of data-loading strategies",
		Long: `chunkfold generates a synthetic dataset in several storage formats and
aggregates it with whole-file loads, chunked reads, streaming, memory maps,
columnar files, SQL pushdown and partitioned workers, measuring each.

Commands:
  generate  Write the dataset files
  run       Measure the strategy gallery`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newGenerateCommand())
	root.AddCommand(newRunCommand())
	root.AddCommand(newChildCommand())
	root.AddCommand(newVersionCommand())

	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
