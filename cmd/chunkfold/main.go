// Package main is the chunkfold CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/Sumatoshi-tech/chunkfold/cmd/chunkfold/commands"
	"github.com/Sumatoshi-tech/chunkfold/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	err := commands.NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
