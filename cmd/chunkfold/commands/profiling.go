package commands

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"runtime/pprof"
)

// maybeStartCPUProfile starts CPU profiling to path and returns the stop
// function. An empty path is a no-op.
func maybeStartCPUProfile(path string) (func(), error) {
	if path == "" {
		return func() {}, nil
	}

	profileFile, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create CPU profile: %w", err)
	}

	err = pprof.StartCPUProfile(profileFile)
	if err != nil {
		_ = profileFile.Close()

		return nil, fmt.Errorf("start CPU profile: %w", err)
	}

	return func() {
		pprof.StopCPUProfile()

		_ = profileFile.Close()
	}, nil
}

// maybeWriteHeapProfile writes a heap profile after a forced GC. Failures
// are logged since the run itself already finished.
func maybeWriteHeapProfile(path string, logger *slog.Logger) {
	if path == "" {
		return
	}

	profileFile, err := os.Create(path)
	if err != nil {
		logger.Error("create heap profile", "path", path, "error", err)

		return
	}
	defer profileFile.Close()

	runtime.GC()

	err = pprof.WriteHeapProfile(profileFile)
	if err != nil {
		logger.Error("write heap profile", "path", path, "error", err)
	}
}
