package isolate_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/chunkfold/internal/bench"
	"github.com/Sumatoshi-tech/chunkfold/internal/isolate"
)

const helperEnv = "CHUNKFOLD_ISOLATE_HELPER"

// TestMain doubles as the child process when helperEnv is set.
func TestMain(m *testing.M) {
	mode := os.Getenv(helperEnv)
	if mode == "" {
		os.Exit(m.Run())
	}

	os.Exit(runHelper(mode))
}

func flagValue(name string) string {
	i := slices.Index(os.Args, "--"+name)
	if i < 0 || i+1 >= len(os.Args) {
		return ""
	}

	return os.Args[i+1]
}

func runHelper(mode string) int {
	rows, _ := strconv.ParseInt(flagValue(isolate.FlagRows), 10, 64)
	env := bench.Env{Rows: rows}
	name := flagValue(isolate.FlagVariant)

	switch mode {
	case "ok":
		v := bench.Variant{Name: name, Run: func(_ context.Context, env bench.Env) (bench.Outcome, error) {
			return bench.Outcome{Value: float64(2 * env.Rows), Records: env.Rows, HeldBytes: uint64(8 * env.Rows)}, nil
		}}

		if isolate.Serve(context.Background(), os.Stdout, v, env) != nil {
			return 1
		}
	case "varerr":
		v := bench.Variant{Name: name, Run: func(context.Context, bench.Env) (bench.Outcome, error) {
			return bench.Outcome{}, errors.New("file vanished")
		}}

		if isolate.Serve(context.Background(), os.Stdout, v, env) != nil {
			return 1
		}
	case "garbage":
		fmt.Println(`{"variant": "x", "value": "lots"}`)
	case "fail":
		fmt.Fprintln(os.Stderr, "disk on fire")

		return 3
	}

	return 0
}

func runner(mode string) isolate.Runner {
	return isolate.Runner{
		Exe:  os.Args[0],
		Args: []string{"child"},
		Env:  []string{helperEnv + "=" + mode},
	}
}

func TestRunner_RunsVariantInChild(t *testing.T) {
	t.Parallel()

	env := bench.Env{Dir: t.TempDir(), Rows: 21, ChunkSize: 4, Workers: 2, Timeout: time.Second}

	out, sample, err := runner("ok").Executor()(context.Background(), bench.Variant{Name: "csv/chunked"}, env)
	require.NoError(t, err)

	assert.Equal(t, bench.Outcome{Value: 42, Records: 21, HeldBytes: 168}, out)
	assert.Positive(t, sample.Duration)
}

func TestRunner_VariantErrorTravelsInPayload(t *testing.T) {
	t.Parallel()

	p, err := runner("varerr").Run(context.Background(), "frame/csv", bench.Env{Rows: 1})
	require.NoError(t, err)

	require.ErrorIs(t, p.Err(), isolate.ErrVariant)
	assert.Contains(t, p.Err().Error(), "file vanished")
}

func TestRunner_ChildFailureIncludesStderr(t *testing.T) {
	t.Parallel()

	_, err := runner("fail").Run(context.Background(), "array/mmap", bench.Env{})
	require.ErrorIs(t, err, isolate.ErrChildFailed)
	assert.Contains(t, err.Error(), "disk on fire")
}

func TestRunner_RejectsInvalidPayload(t *testing.T) {
	t.Parallel()

	_, err := runner("garbage").Run(context.Background(), "array/mmap", bench.Env{})
	require.ErrorIs(t, err, isolate.ErrInvalidPayload)
}

func TestDecode(t *testing.T) {
	t.Parallel()

	p, err := isolate.Decode([]byte(`{"variant":"a","value":1.5,"records":3,"duration_ns":10,` +
		`"peak_bytes":0,"alloc_bytes":0,"mallocs":0,"num_gc":0,"rss_bytes":0}`))
	require.NoError(t, err)
	assert.Equal(t, bench.Outcome{Value: 1.5, Records: 3}, p.Outcome())

	p, err = isolate.Decode([]byte(`{"variant":"a","value":1.5,"records":3,"held_bytes":24,"duration_ns":10,` +
		`"peak_bytes":0,"alloc_bytes":0,"mallocs":0,"num_gc":0,"rss_bytes":0}`))
	require.NoError(t, err)
	assert.Equal(t, uint64(24), p.Outcome().HeldBytes)
	assert.Equal(t, 10*time.Nanosecond, p.Sample().Duration)
	require.NoError(t, p.Err())

	_, err = isolate.Decode([]byte(`{"variant":"a","value":1,"records":-1,"duration_ns":0,` +
		`"peak_bytes":0,"alloc_bytes":0,"mallocs":0,"num_gc":0,"rss_bytes":0}`))
	require.ErrorIs(t, err, isolate.ErrInvalidPayload)

	_, err = isolate.Decode([]byte(`not json`))
	require.ErrorIs(t, err, isolate.ErrInvalidPayload)
}

func TestChildArgs(t *testing.T) {
	t.Parallel()

	args := isolate.ChildArgs(bench.Env{Dir: "d", Rows: 5, Seed: 3, ChunkSize: 7, Workers: 2, Timeout: time.Minute})
	assert.Equal(t, []string{
		"--data-dir", "d", "--rows", "5", "--seed", "3", "--chunk-size", "7", "--workers", "2", "--timeout", "1m0s",
	}, args)
}
