// Package isolate runs gallery variants in child processes, so every
// measurement session owns a fresh heap and none of them nest.
package isolate

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/xeipuuv/gojsonschema"

	"github.com/Sumatoshi-tech/chunkfold/internal/bench"
	"github.com/Sumatoshi-tech/chunkfold/pkg/measure"
)

//go:embed payload.schema.json
var payloadSchema []byte

var schemaLoader = gojsonschema.NewBytesLoader(payloadSchema)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// ErrChildFailed is returned when the child exits unsuccessfully.
	ErrChildFailed = errors.New("child process failed")
	// ErrInvalidPayload is returned when the child output does not match the schema.
	ErrInvalidPayload = errors.New("invalid child payload")
	// ErrVariant wraps the error a variant reported from inside the child.
	ErrVariant = errors.New("variant error")
)

// stderrTail is how much child stderr is kept for error messages.
const stderrTail = 4 << 10

// Child flag names shared by ChildArgs and the child command.
const (
	FlagVariant   = "variant"
	FlagDataDir   = "data-dir"
	FlagRows      = "rows"
	FlagSeed      = "seed"
	FlagChunkSize = "chunk-size"
	FlagWorkers   = "workers"
	FlagTimeout   = "timeout"
)

// Payload is the JSON document a child writes to stdout.
type Payload struct {
	Variant    string  `json:"variant"`
	Value      float64 `json:"value"`
	Records    int64   `json:"records"`
	HeldBytes  uint64  `json:"held_bytes,omitempty"`
	DurationNS int64   `json:"duration_ns"`
	PeakBytes  uint64  `json:"peak_bytes"`
	AllocBytes uint64  `json:"alloc_bytes"`
	Mallocs    uint64  `json:"mallocs"`
	NumGC      uint64  `json:"num_gc"`
	RSSBytes   uint64  `json:"rss_bytes"`
	Error      string  `json:"error,omitempty"`
}

// Outcome returns the variant result carried by p.
func (p Payload) Outcome() bench.Outcome {
	return bench.Outcome{Value: p.Value, Records: p.Records, HeldBytes: p.HeldBytes}
}

// Sample returns the measurement carried by p.
func (p Payload) Sample() measure.Sample {
	return measure.Sample{
		Duration:   time.Duration(p.DurationNS),
		PeakBytes:  p.PeakBytes,
		AllocBytes: p.AllocBytes,
		Mallocs:    p.Mallocs,
		NumGC:      p.NumGC,
		RSSBytes:   p.RSSBytes,
	}
}

// Err returns the variant error reported by the child, if any.
func (p Payload) Err() error {
	if p.Error == "" {
		return nil
	}

	return fmt.Errorf("%w: %s: %s", ErrVariant, p.Variant, p.Error)
}

// Decode validates raw against the payload schema and decodes it.
func Decode(raw []byte) (Payload, error) {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))

		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}

		return Payload{}, fmt.Errorf("%w: %s", ErrInvalidPayload, strings.Join(msgs, "; "))
	}

	var p Payload

	err = json.Unmarshal(raw, &p)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	return p, nil
}

// Serve measures v in the current process and writes its Payload to w.
// A variant error is reported inside the payload, not returned.
func Serve(ctx context.Context, w io.Writer, v bench.Variant, env bench.Env, opts ...measure.Option) error {
	out, sample, err := measure.Measure(ctx, func(ctx context.Context) (bench.Outcome, error) {
		return v.Run(ctx, env)
	}, opts...)

	p := Payload{
		Variant:    v.Name,
		Value:      out.Value,
		Records:    out.Records,
		HeldBytes:  out.HeldBytes,
		DurationNS: sample.Duration.Nanoseconds(),
		PeakBytes:  sample.PeakBytes,
		AllocBytes: sample.AllocBytes,
		Mallocs:    sample.Mallocs,
		NumGC:      sample.NumGC,
		RSSBytes:   sample.RSSBytes,
	}

	if err != nil {
		p.Error = err.Error()
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	_, err = w.Write(append(raw, '\n'))
	if err != nil {
		return fmt.Errorf("write payload: %w", err)
	}

	return nil
}

// ChildArgs renders env as child command flags.
func ChildArgs(env bench.Env) []string {
	return []string{
		"--" + FlagDataDir, env.Dir,
		"--" + FlagRows, strconv.FormatInt(env.Rows, 10),
		"--" + FlagSeed, strconv.FormatUint(env.Seed, 10),
		"--" + FlagChunkSize, strconv.Itoa(env.ChunkSize),
		"--" + FlagWorkers, strconv.Itoa(env.Workers),
		"--" + FlagTimeout, env.Timeout.String(),
	}
}

// Runner starts child processes.
type Runner struct {
	// Exe is the binary to run. Empty means the current executable.
	Exe string
	// Args precede the generated flags, e.g. the child subcommand.
	Args []string
	// Env is appended to the parent environment.
	Env    []string
	Logger *slog.Logger
}

// Run executes one variant over env in a child and returns its payload.
func (r Runner) Run(ctx context.Context, variant string, env bench.Env) (Payload, error) {
	exe := r.Exe
	if exe == "" {
		self, err := os.Executable()
		if err != nil {
			return Payload{}, fmt.Errorf("locate executable: %w", err)
		}

		exe = self
	}

	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	args := append(append([]string{}, r.Args...), ChildArgs(env)...)
	args = append(args, "--"+FlagVariant, variant)

	var (
		stdout bytes.Buffer
		stderr tail
	)

	cmd := exec.CommandContext(ctx, exe, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Env = append(os.Environ(), r.Env...)

	logger.DebugContext(ctx, "isolate: starting child", "variant", variant, "exe", exe)

	err := cmd.Run()
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %s: %w: %s", ErrChildFailed, variant, err, stderr.String())
	}

	p, err := Decode(bytes.TrimSpace(stdout.Bytes()))
	if err != nil {
		return Payload{}, fmt.Errorf("%s: %w: %s", variant, err, stderr.String())
	}

	return p, nil
}

// Executor adapts r to bench.Executor. The child looks the variant up by
// name, so only gallery variants can be isolated.
func (r Runner) Executor() bench.Executor {
	return func(ctx context.Context, v bench.Variant, env bench.Env) (bench.Outcome, measure.Sample, error) {
		p, err := r.Run(ctx, v.Name, env)
		if err != nil {
			return bench.Outcome{}, measure.Sample{}, err
		}

		return p.Outcome(), p.Sample(), p.Err()
	}
}

// tail keeps the last stderrTail bytes written to it.
type tail struct {
	buf []byte
}

func (t *tail) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if len(t.buf) > stderrTail {
		t.buf = t.buf[len(t.buf)-stderrTail:]
	}

	return len(p), nil
}

func (t *tail) String() string {
	return strings.TrimSpace(string(t.buf))
}
