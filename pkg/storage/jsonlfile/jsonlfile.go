// Package jsonlfile stores records as JSON lines. Rows are encoded with
// json-iterator and decoded lazily with gjson paths, so a reader only touches
// the fields it asks for.
package jsonlfile

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/tidwall/gjson"

	"github.com/Sumatoshi-tech/chunkfold/pkg/dataset"
	"github.com/Sumatoshi-tech/chunkfold/pkg/lazy"
	"github.com/Sumatoshi-tech/chunkfold/pkg/source"
)

// Sentinel errors.
var (
	ErrMissingField = errors.New("jsonlfile: missing field")
	ErrMalformedRow = errors.New("jsonlfile: malformed row")
)

// maxLineBytes bounds a single JSON line.
const maxLineBytes = 1 << 20

// Decoder decodes one parsed JSON line.
type Decoder[R any] func(row gjson.Result) (R, error)

func field(row gjson.Result, path string) (gjson.Result, error) {
	v := row.Get(path)
	if !v.Exists() {
		return v, fmt.Errorf("%w: %q", ErrMissingField, path)
	}

	return v, nil
}

// Float64Field decodes the number at a gjson path.
func Float64Field(path string) Decoder[float64] {
	return func(row gjson.Result) (float64, error) {
		v, err := field(row, path)
		if err != nil {
			return 0, err
		}

		return v.Float(), nil
	}
}

// RecordDecoder decodes a dataset.Record.
func RecordDecoder() Decoder[dataset.Record] {
	return func(row gjson.Result) (dataset.Record, error) {
		id, err := field(row, "id")
		if err != nil {
			return dataset.Record{}, err
		}

		value, err := field(row, "value")
		if err != nil {
			return dataset.Record{}, err
		}

		return dataset.Record{ID: id.Int(), Value: value.Float(), Category: row.Get("category").String()}, nil
	}
}

// Write encodes every record of src as one JSON line.
func Write[R any](ctx context.Context, path string, src source.Source[R]) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	defer func() {
		closeErr := f.Close()
		if err == nil && closeErr != nil {
			err = fmt.Errorf("close %s: %w", path, closeErr)
		}
	}()

	stream := jsoniter.ConfigCompatibleWithStandardLibrary.BorrowStream(f)
	defer jsoniter.ConfigCompatibleWithStandardLibrary.ReturnStream(stream)

	err = source.Each(ctx, src, 0, func(window []R) error {
		for _, r := range window {
			stream.WriteVal(r)
			stream.WriteRaw("\n")

			if stream.Error != nil {
				return fmt.Errorf("encode row: %w", stream.Error)
			}
		}

		return stream.Flush()
	})
	if err != nil {
		return err
	}

	return stream.Flush()
}

// File is a JSON lines file read as a source.Source.
type File[R any] struct {
	path   string
	decode Decoder[R]
	rows   *lazy.Sync[int64]
}

// Open returns a File over path.
func Open[R any](path string, decode Decoder[R]) (*File[R], error) {
	_, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	f := &File[R]{path: path, decode: decode}
	f.rows = lazy.NewSync(f.countLines)

	return f, nil
}

// Len returns the number of non-empty lines.
func (f *File[R]) Len(context.Context) (int64, error) {
	return f.rows.Get()
}

func newScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	return sc
}

func (f *File[R]) countLines() (int64, error) {
	fh, err := os.Open(f.path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", f.path, err)
	}
	defer fh.Close()

	sc := newScanner(fh)

	var n int64

	for sc.Scan() {
		if len(bytes.TrimSpace(sc.Bytes())) > 0 {
			n++
		}
	}

	return n, sc.Err()
}

// Open implements source.Source. Lines before r.Start are skipped unparsed.
func (f *File[R]) Open(ctx context.Context, r source.Range) (source.Reader[R], error) {
	err := source.ValidateRange(r)
	if err != nil {
		return nil, err
	}

	fh, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.path, err)
	}

	rd := &lineReader[R]{file: fh, scanner: newScanner(fh), decode: f.decode, remaining: r.Len()}

	for skipped := int64(0); skipped < r.Start; skipped++ {
		if _, ok := rd.next(); !ok {
			break
		}
	}

	if err := rd.scanner.Err(); err != nil {
		fh.Close()

		return nil, fmt.Errorf("skip to row %d of %s: %w", r.Start, f.path, err)
	}

	if ctx.Err() != nil {
		fh.Close()

		return nil, ctx.Err()
	}

	return rd, nil
}

type lineReader[R any] struct {
	file      *os.File
	scanner   *bufio.Scanner
	decode    Decoder[R]
	remaining int64
	line      int
}

// next returns the next non-empty line, or ok=false at the end.
func (r *lineReader[R]) next() ([]byte, bool) {
	for r.scanner.Scan() {
		r.line++

		line := bytes.TrimSpace(r.scanner.Bytes())
		if len(line) > 0 {
			return line, true
		}
	}

	return nil, false
}

func (r *lineReader[R]) Read(ctx context.Context, dst []R) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	n := 0

	for n < len(dst) && r.remaining != 0 {
		line, ok := r.next()
		if !ok {
			if err := r.scanner.Err(); err != nil {
				return n, err
			}

			return n, io.EOF
		}

		if !gjson.ValidBytes(line) {
			return n, fmt.Errorf("%w: line %d", ErrMalformedRow, r.line)
		}

		rec, err := r.decode(gjson.ParseBytes(line))
		if err != nil {
			return n, fmt.Errorf("%w: line %d: %w", ErrMalformedRow, r.line, err)
		}

		dst[n] = rec
		n++

		if r.remaining > 0 {
			r.remaining--
		}
	}

	if r.remaining == 0 {
		return n, io.EOF
	}

	return n, nil
}

func (r *lineReader[R]) Close() error {
	return r.file.Close()
}
