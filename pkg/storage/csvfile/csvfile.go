// Package csvfile stores records as delimited text with a header row and
// exposes a file as a source.Source that streams rows on demand.
package csvfile

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"

	"github.com/Sumatoshi-tech/chunkfold/pkg/dataset"
	"github.com/Sumatoshi-tech/chunkfold/pkg/lazy"
	"github.com/Sumatoshi-tech/chunkfold/pkg/source"
)

// Sentinel errors.
var (
	ErrMissingColumn   = errors.New("csvfile: missing column")
	ErrMalformedRow    = errors.New("csvfile: malformed row")
	ErrUnknownCategory = errors.New("csvfile: unknown category")
)

// RecordHeader is the header written for dataset records.
var RecordHeader = []string{"id", "value", "category"}

// RowDecoder decodes one data row.
type RowDecoder[R any] func(row []string) (R, error)

// Decoder binds a RowDecoder to the header of a file.
type Decoder[R any] func(header []string) (RowDecoder[R], error)

func columnIndex(header []string, name string) (int, error) {
	idx := slices.Index(header, name)
	if idx < 0 {
		return 0, fmt.Errorf("%w: %q", ErrMissingColumn, name)
	}

	return idx, nil
}

// Float64Column decodes the named column as float64.
func Float64Column(name string) Decoder[float64] {
	return func(header []string) (RowDecoder[float64], error) {
		idx, err := columnIndex(header, name)
		if err != nil {
			return nil, err
		}

		return func(row []string) (float64, error) {
			return strconv.ParseFloat(row[idx], 64)
		}, nil
	}
}

// RecordDecoder decodes id, value and an optional category column.
func RecordDecoder() Decoder[dataset.Record] {
	return func(header []string) (RowDecoder[dataset.Record], error) {
		idCol, err := columnIndex(header, "id")
		if err != nil {
			return nil, err
		}

		valueCol, err := columnIndex(header, "value")
		if err != nil {
			return nil, err
		}

		catCol := slices.Index(header, "category")

		return func(row []string) (dataset.Record, error) {
			id, err := strconv.ParseInt(row[idCol], 10, 64)
			if err != nil {
				return dataset.Record{}, fmt.Errorf("id: %w", err)
			}

			value, err := strconv.ParseFloat(row[valueCol], 64)
			if err != nil {
				return dataset.Record{}, fmt.Errorf("value: %w", err)
			}

			rec := dataset.Record{ID: id, Value: value}
			if catCol >= 0 {
				rec.Category = row[catCol]
			}

			return rec, nil
		}, nil
	}
}

// CompactDecoder decodes the value column as float32 and the category column
// as its code in dataset.Categories. The id column is not read.
func CompactDecoder() Decoder[dataset.Compact] {
	return func(header []string) (RowDecoder[dataset.Compact], error) {
		valueCol, err := columnIndex(header, "value")
		if err != nil {
			return nil, err
		}

		catCol, err := columnIndex(header, "category")
		if err != nil {
			return nil, err
		}

		return func(row []string) (dataset.Compact, error) {
			value, err := strconv.ParseFloat(row[valueCol], 32)
			if err != nil {
				return dataset.Compact{}, fmt.Errorf("value: %w", err)
			}

			code, ok := dataset.CategoryCode(row[catCol])
			if !ok {
				return dataset.Compact{}, fmt.Errorf("%w: %q", ErrUnknownCategory, row[catCol])
			}

			return dataset.Compact{Value: float32(value), Category: code}, nil
		}, nil
	}
}

// WriteRows writes header and every record of src to path.
func WriteRows[R any](ctx context.Context, path string, header []string, src source.Source[R], encode func(dst []string, r R) []string) (err error) {
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

	bw := bufio.NewWriter(f)
	w := csv.NewWriter(bw)

	err = w.Write(header)
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	fields := make([]string, 0, len(header))

	err = source.Each(ctx, src, 0, func(window []R) error {
		for _, r := range window {
			fields = encode(fields[:0], r)

			writeErr := w.Write(fields)
			if writeErr != nil {
				return fmt.Errorf("write row: %w", writeErr)
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	w.Flush()

	err = w.Error()
	if err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}

	return bw.Flush()
}

// Write stores dataset records under RecordHeader.
func Write(ctx context.Context, path string, src source.Source[dataset.Record]) error {
	return WriteRows(ctx, path, RecordHeader, src, func(dst []string, r dataset.Record) []string {
		return append(dst,
			strconv.FormatInt(r.ID, 10),
			strconv.FormatFloat(r.Value, 'g', -1, 64),
			r.Category,
		)
	})
}

// File is a CSV file read as a source.Source. Opening a range re-scans the
// file from the top and skips rows up to the range start.
type File[R any] struct {
	path   string
	decode Decoder[R]
	rows   *lazy.Sync[int64]
}

// Open returns a File over path. No rows are read until Len or Open is called.
func Open[R any](path string, decode Decoder[R]) (*File[R], error) {
	_, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	f := &File[R]{path: path, decode: decode}
	f.rows = lazy.NewSync(f.countRows)

	return f, nil
}

// Path returns the file path.
func (f *File[R]) Path() string {
	return f.path
}

// Len returns the number of data rows, header excluded. The count is
// computed once.
func (f *File[R]) Len(context.Context) (int64, error) {
	return f.rows.Get()
}

func (f *File[R]) countRows() (int64, error) {
	fh, err := os.Open(f.path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", f.path, err)
	}
	defer fh.Close()

	cr := csv.NewReader(bufio.NewReader(fh))
	cr.ReuseRecord = true

	var rows int64

	for {
		_, err = cr.Read()
		if errors.Is(err, io.EOF) {
			return max(rows-1, 0), nil
		}

		if err != nil {
			return 0, fmt.Errorf("count rows of %s: %w", f.path, err)
		}

		rows++
	}
}

// Open implements source.Source.
func (f *File[R]) Open(ctx context.Context, r source.Range) (source.Reader[R], error) {
	err := source.ValidateRange(r)
	if err != nil {
		return nil, err
	}

	fh, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.path, err)
	}

	rd, err := f.newReader(ctx, fh, r)
	if err != nil {
		fh.Close()

		return nil, err
	}

	return rd, nil
}

func (f *File[R]) newReader(ctx context.Context, fh *os.File, r source.Range) (*rowReader[R], error) {
	cr := csv.NewReader(bufio.NewReader(fh))
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return &rowReader[R]{file: fh, done: true}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", f.path, err)
	}

	decode, err := f.decode(slices.Clone(header))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.path, err)
	}

	rd := &rowReader[R]{file: fh, csv: cr, decode: decode, remaining: r.Len()}

	for skipped := int64(0); skipped < r.Start; skipped++ {
		if skipped%source.DefaultBatch == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}

		_, err = cr.Read()
		if errors.Is(err, io.EOF) {
			rd.done = true

			break
		}

		if err != nil {
			return nil, fmt.Errorf("skip to row %d of %s: %w", r.Start, f.path, err)
		}
	}

	return rd, nil
}

type rowReader[R any] struct {
	file      *os.File
	csv       *csv.Reader
	decode    RowDecoder[R]
	remaining int64 // source.Unbounded reads to the end.
	done      bool
}

func (r *rowReader[R]) Read(ctx context.Context, dst []R) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	n := 0

	for n < len(dst) {
		if r.done || r.remaining == 0 {
			return n, io.EOF
		}

		row, err := r.csv.Read()
		if errors.Is(err, io.EOF) {
			r.done = true

			return n, io.EOF
		}

		if err != nil {
			return n, fmt.Errorf("%w: %w", ErrMalformedRow, err)
		}

		rec, err := r.decode(row)
		if err != nil {
			line, _ := r.csv.FieldPos(0)

			return n, fmt.Errorf("%w: line %d: %w", ErrMalformedRow, line, err)
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

func (r *rowReader[R]) Close() error {
	return r.file.Close()
}
