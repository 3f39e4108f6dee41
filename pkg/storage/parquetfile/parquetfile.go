// Package parquetfile stores records in a columnar Parquet file and reads
// arbitrary row ranges back by seeking inside the row groups.
package parquetfile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/segmentio/parquet-go"

	"github.com/Sumatoshi-tech/chunkfold/pkg/source"
)

// DefaultRowGroupSize is the number of rows per row group written by Write.
const DefaultRowGroupSize = 64 * 1024

// Write stores src at path. Every rowGroupSize rows the writer flushes a row
// group; a non-positive size selects DefaultRowGroupSize. The Parquet schema
// is derived from the `parquet` struct tags of R.
func Write[R any](ctx context.Context, path string, src source.Source[R], rowGroupSize int) (err error) {
	if rowGroupSize <= 0 {
		rowGroupSize = DefaultRowGroupSize
	}

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

	w := parquet.NewGenericWriter[R](f)

	err = source.Each(ctx, src, rowGroupSize, func(window []R) error {
		_, writeErr := w.Write(window)
		if writeErr != nil {
			return fmt.Errorf("write rows: %w", writeErr)
		}

		return w.Flush()
	})
	if err != nil {
		return err
	}

	err = w.Close()
	if err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}

	return nil
}

// File is a Parquet file read as a source.Source.
type File[R any] struct {
	path string
	rows int64
}

// Open reads the footer of path to learn its row count.
func Open[R any](path string) (*File[R], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("read parquet footer of %s: %w", path, err)
	}

	return &File[R]{path: path, rows: pf.NumRows()}, nil
}

// Len implements source.Source.
func (f *File[R]) Len(context.Context) (int64, error) {
	return f.rows, nil
}

// Open implements source.Source. Each reader holds its own file handle.
func (f *File[R]) Open(_ context.Context, r source.Range) (source.Reader[R], error) {
	err := source.ValidateRange(r)
	if err != nil {
		return nil, err
	}

	r = r.Clamp(f.rows)

	fh, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.path, err)
	}

	pr := parquet.NewGenericReader[R](fh)

	if r.Start > 0 {
		err = pr.SeekToRow(r.Start)
		if err != nil {
			pr.Close()
			fh.Close()

			return nil, fmt.Errorf("seek to row %d of %s: %w", r.Start, f.path, err)
		}
	}

	return &rowReader[R]{file: fh, pr: pr, next: r.Start, remaining: r.Len()}, nil
}

type rowReader[R any] struct {
	file      *os.File
	pr        *parquet.GenericReader[R]
	next      int64
	remaining int64
}

func (r *rowReader[R]) Read(ctx context.Context, dst []R) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if r.remaining == 0 {
		return 0, io.EOF
	}

	dst = dst[:min(int64(len(dst)), r.remaining)]

	n, err := r.pr.Read(dst)
	r.next += int64(n)
	r.remaining -= int64(n)

	switch {
	case r.remaining == 0:
		return n, io.EOF
	case errors.Is(err, io.EOF):
		return n, fmt.Errorf("read parquet rows at %d: %w", r.next, io.ErrUnexpectedEOF)
	case err != nil:
		return n, fmt.Errorf("read parquet rows at %d: %w", r.next, err)
	}

	return n, nil
}

func (r *rowReader[R]) Close() error {
	return errors.Join(r.pr.Close(), r.file.Close())
}
