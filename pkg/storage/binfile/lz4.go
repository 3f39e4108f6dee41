package binfile

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pierrec/lz4/v4"

	"github.com/Sumatoshi-tech/chunkfold/pkg/source"
)

// lz4Magic prefixes an LZ4 record file; the record count follows it.
var lz4Magic = [4]byte{'C', 'F', 'L', '4'}

const lz4HeaderSize = len(lz4Magic) + 8

// ErrBadHeader is returned when an LZ4 record file has no valid header.
var ErrBadHeader = errors.New("binfile: bad lz4 record header")

// WriteLZ4 stores src at path as one LZ4 frame of fixed-stride records,
// preceded by a header holding the record count.
func WriteLZ4(ctx context.Context, path string, src source.Source[float64]) (err error) {
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

	// The count is patched in once the frame is written.
	header := make([]byte, lz4HeaderSize)
	copy(header, lz4Magic[:])

	_, err = f.Write(header)
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	bw := bufio.NewWriter(f)
	zw := lz4.NewWriter(bw)

	count, err := writeRecords(ctx, zw, src)
	if err != nil {
		return err
	}

	err = zw.Close()
	if err != nil {
		return fmt.Errorf("close lz4 frame: %w", err)
	}

	err = bw.Flush()
	if err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}

	binary.LittleEndian.PutUint64(header[len(lz4Magic):], uint64(count))

	_, err = f.WriteAt(header, 0)
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	return nil
}

// LZ4File is an LZ4-compressed record file. Reads are sequential: opening
// a range decompresses and discards every record before its start.
type LZ4File struct {
	path string
	n    int64
}

// OpenLZ4 validates the header of path and returns an LZ4File.
func OpenLZ4(path string) (*LZ4File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	header := make([]byte, lz4HeaderSize)

	_, err = io.ReadFull(f, header)
	if err != nil || !bytes.Equal(header[:len(lz4Magic)], lz4Magic[:]) {
		return nil, fmt.Errorf("%w: %s", ErrBadHeader, path)
	}

	n := binary.LittleEndian.Uint64(header[len(lz4Magic):])

	return &LZ4File{path: path, n: int64(n)}, nil
}

// Len implements source.Source.
func (l *LZ4File) Len(context.Context) (int64, error) {
	return l.n, nil
}

// Open implements source.Source.
func (l *LZ4File) Open(ctx context.Context, r source.Range) (source.Reader[float64], error) {
	err := source.ValidateRange(r)
	if err != nil {
		return nil, err
	}

	r = r.Clamp(l.n)

	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}

	_, err = f.Seek(int64(lz4HeaderSize), io.SeekStart)
	if err != nil {
		f.Close()

		return nil, fmt.Errorf("seek %s: %w", l.path, err)
	}

	zr := lz4.NewReader(bufio.NewReader(f))

	_, err = io.CopyN(io.Discard, zr, r.Start*Stride)
	if err != nil {
		f.Close()

		return nil, fmt.Errorf("skip to record %d: %w", r.Start, err)
	}

	if err := ctx.Err(); err != nil {
		f.Close()

		return nil, err
	}

	return &lz4Reader{file: f, zr: zr, remaining: r.Len()}, nil
}

type lz4Reader struct {
	file      *os.File
	zr        *lz4.Reader
	remaining int64
	raw       []byte
}

func (lr *lz4Reader) Read(ctx context.Context, dst []float64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	n := int(min(int64(len(dst)), lr.remaining))
	if n > 0 {
		want := n * Stride
		if cap(lr.raw) < want {
			lr.raw = make([]byte, want)
		}

		_, err := io.ReadFull(lr.zr, lr.raw[:want])
		if err != nil {
			return 0, fmt.Errorf("decompress records: %w", err)
		}

		decode(dst[:n], lr.raw[:want])
		lr.remaining -= int64(n)
	}

	if lr.remaining == 0 {
		return n, io.EOF
	}

	return n, nil
}

func (lr *lz4Reader) Close() error {
	return lr.file.Close()
}
