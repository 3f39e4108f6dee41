// Package binfile stores float64 arrays as fixed-stride little-endian
// records. Because every record has the same width, any range can be read
// directly at offset start*Stride, either with pread or from a memory map.
// An LZ4-framed variant trades random access for a smaller file.
package binfile

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"golang.org/x/exp/mmap"

	"github.com/Sumatoshi-tech/chunkfold/pkg/source"
)

// Stride is the on-disk size of one record.
const Stride = 8

// ErrTruncated is returned when a file size is not a multiple of Stride.
var ErrTruncated = errors.New("binfile: size is not a multiple of the record stride")

func encode(dst []byte, values []float64) []byte {
	for _, v := range values {
		dst = binary.LittleEndian.AppendUint64(dst, math.Float64bits(v))
	}

	return dst
}

func decode(dst []float64, raw []byte) {
	for i := range dst {
		dst[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*Stride:]))
	}
}

// writeRecords streams src into w and returns the record count.
func writeRecords(ctx context.Context, w io.Writer, src source.Source[float64]) (int64, error) {
	var (
		buf   []byte
		count int64
	)

	err := source.Each(ctx, src, 0, func(window []float64) error {
		buf = encode(buf[:0], window)

		_, err := w.Write(buf)
		if err != nil {
			return fmt.Errorf("write records: %w", err)
		}

		count += int64(len(window))

		return nil
	})

	return count, err
}

// Write stores src at path as raw fixed-stride records.
func Write(ctx context.Context, path string, src source.Source[float64]) (err error) {
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

	_, err = writeRecords(ctx, bw, src)
	if err != nil {
		return err
	}

	return bw.Flush()
}

// readerAtSource serves ranges of a fixed-stride file through io.ReaderAt.
// ReadAt is safe for concurrent use on both os.File and mmap.ReaderAt.
type readerAtSource struct {
	r     io.ReaderAt
	n     int64
	close func() error
}

func newReaderAtSource(r io.ReaderAt, size int64, closeFn func() error) (*readerAtSource, error) {
	if size%Stride != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrTruncated, size)
	}

	return &readerAtSource{r: r, n: size / Stride, close: closeFn}, nil
}

// Len implements source.Source.
func (s *readerAtSource) Len(context.Context) (int64, error) {
	return s.n, nil
}

// Open implements source.Source.
func (s *readerAtSource) Open(_ context.Context, r source.Range) (source.Reader[float64], error) {
	err := source.ValidateRange(r)
	if err != nil {
		return nil, err
	}

	r = r.Clamp(s.n)

	return &strideReader{r: s.r, next: r.Start, end: r.End}, nil
}

// Close releases the underlying file or mapping.
func (s *readerAtSource) Close() error {
	return s.close()
}

type strideReader struct {
	r    io.ReaderAt
	next int64
	end  int64
	raw  []byte
}

func (sr *strideReader) Read(ctx context.Context, dst []float64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	n := int(min(int64(len(dst)), sr.end-sr.next))
	if n > 0 {
		want := n * Stride
		if cap(sr.raw) < want {
			sr.raw = make([]byte, want)
		}

		raw := sr.raw[:want]

		read, err := sr.r.ReadAt(raw, sr.next*Stride)
		if read < want {
			if err == nil || errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}

			return 0, fmt.Errorf("read records at %d: %w", sr.next, err)
		}

		decode(dst[:n], raw)
		sr.next += int64(n)
	}

	if sr.next >= sr.end {
		return n, io.EOF
	}

	return n, nil
}

func (sr *strideReader) Close() error { return nil }

// File is a fixed-stride file read with pread.
type File struct {
	*readerAtSource
}

// OpenFile opens path for positional reads.
func OpenFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()

		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	src, err := newReaderAtSource(f, info.Size(), f.Close)
	if err != nil {
		f.Close()

		return nil, err
	}

	return &File{src}, nil
}

// Mapped is a fixed-stride file read through a read-only memory map.
// Pages are faulted in on demand, so only the ranges read become resident.
type Mapped struct {
	*readerAtSource
}

// OpenMmap maps path into memory.
func OpenMmap(path string) (*Mapped, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}

	src, err := newReaderAtSource(m, int64(m.Len()), m.Close)
	if err != nil {
		m.Close()

		return nil, err
	}

	return &Mapped{src}, nil
}
