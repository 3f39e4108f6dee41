package csvfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	"golang.org/x/exp/mmap"
)

// scanBlock is how much of the mapping is copied into the line buffer per read.
const scanBlock = 64 << 10

// SumColumnMmap sums the named float column by scanning the lines of a
// memory-mapped file. It assumes unquoted fields, which is what Write emits.
// Lines may be of any length.
func SumColumnMmap(path, column string) (sum float64, rows int64, err error) {
	m, err := mmap.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("mmap %s: %w", path, err)
	}
	defer m.Close()

	col := -1
	line := 0

	err = eachLine(m, func(b []byte) error {
		line++

		if line == 1 {
			for i, name := range bytes.Split(b, []byte{','}) {
				if string(name) == column {
					col = i

					break
				}
			}

			if col < 0 {
				return fmt.Errorf("%w: %q", ErrMissingColumn, column)
			}

			return nil
		}

		field, ok := nthField(b, col)
		if !ok {
			return fmt.Errorf("%w: line %d: missing field %d", ErrMalformedRow, line, col)
		}

		v, parseErr := strconv.ParseFloat(string(field), 64)
		if parseErr != nil {
			return fmt.Errorf("%w: line %d: %w", ErrMalformedRow, line, parseErr)
		}

		sum += v
		rows++

		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	return sum, rows, nil
}

// eachLine calls fn with every line of m, without its line terminator. The
// slice passed to fn is only valid until fn returns. The mapping is copied
// one block at a time into a single buffer that grows only when a line is
// longer than the block.
func eachLine(m *mmap.ReaderAt, fn func(line []byte) error) error {
	size := int64(m.Len())
	buf := make([]byte, 0, scanBlock)

	for off := int64(0); off < size; {
		n := int(min(int64(scanBlock), size-off))
		start := len(buf)

		if cap(buf)-start < n {
			grown := make([]byte, start, 2*cap(buf)+n)
			copy(grown, buf)
			buf = grown
		}

		buf = buf[:start+n]

		_, err := m.ReadAt(buf[start:], off)
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read mapping at %d: %w", off, err)
		}

		off += int64(n)
		rest := buf

		for {
			idx := bytes.IndexByte(rest, '\n')
			if idx < 0 {
				break
			}

			err = fn(bytes.TrimSuffix(rest[:idx], []byte{'\r'}))
			if err != nil {
				return err
			}

			rest = rest[idx+1:]
		}

		buf = buf[:copy(buf, rest)]
	}

	if len(buf) > 0 {
		return fn(bytes.TrimSuffix(buf, []byte{'\r'}))
	}

	return nil
}

func nthField(line []byte, n int) ([]byte, bool) {
	for range n {
		idx := bytes.IndexByte(line, ',')
		if idx < 0 {
			return nil, false
		}

		line = line[idx+1:]
	}

	if idx := bytes.IndexByte(line, ','); idx >= 0 {
		line = line[:idx]
	}

	return line, true
}
