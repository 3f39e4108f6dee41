package source

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// DefaultBatch is the window size Each uses when batch is not positive.
const DefaultBatch = 4096

// Each reads src front to back in windows of up to batch records and calls
// fn for every non-empty window. fn must not retain the window.
func Each[R any](ctx context.Context, src Source[R], batch int, fn func(window []R) error) error {
	if batch <= 0 {
		batch = DefaultBatch
	}

	rd, err := src.Open(ctx, All)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer rd.Close()

	buf := make([]R, batch)

	var offset int64

	for {
		n, readErr := rd.Read(ctx, buf)
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return &ReadError{Offset: offset + int64(n), Err: readErr}
		}

		if n > 0 {
			err = fn(buf[:n])
			if err != nil {
				return err
			}

			offset += int64(n)
		}

		if readErr != nil {
			return nil
		}
	}
}
