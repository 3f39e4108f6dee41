package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/chunkfold/pkg/source"
)

// Partitioned splits src into numWorkers contiguous partitions and folds
// each with Chunked on its own goroutine and its own accumulator from newAcc.
// Partials are merged with combine in partition order, starting from
// newAcc(). If any worker fails the partials are discarded and the failure is
// returned as *WorkerFailure, or as a multierror of them when several
// partitions fail independently.
func Partitioned[R, A any](
	ctx context.Context,
	src source.Source[R],
	numWorkers int,
	newAcc func() A,
	fold Fold[A, R],
	combine Combine[A],
	opts ...Option,
) (Result[A], error) {
	if numWorkers <= 0 {
		return Result[A]{}, fmt.Errorf("%w: %d workers", ErrInvalidArgument, numWorkers)
	}

	if newAcc == nil || fold == nil || combine == nil {
		return Result[A]{}, fmt.Errorf("%w: nil accumulator, fold or combine", ErrInvalidArgument)
	}

	cfg := newConfig(opts)

	if cfg.chunkSize <= 0 {
		return Result[A]{}, fmt.Errorf("%w: chunk size %d", ErrInvalidArgument, cfg.chunkSize)
	}

	err := source.ValidateRange(cfg.span)
	if err != nil {
		return Result[A]{}, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	total, err := src.Len(ctx)
	if err != nil {
		return Result[A]{}, fmt.Errorf("partitioned aggregation needs a known length: %w", err)
	}

	parts := partitionsOf(cfg.span.Clamp(total), numWorkers)

	partials, err := runWorkers(ctx, src, parts, newAcc, fold, cfg)
	if err != nil {
		return Result[A]{}, err
	}

	res := Result[A]{Value: newAcc()}

	for i, partial := range partials {
		res.Value, err = combine(res.Value, partial.Value)
		if err != nil {
			return Result[A]{}, fmt.Errorf("combine partition %d: %w", i, err)
		}

		res.Records += partial.Records
		res.Windows += partial.Windows
	}

	return res, nil
}

func runWorkers[R, A any](
	ctx context.Context,
	src source.Source[R],
	parts []source.Range,
	newAcc func() A,
	fold Fold[A, R],
	cfg config,
) ([]Result[A], error) {
	joinCtx := ctx

	if cfg.timeout > 0 {
		var cancel context.CancelFunc

		joinCtx, cancel = context.WithTimeoutCause(ctx, cfg.timeout, ErrWorkerTimeout)
		defer cancel()
	}

	g, gctx := errgroup.WithContext(joinCtx)

	partials := make([]Result[A], len(parts))
	finished := make([]atomic.Bool, len(parts))

	var (
		mu       sync.Mutex
		failures *multierror.Error
	)

	for i, part := range parts {
		g.Go(func() error {
			res, err := Chunked(gctx, src, cfg.chunkSize, newAcc(), fold, cfg.workerOptions(WithRange(part))...)

			finished[i].Store(true)

			if err == nil {
				partials[i] = res

				return nil
			}

			// Cancelled because a sibling failed first: not a failure of its own.
			if gctx.Err() != nil && joinCtx.Err() == nil && errors.Is(err, context.Canceled) {
				return err
			}

			if errors.Is(context.Cause(joinCtx), ErrWorkerTimeout) {
				err = fmt.Errorf("%w after %s: %w", ErrWorkerTimeout, cfg.timeout, err)
			}

			mu.Lock()
			failures = multierror.Append(failures, &WorkerFailure{Partition: i, Range: part, Err: err})
			mu.Unlock()

			return err
		})
	}

	var waitErr error

	done := make(chan struct{})

	go func() {
		waitErr = g.Wait()

		close(done)
	}()

	select {
	case <-done:
	case <-joinCtx.Done():
		if !errors.Is(context.Cause(joinCtx), ErrWorkerTimeout) {
			<-done

			break
		}

		return nil, timedOut(parts, finished, cfg)
	}

	mu.Lock()
	defer mu.Unlock()

	if failures == nil && waitErr != nil {
		return nil, fmt.Errorf("join workers: %w", waitErr)
	}

	err := reduceFailures(failures)
	if err != nil {
		return nil, err
	}

	return partials, nil
}

// timedOut reports every partition still running when the join deadline expired.
func timedOut(parts []source.Range, finished []atomic.Bool, cfg config) error {
	var failures *multierror.Error

	for i, part := range parts {
		if finished[i].Load() {
			continue
		}

		failures = multierror.Append(failures, &WorkerFailure{
			Partition: i,
			Range:     part,
			Err:       fmt.Errorf("%w after %s", ErrWorkerTimeout, cfg.timeout),
		})
	}

	if failures == nil {
		// Every worker returned in the instant the deadline fired.
		return &WorkerFailure{
			Partition: len(parts) - 1,
			Range:     parts[len(parts)-1],
			Err:       fmt.Errorf("%w after %s", ErrWorkerTimeout, cfg.timeout),
		}
	}

	return reduceFailures(failures)
}

// reduceFailures returns nil, the single *WorkerFailure, or the multierror.
func reduceFailures(failures *multierror.Error) error {
	if failures == nil {
		return nil
	}

	if len(failures.Errors) == 1 {
		return failures.Errors[0]
	}

	return failures
}
