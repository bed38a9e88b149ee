// Package parallel runs independent tasks over a fixed worker budget while
// preserving input order in the results.
package parallel

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// WorkerFunc processes the item at index i.
type WorkerFunc[T, R any] func(ctx context.Context, i int, item T) (R, error)

// RunBounded calls worker once per item with at most limit invocations in
// flight. results[i] always corresponds to items[i]. The first failure
// cancels the context handed to the remaining workers; RunBounded returns only
// after every started worker has returned, so no work outlives the call.
// A limit below 1 is treated as 1.
func RunBounded[T, R any](ctx context.Context, items []T, limit int, worker WorkerFunc[T, R]) ([]R, error) {
	results := make([]R, len(items))
	if len(items) == 0 {
		return results, nil
	}
	if limit < 1 {
		limit = 1
	}
	if limit > len(items) {
		limit = len(items)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, item := range items {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			r, err := worker(gctx, i, item)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}
