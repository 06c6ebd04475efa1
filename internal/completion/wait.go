package completion

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// WaitAll blocks until every handle resolves successfully, or returns the
// first error as soon as any handle errors or is cancelled. Returning early
// does not settle the handles still pending.
func WaitAll(ctx context.Context, handles ...*Handle) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, h := range handles {
		if h == nil {
			continue
		}
		h := h
		g.Go(func() error {
			return h.Wait(gctx)
		})
	}
	return g.Wait()
}
