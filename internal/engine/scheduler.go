package engine

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// scheduler spreads [0, n) over a bounded pool in contiguous chunks.
type scheduler struct {
	workers   int
	chunkSize int
}

type chunk struct{ start, end int }

func (s scheduler) chunks(n int) []chunk {
	out := make([]chunk, 0, (n+s.chunkSize-1)/s.chunkSize)
	for start := 0; start < n; start += s.chunkSize {
		end := start + s.chunkSize
		if end > n {
			end = n
		}
		out = append(out, chunk{start, end})
	}
	return out
}

// run calls fn once per chunk with at most s.workers chunks in flight and
// blocks until all dispatched chunks return. Once ctx is done no further
// chunks are dispatched; run returns the first index that was never handed
// to fn (n when everything was dispatched).
func (s scheduler) run(ctx context.Context, n int, fn func(start, end int)) int {
	var g errgroup.Group
	g.SetLimit(s.workers)

	next := n
	for _, c := range s.chunks(n) {
		if ctx.Err() != nil {
			next = c.start
			break
		}
		g.Go(func() error {
			fn(c.start, c.end)
			return nil
		})
	}
	_ = g.Wait()
	return next
}
