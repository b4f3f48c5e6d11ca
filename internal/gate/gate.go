// Package gate provides a counting-semaphore admission gate applied
// around heavy evaluation runs. The engine itself imposes no cap; the
// gate is how a host process bounds GPU-bound throughput.
package gate

import (
	"context"

	"golang.org/x/sync/semaphore"
)

type Gate struct {
	sem *semaphore.Weighted
}

// New builds a gate admitting at most limit concurrent runs. A limit of
// zero or less means unbounded.
func New(limit int) *Gate {
	if limit <= 0 {
		return &Gate{}
	}
	return &Gate{sem: semaphore.NewWeighted(int64(limit))}
}

// Acquire blocks until a slot is free or the context is cancelled.
func (g *Gate) Acquire(ctx context.Context) error {
	if g.sem == nil {
		return ctx.Err()
	}
	return g.sem.Acquire(ctx, 1)
}

func (g *Gate) Release() {
	if g.sem != nil {
		g.sem.Release(1)
	}
}
