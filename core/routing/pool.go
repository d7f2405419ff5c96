package routing

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"

	"github.com/foodbridge/dispatch/core/model"
)

// SolvePool bounds the number of concurrent solver runs so a large solve
// cannot starve in-flight auction handling.
type SolvePool struct {
	sem    *semaphore.Weighted
	solver *Solver
}

// NewSolvePool creates a pool of the given size around the solver. Size
// zero or below defaults to the CPU count.
func NewSolvePool(solver *Solver, size int) *SolvePool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	return &SolvePool{sem: semaphore.NewWeighted(int64(size)), solver: solver}
}

// Solve runs the solver on a pool slot, waiting for one to free up. The
// context bounds only the wait, not the solve itself.
func (p *SolvePool) Solve(ctx context.Context, in model.RoutingInput) ([]model.Route, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer p.sem.Release(1)
	return p.solver.Solve(in), nil
}
