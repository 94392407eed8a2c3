package bounded

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Runner executes n independent units of work. Units report their own
// outcomes; a Runner never aborts siblings when one unit fails.
type Runner interface {
	Run(ctx context.Context, n int, fn func(ctx context.Context, i int))
	Limit() int
}

// Sequential runs units one after another in index order.
func Sequential() Runner { return sequential{} }

type sequential struct{}

func (sequential) Run(ctx context.Context, n int, fn func(ctx context.Context, i int)) {
	for i := 0; i < n; i++ {
		fn(ctx, i)
	}
}

func (sequential) Limit() int { return 1 }

// Pool runs units concurrently with at most limit in flight.
// A limit of zero or less means no bound. A panic in a unit is re-raised
// on the goroutine that called Run once every unit has returned.
func Pool(limit int) Runner { return pool{limit: limit} }

type pool struct {
	limit int
}

func (p pool) Run(ctx context.Context, n int, fn func(ctx context.Context, i int)) {
	var (
		g        errgroup.Group
		once     sync.Once
		panicked any
	)
	if p.limit > 0 {
		g.SetLimit(p.limit)
	}
	for i := 0; i < n; i++ {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					once.Do(func() { panicked = r })
				}
			}()
			fn(ctx, i)
			return nil
		})
	}
	_ = g.Wait()
	if panicked != nil {
		panic(panicked)
	}
}

func (p pool) Limit() int { return p.limit }
