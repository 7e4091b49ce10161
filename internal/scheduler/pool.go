// Package scheduler runs memory cycles on a fixed pool of workers.
package scheduler

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Cycler runs one control loop cycle.
type Cycler interface {
	Cycle(ctx context.Context) (bool, error)
}

// Pool shares a cycle quota between workers. The memory behind it must be
// built with a concurrent bag.
type Pool struct {
	cycler  Cycler
	workers int
	total   atomic.Int64
	logger  *zap.Logger
}

// NewPool creates a pool; workers defaults to 4.
func NewPool(c Cycler, workers int, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 4
	}
	return &Pool{cycler: c, workers: workers, logger: logger}
}

// Workers is the pool size.
func (p *Pool) Workers() int { return p.workers }

// Total counts cycles run over the pool's lifetime.
func (p *Pool) Total() int64 { return p.total.Load() }

// Run executes n cycles across the workers and returns how many ran. The
// first failing cycle cancels the rest.
func (p *Pool) Run(ctx context.Context, n int) (int, error) {
	var quota atomic.Int64
	quota.Store(int64(n))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < p.workers; w++ {
		g.Go(func() error {
			for quota.Add(-1) >= 0 {
				if err := gctx.Err(); err != nil {
					return err
				}
				_, err := p.cycler.Cycle(gctx)
				done.Add(1)
				if err != nil {
					return err
				}
			}
			return nil
		})
	}
	err := g.Wait()

	ran := int(done.Load())
	p.total.Add(int64(ran))
	if err != nil {
		p.logger.Warn("cycle pool stopped", zap.Int("ran", ran), zap.Int("requested", n), zap.Error(err))
	}
	return ran, err
}
