package clock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/nidhogg/nuka-mind/internal/memory"
)

// CycleRunner runs n cycles. Both *memory.Memory and *scheduler.Pool
// implement it.
type CycleRunner interface {
	Run(ctx context.Context, n int) (int, error)
}

// Driver is a Listener that runs a batch of cycles on every tick. An
// invariant violation halts it for good; other cycle errors are logged.
type Driver struct {
	runner  CycleRunner
	perTick int
	cycles  atomic.Int64

	mu      sync.Mutex
	stopped bool
	err     error
	logger  *zap.Logger
}

// NewDriver creates a driver; perTick defaults to 1.
func NewDriver(runner CycleRunner, perTick int, logger *zap.Logger) *Driver {
	if perTick <= 0 {
		perTick = 1
	}
	return &Driver{runner: runner, perTick: perTick, logger: logger}
}

func (d *Driver) OnTick(ctx context.Context, tick int64) {
	d.mu.Lock()
	stopped := d.stopped
	d.mu.Unlock()
	if stopped {
		return
	}

	n, err := d.runner.Run(ctx, d.perTick)
	d.cycles.Add(int64(n))
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
	case errors.Is(err, memory.ErrInvariant):
		d.mu.Lock()
		d.stopped, d.err = true, err
		d.mu.Unlock()
		d.logger.Error("memory corrupted, cycles halted", zap.Int64("tick", tick), zap.Error(err))
	default:
		d.logger.Warn("cycle failed", zap.Int64("tick", tick), zap.Error(err))
	}
}

// Cycles counts cycles run by the driver.
func (d *Driver) Cycles() int64 { return d.cycles.Load() }

// Err returns the error that halted the driver, if any.
func (d *Driver) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}
