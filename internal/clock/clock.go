// Package clock drives memory in real time: a ticker fans ticks out to
// listeners that run cycles and report stats.
package clock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Listener receives ticks. OnTick runs on the clock goroutine; a slow
// listener delays the next tick rather than overlapping with it.
type Listener interface {
	OnTick(ctx context.Context, tick int64)
}

// Clock ticks at a fixed interval.
type Clock struct {
	interval  time.Duration
	listeners []Listener
	ticks     atomic.Int64
	mu        sync.RWMutex
	cancel    context.CancelFunc
	done      chan struct{}
	logger    *zap.Logger
}

// NewClock creates a stopped clock.
func NewClock(interval time.Duration, logger *zap.Logger) *Clock {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Clock{interval: interval, logger: logger}
}

// AddListener registers a tick listener.
func (c *Clock) AddListener(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Ticks is the number of ticks delivered so far.
func (c *Clock) Ticks() int64 { return c.ticks.Load() }

// Start begins the tick loop in a background goroutine. It stops when ctx
// is done or Stop is called.
func (c *Clock) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	go c.loop(ctx, done)
	c.logger.Info("clock started", zap.Duration("interval", c.interval))
}

// Stop halts the tick loop and waits for the tick in progress.
func (c *Clock) Stop() {
	c.mu.RLock()
	cancel, done := c.cancel, c.done
	c.mu.RUnlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	c.logger.Info("clock stopped", zap.Int64("ticks", c.Ticks()))
}

// Step delivers one tick synchronously.
func (c *Clock) Step(ctx context.Context) {
	c.tick(ctx)
}

func (c *Clock) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

func (c *Clock) tick(ctx context.Context) {
	n := c.ticks.Add(1)
	c.mu.RLock()
	listeners := make([]Listener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.RUnlock()

	for _, l := range listeners {
		l.OnTick(ctx, n)
	}
}
