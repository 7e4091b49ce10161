package events

import (
	"sync"
	"sync/atomic"
)

// Counts is a point-in-time copy of a Counter.
type Counts struct {
	New        int64            `json:"new"`
	Forgotten  int64            `json:"forgotten"`
	Remembered int64            `json:"remembered"`
	Fired      int64            `json:"fired"`
	Reasons    map[string]int64 `json:"forget_reasons"`
}

// Counter tallies events by type and forget reason.
type Counter struct {
	created    atomic.Int64
	forgotten  atomic.Int64
	remembered atomic.Int64
	fired      atomic.Int64

	mu      sync.Mutex
	reasons map[string]int64
}

func NewCounter() *Counter {
	return &Counter{reasons: make(map[string]int64)}
}

// Handle is a Handler.
func (c *Counter) Handle(e Event) {
	switch e.Type {
	case ConceptNew:
		c.created.Add(1)
	case ConceptRemember:
		c.remembered.Add(1)
	case ConceptFire:
		c.fired.Add(1)
	case ConceptForget:
		c.forgotten.Add(1)
		c.mu.Lock()
		c.reasons[e.Reason]++
		c.mu.Unlock()
	}
}

func (c *Counter) Snapshot() Counts {
	c.mu.Lock()
	reasons := make(map[string]int64, len(c.reasons))
	for k, v := range c.reasons {
		reasons[k] = v
	}
	c.mu.Unlock()

	return Counts{
		New:        c.created.Load(),
		Forgotten:  c.forgotten.Load(),
		Remembered: c.remembered.Load(),
		Fired:      c.fired.Load(),
		Reasons:    reasons,
	}
}
