// Package events carries memory observations to logging and metrics
// consumers. Memory never reads them back.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Type names an observation.
type Type string

const (
	ConceptNew      Type = "concept_new"
	ConceptForget   Type = "concept_forget"
	ConceptRemember Type = "concept_remember"
	ConceptFire     Type = "concept_fire"
)

// Forget reasons.
const (
	ReasonRejected         = "rejected"          // memory was full and the concept ranked lowest
	ReasonEvicted          = "evicted"           // displaced by a stronger concept, no cache
	ReasonCacheRejected    = "cache_rejected"    // the subconscious declined it
	ReasonSubconsciousFull = "subconscious_full" // dropped by the subconscious itself
	ReasonRemoved          = "removed"           // deleted on request
)

// Event is one observation.
type Event struct {
	ID       string    `json:"id"`
	Type     Type      `json:"type"`
	Term     string    `json:"term"`
	Priority float64   `json:"priority"`
	Reason   string    `json:"reason,omitempty"`
	Cycle    int64     `json:"cycle"`
	Time     time.Time `json:"time"`
}

// Handler consumes events. Handlers run on the emitting goroutine and must
// not block or call back into memory.
type Handler func(Event)

// Bus fans events out to handlers. A nil *Bus drops everything.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
	logger   *zap.Logger
}

// NewBus creates an empty bus.
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{logger: logger}
}

// Subscribe adds h.
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Emit stamps e and delivers it to every handler.
func (b *Bus) Emit(e Event) {
	if b == nil {
		return
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}

	b.mu.RLock()
	handlers := b.handlers
	b.mu.RUnlock()

	b.logger.Debug("memory event",
		zap.String("type", string(e.Type)),
		zap.String("term", e.Term),
		zap.Float64("priority", e.Priority),
		zap.String("reason", e.Reason),
		zap.Int64("cycle", e.Cycle))
	for _, h := range handlers {
		h(e)
	}
}
