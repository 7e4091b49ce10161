package memory

import (
	"context"

	"go.uber.org/zap"

	"github.com/nidhogg/nuka-mind/internal/subcon"
)

// Stats is a point-in-time summary of memory.
type Stats struct {
	Time            int64   `json:"time"`
	Concepts        int     `json:"concepts"`
	Capacity        int     `json:"capacity"`
	Mass            float64 `json:"mass"`
	AveragePriority float64 `json:"average_priority"`
	EmptyLevels     int     `json:"empty_levels"`
	InFlight        int     `json:"in_flight"`
	Subconscious    int     `json:"subconscious"` // -1 when the cache cannot tell or there is none
	Levels          string  `json:"levels"`
	Fault           string  `json:"fault,omitempty"` // set once an invariant violation stopped memory
}

// Stats summarises memory. Only the subconscious size may block on I/O.
func (m *Memory) Stats(ctx context.Context) Stats {
	s := m.snapshotStats()
	if err := m.Err(); err != nil {
		s.Fault = err.Error()
	}

	if l, ok := m.cache.(subcon.Lener); ok {
		n, err := l.Len(ctx)
		if err != nil {
			m.logger.Warn("subconscious size", zap.Error(err))
		} else {
			s.Subconscious = n
		}
	}
	return s
}

func (m *Memory) snapshotStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Time:            m.now.Load(),
		Concepts:        m.concepts.Size(),
		Capacity:        m.concepts.Capacity(),
		Mass:            m.concepts.Mass(),
		AveragePriority: m.concepts.AveragePriority(),
		EmptyLevels:     m.concepts.EmptyLevels(),
		InFlight:        len(m.inflight),
		Subconscious:    -1,
		Levels:          m.concepts.String(),
	}
}
