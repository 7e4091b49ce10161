package clock

import (
	"context"

	"go.uber.org/zap"

	"github.com/nidhogg/nuka-mind/internal/events"
	"github.com/nidhogg/nuka-mind/internal/memory"
	"github.com/nidhogg/nuka-mind/internal/store"
)

// StatsSource is implemented by *memory.Memory.
type StatsSource interface {
	Stats(ctx context.Context) memory.Stats
}

// StatsRecorder persists samples; *store.Store implements it.
type StatsRecorder interface {
	RecordStats(ctx context.Context, r store.StatsRow) error
}

// Reporter logs memory stats every N ticks and optionally records them.
type Reporter struct {
	src      StatsSource
	counter  *events.Counter
	recorder StatsRecorder
	every    int64
	logger   *zap.Logger
}

// NewReporter creates a reporter. counter and recorder may be nil.
func NewReporter(src StatsSource, counter *events.Counter, recorder StatsRecorder, every int, logger *zap.Logger) *Reporter {
	if every <= 0 {
		every = 50
	}
	return &Reporter{src: src, counter: counter, recorder: recorder, every: int64(every), logger: logger}
}

func (r *Reporter) OnTick(ctx context.Context, tick int64) {
	if tick%r.every != 0 {
		return
	}
	s := r.src.Stats(ctx)
	row := store.StatsRow{
		Cycle:        s.Time,
		Concepts:     s.Concepts,
		Mass:         s.Mass,
		Subconscious: s.Subconscious,
	}
	if r.counter != nil {
		c := r.counter.Snapshot()
		row.Fired, row.Forgotten = c.Fired, c.Forgotten
	}

	r.logger.Info("memory stats",
		zap.Int64("tick", tick),
		zap.Int64("cycle", s.Time),
		zap.Int("concepts", s.Concepts),
		zap.Int("capacity", s.Capacity),
		zap.Float64("mass", s.Mass),
		zap.Int("subconscious", s.Subconscious),
		zap.Int64("fired", row.Fired),
		zap.Int64("forgotten", row.Forgotten))

	if r.recorder != nil {
		if err := r.recorder.RecordStats(ctx, row); err != nil {
			r.logger.Warn("record stats", zap.Error(err))
		}
	}
}
