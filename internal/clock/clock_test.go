package clock

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/nidhogg/nuka-mind/internal/budget"
	"github.com/nidhogg/nuka-mind/internal/memory"
	"github.com/nidhogg/nuka-mind/internal/store"
)

type tickCounter struct{ n atomic.Int64 }

func (c *tickCounter) OnTick(context.Context, int64) { c.n.Add(1) }

func TestClockTicksListeners(t *testing.T) {
	c := NewClock(5*time.Millisecond, zap.NewNop())
	l := &tickCounter{}
	c.AddListener(l)

	c.Start(context.Background())
	deadline := time.Now().Add(2 * time.Second)
	for l.n.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	c.Stop()

	if l.n.Load() < 3 {
		t.Fatalf("listener saw %d ticks", l.n.Load())
	}
	after := l.n.Load()
	time.Sleep(20 * time.Millisecond)
	if l.n.Load() != after {
		t.Error("ticks delivered after Stop")
	}
	if c.Ticks() != after {
		t.Errorf("Ticks = %d, listener saw %d", c.Ticks(), after)
	}
}

func TestStep(t *testing.T) {
	c := NewClock(time.Hour, zap.NewNop())
	l := &tickCounter{}
	c.AddListener(l)
	c.Step(context.Background())
	c.Step(context.Background())
	if l.n.Load() != 2 || c.Ticks() != 2 {
		t.Errorf("listener = %d, ticks = %d", l.n.Load(), c.Ticks())
	}
	c.Stop()
}

type fakeRunner struct {
	calls int
	err   error
}

func (f *fakeRunner) Run(_ context.Context, n int) (int, error) {
	f.calls++
	return n, f.err
}

func TestDriverRunsBatches(t *testing.T) {
	r := &fakeRunner{}
	d := NewDriver(r, 5, zap.NewNop())
	d.OnTick(context.Background(), 1)
	d.OnTick(context.Background(), 2)
	if d.Cycles() != 10 || r.calls != 2 {
		t.Errorf("cycles = %d, calls = %d", d.Cycles(), r.calls)
	}
}

func TestDriverHaltsOnInvariant(t *testing.T) {
	r := &fakeRunner{err: fmt.Errorf("%w: test", memory.ErrInvariant)}
	d := NewDriver(r, 1, zap.NewNop())
	d.OnTick(context.Background(), 1)
	d.OnTick(context.Background(), 2)
	if r.calls != 1 {
		t.Errorf("runner called %d times after corruption", r.calls)
	}
	if !errors.Is(d.Err(), memory.ErrInvariant) {
		t.Errorf("Err = %v", d.Err())
	}
}

func TestDriverSurvivesFiringErrors(t *testing.T) {
	r := &fakeRunner{err: errors.New("fire bird: boom")}
	d := NewDriver(r, 1, zap.NewNop())
	d.OnTick(context.Background(), 1)
	d.OnTick(context.Background(), 2)
	if r.calls != 2 || d.Err() != nil {
		t.Errorf("calls = %d, err = %v", r.calls, d.Err())
	}
}

type recorder struct{ rows []store.StatsRow }

func (r *recorder) RecordStats(_ context.Context, row store.StatsRow) error {
	r.rows = append(r.rows, row)
	return nil
}

func TestReporterSamplesEveryN(t *testing.T) {
	m := memory.New(memory.DefaultParams(), nil, nil, nil, zap.NewNop())
	m.Activate(context.Background(), "bird", budget.New(0.5, 0.5, 0.5))
	rec := &recorder{}
	r := NewReporter(m, nil, rec, 3, zap.NewNop())

	for tick := int64(1); tick <= 7; tick++ {
		r.OnTick(context.Background(), tick)
	}
	if len(rec.rows) != 2 {
		t.Fatalf("recorded %d samples, want 2", len(rec.rows))
	}
	if rec.rows[0].Concepts != 1 || rec.rows[0].Mass != 0.5 {
		t.Errorf("sample = %+v", rec.rows[0])
	}
}

func TestClockDrivesMemory(t *testing.T) {
	m := memory.New(memory.DefaultParams(), nil, nil, nil, zap.NewNop())
	m.Activate(context.Background(), "bird", budget.New(0.5, 0.5, 0.5))

	c := NewClock(time.Hour, zap.NewNop())
	d := NewDriver(m, 4, zap.NewNop())
	c.AddListener(d)
	c.Step(context.Background())

	if m.Time() != 4 || d.Cycles() != 4 {
		t.Errorf("time = %d, driver cycles = %d", m.Time(), d.Cycles())
	}
}
