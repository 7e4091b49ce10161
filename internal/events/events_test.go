package events

import (
	"testing"

	"go.uber.org/zap"
)

func TestNilBusDrops(t *testing.T) {
	var b *Bus
	b.Emit(Event{Type: ConceptNew})
}

func TestBusStampsAndDelivers(t *testing.T) {
	b := NewBus(zap.NewNop())
	var got []Event
	b.Subscribe(func(e Event) { got = append(got, e) })
	b.Subscribe(func(e Event) { got = append(got, e) })

	b.Emit(Event{Type: ConceptFire, Term: "bird", Cycle: 3})
	if len(got) != 2 {
		t.Fatalf("delivered %d events, want 2", len(got))
	}
	if got[0].ID == "" || got[0].Time.IsZero() {
		t.Errorf("event not stamped: %+v", got[0])
	}
	if got[0].ID != got[1].ID {
		t.Error("handlers saw different events")
	}
}

func TestCounter(t *testing.T) {
	c := NewCounter()
	b := NewBus(zap.NewNop())
	b.Subscribe(c.Handle)

	b.Emit(Event{Type: ConceptNew})
	b.Emit(Event{Type: ConceptNew})
	b.Emit(Event{Type: ConceptFire})
	b.Emit(Event{Type: ConceptRemember})
	b.Emit(Event{Type: ConceptForget, Reason: ReasonEvicted})
	b.Emit(Event{Type: ConceptForget, Reason: ReasonRejected})
	b.Emit(Event{Type: ConceptForget, Reason: ReasonEvicted})

	s := c.Snapshot()
	if s.New != 2 || s.Fired != 1 || s.Remembered != 1 || s.Forgotten != 3 {
		t.Errorf("counts = %+v", s)
	}
	if s.Reasons[ReasonEvicted] != 2 || s.Reasons[ReasonRejected] != 1 {
		t.Errorf("reasons = %v", s.Reasons)
	}
}

func TestRedisStreamHandleNeverBlocks(t *testing.T) {
	s := NewRedisStream(nil, "", zap.NewNop())
	for i := 0; i < 300; i++ {
		s.Handle(Event{Type: ConceptFire})
	}
	if s.Dropped() != 300-256 {
		t.Errorf("Dropped = %d, want %d", s.Dropped(), 300-256)
	}
}
