package subcon

import (
	"context"
	"errors"
	"testing"

	"github.com/nidhogg/nuka-mind/internal/budget"
	"github.com/nidhogg/nuka-mind/internal/concept"
)

func newConcept(term string, p float64) *concept.Concept {
	return concept.New(concept.Term(term), budget.New(p, 0.5, 0.5), concept.DefaultParams())
}

func TestLRUAddTake(t *testing.T) {
	ctx := context.Background()
	l := NewLRU(Options{})
	c := newConcept("bird", 0.4)

	if err := l.Add(ctx, c); err != nil {
		t.Fatalf("Add: %v", err)
	}
	got, err := l.Take(ctx, "bird")
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if got != c {
		t.Error("Take returned a different concept")
	}
	if _, err := l.Take(ctx, "bird"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Take err = %v, want ErrNotFound", err)
	}
}

func TestLRUEvictsOldest(t *testing.T) {
	ctx := context.Background()
	var evicted []concept.Term
	l := NewLRU(Options{MaxItems: 2, OnEvict: func(c *concept.Concept) {
		evicted = append(evicted, c.Term())
	}})

	l.Add(ctx, newConcept("a", 0.1))
	l.Add(ctx, newConcept("b", 0.1))
	l.Add(ctx, newConcept("a", 0.2))
	l.Add(ctx, newConcept("c", 0.1))

	if len(evicted) != 1 || evicted[0] != "b" {
		t.Errorf("evicted = %v, want [b]", evicted)
	}
	n, _ := l.Len(ctx)
	if n != 2 {
		t.Errorf("Len = %d, want 2", n)
	}
	got, err := l.Take(ctx, "a")
	if err != nil || got.Budget().Priority != 0.2 {
		t.Errorf("Take(a) = %v, %v; want the re-added concept", got, err)
	}
}

func TestLRUUnbounded(t *testing.T) {
	ctx := context.Background()
	l := NewLRU(Options{})
	for i := 0; i < 500; i++ {
		l.Add(ctx, newConcept(string(rune('a'+i%26))+string(rune('a'+i/26)), 0.1))
	}
	if n, _ := l.Len(ctx); n != 500 {
		t.Errorf("Len = %d, want 500", n)
	}
}
