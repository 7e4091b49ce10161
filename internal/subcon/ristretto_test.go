package subcon

import (
	"context"
	"errors"
	"testing"
)

func TestRistrettoRequiresBound(t *testing.T) {
	if _, err := NewRistretto(Options{}); err == nil {
		t.Error("expected error without max_items")
	}
}

func TestRistrettoAddTake(t *testing.T) {
	ctx := context.Background()
	r, err := NewRistretto(Options{MaxItems: 100})
	if err != nil {
		t.Fatalf("NewRistretto: %v", err)
	}
	defer r.Close()

	c := newConcept("bird", 0.4)
	if err := r.Add(ctx, c); err != nil {
		t.Fatalf("Add: %v", err)
	}
	got, err := r.Take(ctx, "bird")
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if got != c {
		t.Error("Take returned a different concept")
	}
	if _, err := r.Take(ctx, "bird"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Take err = %v, want ErrNotFound", err)
	}
	if _, err := r.Take(ctx, "fish"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Take(fish) err = %v, want ErrNotFound", err)
	}
}
