// Package bag provides the capacity-bounded priority container used to decide
// which concepts and links get processing time.
//
// A Bag holds at most Capacity items keyed by a stable key. Items are
// admitted probabilistically by priority, selected with a low-variance
// weighted round-robin over discrete priority levels, and evicted from the
// lowest occupied level when the bag overflows.
package bag

import (
	"fmt"

	"github.com/nidhogg/nuka-mind/internal/budget"
)

// Item is anything the bag can hold: a stable key and a mutable budget.
// The key must not change while the item is in a bag.
type Item[K comparable] interface {
	Key() K
	Budget() *budget.Budget
}

// Bag is a capacity-bounded keyed priority multiset.
type Bag[K comparable, V Item[K]] interface {
	// Put inserts v, or merges its budget into the item already stored under
	// the same key. When ok is true overflow is either an evicted item or v
	// itself if v could not be admitted.
	Put(v V) (overflow V, ok bool)
	// Take removes the item stored under key.
	Take(key K) (V, bool)
	// TakeNext removes the next item selected for firing.
	TakeNext() (V, bool)
	// PeekNext returns what TakeNext would return without removing it.
	PeekNext() (V, bool)
	// Get looks up an item without removing it.
	Get(key K) (V, bool)
	Size() int
	Capacity() int
	// Mass is the sum of priorities of all items.
	Mass() float64
	Clear()
}

// InvariantError reports corrupted bag bookkeeping. It is a bug, not a
// runtime condition: in single-threaded mode the bag panics with it.
type InvariantError struct {
	Op     string
	Names  int
	Items  int
	Mass   float64
	Actual float64
}

func (e *InvariantError) Error() string {
	if e.Mass != e.Actual {
		return fmt.Sprintf("bag invariant violated in %s: mass %.6f, recomputed %.6f", e.Op, e.Mass, e.Actual)
	}
	return fmt.Sprintf("bag invariant violated in %s: %d names, %d level items", e.Op, e.Names, e.Items)
}
