// Package subcon holds concepts that were pushed out of memory so that they
// can be remembered, rather than recreated, when their term comes up again.
package subcon

import (
	"context"
	"errors"
	"time"

	"github.com/nidhogg/nuka-mind/internal/concept"
)

var (
	// ErrNotFound is returned by Take when the term is not cached.
	ErrNotFound = errors.New("subconscious: not found")
	// ErrRejected is returned by Add when the cache declined to keep the concept.
	ErrRejected = errors.New("subconscious: rejected")
)

// Cache stores evicted concepts keyed by term.
type Cache interface {
	Add(ctx context.Context, c *concept.Concept) error
	// Take removes and returns the concept for term.
	Take(ctx context.Context, term concept.Term) (*concept.Concept, error)
}

// Lener is implemented by caches that can report their size.
type Lener interface {
	Len(ctx context.Context) (int, error)
}

// Options are shared by all backends. Not every backend honours every field.
type Options struct {
	MaxItems int           // 0 means unbounded where the backend allows it
	TTL      time.Duration // expiry for out-of-process backends, 0 keeps forever
	// Params sizes the link bags of concepts restored from snapshots.
	Params concept.Params
	// OnEvict is called for concepts the cache itself drops to make room.
	OnEvict func(*concept.Concept)
}

func (o Options) evicted(c *concept.Concept) {
	if o.OnEvict != nil && c != nil {
		o.OnEvict(c)
	}
}
