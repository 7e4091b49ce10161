package subcon

import (
	"context"
	"fmt"
	"sync"

	"github.com/dgraph-io/ristretto"
	"github.com/nidhogg/nuka-mind/internal/concept"
)

// Ristretto is a bounded in-process cache with TinyLFU admission. Each
// concept costs 1, so MaxItems bounds the count. Admission may refuse a
// concept, in which case Add returns ErrRejected.
type Ristretto struct {
	mu    sync.Mutex
	cache *ristretto.Cache
	opts  Options
}

var _ Cache = (*Ristretto)(nil)

// NewRistretto creates the cache. MaxItems must be positive.
func NewRistretto(opts Options) (*Ristretto, error) {
	if opts.MaxItems <= 0 {
		return nil, fmt.Errorf("ristretto subconscious needs max_items > 0")
	}
	r := &Ristretto{opts: opts}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        int64(opts.MaxItems) * 10,
		MaxCost:            int64(opts.MaxItems),
		BufferItems:        64,
		IgnoreInternalCost: true,
		OnEvict: func(item *ristretto.Item) {
			if c, ok := item.Value.(*concept.Concept); ok {
				r.opts.evicted(c)
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create ristretto cache: %w", err)
	}
	r.cache = cache
	return r, nil
}

func (r *Ristretto) Add(_ context.Context, c *concept.Concept) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.cache.Set(string(c.Term()), c, 1) {
		return ErrRejected
	}
	r.cache.Wait()
	return nil
}

func (r *Ristretto) Take(_ context.Context, term concept.Term) (*concept.Concept, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.cache.Get(string(term))
	if !ok {
		return nil, ErrNotFound
	}
	r.cache.Del(string(term))
	c, ok := v.(*concept.Concept)
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

// Close stops the cache's background goroutines.
func (r *Ristretto) Close() {
	r.cache.Close()
}
