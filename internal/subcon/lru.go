package subcon

import (
	"context"
	"sync"

	"github.com/elliotchance/orderedmap/v3"
	"github.com/nidhogg/nuka-mind/internal/concept"
)

// LRU keeps concepts in insertion order and drops the oldest when full.
// Re-adding a term moves it to the back.
type LRU struct {
	mu    sync.Mutex
	items *orderedmap.OrderedMap[concept.Term, *concept.Concept]
	opts  Options
}

var (
	_ Cache = (*LRU)(nil)
	_ Lener = (*LRU)(nil)
)

// NewLRU creates an in-process cache. MaxItems 0 makes it unbounded.
func NewLRU(opts Options) *LRU {
	return &LRU{
		items: orderedmap.NewOrderedMap[concept.Term, *concept.Concept](),
		opts:  opts,
	}
}

func (l *LRU) Add(_ context.Context, c *concept.Concept) error {
	l.mu.Lock()
	term := c.Term()
	l.items.Delete(term)
	l.items.Set(term, c)

	var evicted []*concept.Concept
	for l.opts.MaxItems > 0 && l.items.Len() > l.opts.MaxItems {
		el := l.items.Front()
		l.items.Delete(el.Key)
		evicted = append(evicted, el.Value)
	}
	l.mu.Unlock()

	for _, e := range evicted {
		l.opts.evicted(e)
	}
	return nil
}

func (l *LRU) Take(_ context.Context, term concept.Term) (*concept.Concept, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.items.Get(term)
	if !ok {
		return nil, ErrNotFound
	}
	l.items.Delete(term)
	return c, nil
}

func (l *LRU) Len(context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.items.Len(), nil
}
