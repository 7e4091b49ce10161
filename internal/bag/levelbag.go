package bag

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/elliotchance/orderedmap/v3"
	"github.com/nidhogg/nuka-mind/internal/budget"
)

const massTolerance = 1e-6

// entry records the priority an item had when it entered its level, so that
// removal subtracts exactly what insertion added to the mass.
type entry[V any] struct {
	item V
	pri  float64
}

// LevelBag is a Bag that partitions items into discrete priority levels.
// Each level is FIFO ordered. Selection walks a shared distributor table so
// that level l is visited l+1 times per pass.
//
// All methods are safe for concurrent use. Mutations, including the
// evict-then-insert compound in Put, run under a single write lock.
type LevelBag[K comparable, V Item[K]] struct {
	mu sync.RWMutex

	opts   Options
	dist   *Distributor
	rng    *rand.Rand
	names  map[K]V
	levels []*orderedmap.OrderedMap[K, entry[V]]
	mass   float64

	cursor  int
	current int
	counter int
}

var _ Bag[string, Item[string]] = (*LevelBag[string, Item[string]])(nil)

// NewLevelBag creates an empty bag.
func NewLevelBag[K comparable, V Item[K]](opts Options) *LevelBag[K, V] {
	opts = opts.withDefaults()
	b := &LevelBag[K, V]{
		opts:    opts,
		dist:    DistributorFor(opts.Levels),
		rng:     rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)),
		names:   make(map[K]V, opts.Capacity),
		levels:  make([]*orderedmap.OrderedMap[K, entry[V]], opts.Levels),
		current: -1,
	}
	for i := range b.levels {
		b.levels[i] = orderedmap.NewOrderedMap[K, entry[V]]()
	}
	return b
}

// LevelOf maps a priority to its level index: ceil(p*levels)-1, clamped.
func LevelOf(p float64, levels int) int {
	l := int(math.Ceil(budget.Clamp(p)*float64(levels))) - 1
	if l < 0 {
		return 0
	}
	if l >= levels {
		return levels - 1
	}
	return l
}

// Options returns the effective options.
func (b *LevelBag[K, V]) Options() Options { return b.opts }

// Put inserts v or merges it into the item already stored under its key.
func (b *LevelBag[K, V]) Put(v V) (V, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var zero V
	key := v.Key()
	if old, ok := b.names[key]; ok {
		b.removeLocked(key, old)
		*old.Budget() = b.opts.Merge(*old.Budget(), *v.Budget())
		v = old
	}

	target := LevelOf(v.Budget().Priority, b.opts.Levels)
	if len(b.names) >= b.opts.Capacity {
		out := b.lowestNonEmptyLocked()
		if out < 0 {
			b.violationLocked("put")
		} else if out > target {
			b.checkLocked("put")
			return v, true
		} else {
			evicted := b.popFrontLocked(out)
			b.insertLocked(v, target)
			b.checkLocked("put")
			return evicted, true
		}
	}

	b.insertLocked(v, target)
	b.checkLocked("put")
	return zero, false
}

// Take removes the item stored under key.
func (b *LevelBag[K, V]) Take(key K) (V, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	v, ok := b.names[key]
	if !ok {
		var zero V
		return zero, false
	}
	b.removeLocked(key, v)
	b.checkLocked("take")
	return v, true
}

// TakeNext removes the item chosen by the distributor.
func (b *LevelBag[K, V]) TakeNext() (V, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var zero V
	if len(b.names) == 0 || !b.selectLocked("take next") {
		return zero, false
	}
	lv := b.levels[b.current]
	el := lv.Front()
	lv.Delete(el.Key)
	delete(b.names, el.Key)
	b.mass -= el.Value.pri
	b.counter--
	if lv.Len() == 0 {
		b.counter = 0
	}
	b.checkLocked("take next")
	return el.Value.item, true
}

// PeekNext returns what TakeNext would return. The cursor may advance but
// contents, size and mass are untouched.
func (b *LevelBag[K, V]) PeekNext() (V, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var zero V
	if len(b.names) == 0 || !b.selectLocked("peek next") {
		return zero, false
	}
	return b.levels[b.current].Front().Value.item, true
}

// Get looks up an item without removing it.
func (b *LevelBag[K, V]) Get(key K) (V, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.names[key]
	return v, ok
}

func (b *LevelBag[K, V]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.names)
}

func (b *LevelBag[K, V]) Capacity() int { return b.opts.Capacity }

func (b *LevelBag[K, V]) Mass() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.mass
}

// AveragePriority is mass over size, 0.01 for an empty bag, at most 1.
func (b *LevelBag[K, V]) AveragePriority() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.names) == 0 {
		return 0.01
	}
	return math.Min(b.mass/float64(len(b.names)), 1)
}

// LevelSize returns the number of items in level l.
func (b *LevelBag[K, V]) LevelSize(l int) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if l < 0 || l >= len(b.levels) {
		return 0
	}
	return b.levels[l].Len()
}

// EmptyLevels counts levels holding no items.
func (b *LevelBag[K, V]) EmptyLevels() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, lv := range b.levels {
		if lv.Len() == 0 {
			n++
		}
	}
	return n
}

// Each calls fn for every item, highest level first and FIFO within a
// level, until fn returns false. fn must not call back into the bag.
func (b *LevelBag[K, V]) Each(fn func(V) bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for l := len(b.levels) - 1; l >= 0; l-- {
		for el := b.levels[l].Front(); el != nil; el = el.Next() {
			if !fn(el.Value.item) {
				return
			}
		}
	}
}

// Top returns up to n items in Each order.
func (b *LevelBag[K, V]) Top(n int) []V {
	if n <= 0 {
		return nil
	}
	out := make([]V, 0, n)
	b.Each(func(v V) bool {
		out = append(out, v)
		return len(out) < n
	})
	return out
}

// Values returns every item in Each order.
func (b *LevelBag[K, V]) Values() []V {
	out := make([]V, 0, b.Size())
	b.Each(func(v V) bool {
		out = append(out, v)
		return true
	})
	return out
}

// Clear empties the bag and resets selection state.
func (b *LevelBag[K, V]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.names = make(map[K]V, b.opts.Capacity)
	for i := range b.levels {
		b.levels[i] = orderedmap.NewOrderedMap[K, entry[V]]()
	}
	b.mass = 0
	b.cursor = 0
	b.current = -1
	b.counter = 0
}

// Verify checks that the name index and the level partition agree and that
// the running mass matches a recomputation.
func (b *LevelBag[K, V]) Verify() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.verifyLocked("verify")
}

func (b *LevelBag[K, V]) String() string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var sb strings.Builder
	fmt.Fprintf(&sb, "LevelBag{size=%d/%d mass=%.4f levels=[", len(b.names), b.opts.Capacity, b.mass)
	first := true
	for l := len(b.levels) - 1; l >= 0; l-- {
		if n := b.levels[l].Len(); n > 0 {
			if !first {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "%d:%d", l, n)
			first = false
		}
	}
	sb.WriteString("]}")
	return sb.String()
}

func (b *LevelBag[K, V]) insertLocked(v V, l int) {
	pri := budget.Clamp(v.Budget().Priority)
	key := v.Key()
	b.levels[l].Set(key, entry[V]{item: v, pri: pri})
	b.names[key] = v
	b.mass += pri
}

// removeLocked drops key from the name index and from its level. The level
// is looked up from the current priority first and scanned for if the
// priority drifted since insertion.
func (b *LevelBag[K, V]) removeLocked(key K, v V) {
	delete(b.names, key)

	l := LevelOf(v.Budget().Priority, b.opts.Levels)
	if e, ok := b.levels[l].Get(key); ok {
		b.levels[l].Delete(key)
		b.mass -= e.pri
		return
	}
	for i, lv := range b.levels {
		if i == l {
			continue
		}
		if e, ok := lv.Get(key); ok {
			lv.Delete(key)
			b.mass -= e.pri
			return
		}
	}
	b.violationLocked("take")
}

func (b *LevelBag[K, V]) popFrontLocked(l int) V {
	lv := b.levels[l]
	el := lv.Front()
	lv.Delete(el.Key)
	delete(b.names, el.Key)
	b.mass -= el.Value.pri
	return el.Value.item
}

func (b *LevelBag[K, V]) lowestNonEmptyLocked() int {
	for l, lv := range b.levels {
		if lv.Len() > 0 {
			return l
		}
	}
	return -1
}

// selectLocked makes b.current a non-empty level with items left to drain.
func (b *LevelBag[K, V]) selectLocked(op string) bool {
	if b.current >= 0 && b.counter > 0 && b.levels[b.current].Len() > 0 {
		return true
	}
	l := b.nextNonEmptyLocked()
	if l < 0 {
		b.violationLocked(op)
		return false
	}
	b.current = l
	if l < b.opts.FireThreshold {
		b.counter = 1
	} else {
		b.counter = b.levels[l].Len()
	}
	return true
}

func (b *LevelBag[K, V]) nextNonEmptyLocked() int {
	if b.opts.Policy == PolicyFast {
		return b.probeLocked()
	}
	n := b.dist.Len()
	for i := 0; i < n; i++ {
		l := b.dist.At(b.cursor)
		b.cursor = (b.cursor + 1) % n
		if b.levels[l].Len() > 0 {
			return l
		}
	}
	return -1
}

// probeLocked picks a start level from the distributor at a random position
// and walks up from even starts, down from odd ones, wrapping around.
func (b *LevelBag[K, V]) probeLocked() int {
	start := b.dist.At(b.rng.IntN(b.dist.Len()))
	step := 1
	if start%2 == 1 {
		step = -1
	}
	n := len(b.levels)
	for i := 0; i < n; i++ {
		l := ((start+i*step)%n + n) % n
		if b.levels[l].Len() > 0 {
			return l
		}
	}
	return -1
}

func (b *LevelBag[K, V]) verifyLocked(op string) error {
	items := 0
	actual := 0.0
	for _, lv := range b.levels {
		items += lv.Len()
		for el := lv.Front(); el != nil; el = el.Next() {
			actual += el.Value.pri
		}
	}
	names := len(b.names)
	if d := names - items; d > 1 || d < -1 {
		return &InvariantError{Op: op, Names: names, Items: items, Mass: b.mass, Actual: b.mass}
	}
	if math.Abs(actual-b.mass) > massTolerance {
		return &InvariantError{Op: op, Names: names, Items: items, Mass: b.mass, Actual: actual}
	}
	return nil
}

func (b *LevelBag[K, V]) checkLocked(op string) {
	if !b.opts.CheckInvariants {
		return
	}
	if err := b.verifyLocked(op); err != nil {
		panic(err)
	}
}

// violationLocked handles bookkeeping that can only be wrong through a bug.
// Single-threaded bags panic with *InvariantError; concurrent bags carry on.
func (b *LevelBag[K, V]) violationLocked(op string) {
	if b.opts.Concurrent {
		return
	}
	items := 0
	for _, lv := range b.levels {
		items += lv.Len()
	}
	panic(&InvariantError{Op: op, Names: len(b.names), Items: items, Mass: b.mass, Actual: b.mass})
}
