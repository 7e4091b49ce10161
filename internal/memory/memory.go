// Package memory runs the concept selection loop: each cycle takes one
// concept from a LevelBag, fires it, feeds derivations back, decays it and
// puts it back. Concepts pushed out of the bag go to the subconscious.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/nidhogg/nuka-mind/internal/bag"
	"github.com/nidhogg/nuka-mind/internal/budget"
	"github.com/nidhogg/nuka-mind/internal/concept"
	"github.com/nidhogg/nuka-mind/internal/events"
	"github.com/nidhogg/nuka-mind/internal/subcon"
)

// ErrInvariant wraps a corrupted bag detected during an operation. Memory
// cannot continue safely after it: once reported, every later mutating
// call returns it too.
var ErrInvariant = errors.New("memory invariant violated")

// conceptBag is the part of *bag.LevelBag memory relies on.
type conceptBag interface {
	bag.Bag[concept.Term, *concept.Concept]
	AveragePriority() float64
	EmptyLevels() int
	Top(n int) []*concept.Concept
	Verify() error
	String() string
}

// inflight tracks a concept that a cycle has taken out of the bag. Budget
// reinforcement arriving meanwhile is held back and applied on put back.
type inflight struct {
	c          *concept.Concept
	pending    budget.Budget
	reinforced bool
	removed    bool // Remove arrived while firing; drop instead of putting back
}

// Memory owns the concept bag and its subconscious.
type Memory struct {
	// mu serializes every compound take/merge/put section.
	mu       sync.Mutex
	params   Params
	concepts conceptBag
	inflight map[concept.Term]*inflight
	fault    atomic.Pointer[error]
	cache    subcon.Cache
	firer    Firer
	bus      *events.Bus
	now      atomic.Int64
	logger   *zap.Logger
}

// New creates a memory. cache, firer and bus may be nil: without a cache
// displaced concepts are destroyed, without a firer cycles derive nothing.
func New(p Params, cache subcon.Cache, firer Firer, bus *events.Bus, logger *zap.Logger) *Memory {
	p = p.withDefaults()
	return &Memory{
		params:   p,
		concepts: bag.NewLevelBag[concept.Term, *concept.Concept](p.Concepts),
		inflight: make(map[concept.Term]*inflight),
		cache:    cache,
		firer:    firer,
		bus:      bus,
		logger:   logger,
	}
}

// Time is the number of cycles started so far.
func (m *Memory) Time() int64 { return m.now.Load() }

// Params returns the effective tuning.
func (m *Memory) Params() Params { return m.params }

// Err returns the invariant violation that stopped memory, if any.
func (m *Memory) Err() error {
	if p := m.fault.Load(); p != nil {
		return *p
	}
	return nil
}

// Run executes n cycles back to back and returns how many ran. It stops
// early when ctx is done or a cycle fails.
func (m *Memory) Run(ctx context.Context, n int) (int, error) {
	if err := m.Err(); err != nil {
		return 0, err
	}
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if _, err := m.Cycle(ctx); err != nil {
			return i + 1, err
		}
	}
	return n, nil
}

// Cycle selects and fires one concept. fired is false when the bag had
// nothing to offer.
func (m *Memory) Cycle(ctx context.Context) (fired bool, err error) {
	if err := m.Err(); err != nil {
		return false, err
	}
	defer m.recoverInvariant(&err)

	now := m.now.Add(1)
	c, ok := m.begin()
	if !ok {
		return false, nil
	}
	m.bus.Emit(events.Event{Type: events.ConceptFire, Term: string(c.Term()), Priority: c.Budget().Priority, Cycle: now})

	var derived []Derivation
	var fireErr error
	if m.firer != nil {
		derived, fireErr = m.firer.Fire(ctx, c, c.TopTaskLinks(m.params.TaskLinksPerFire))
	}
	for _, d := range derived {
		if err := m.accept(ctx, c, d); err != nil {
			m.finish(ctx, c, now)
			return true, err
		}
	}
	m.finish(ctx, c, now)

	if fireErr != nil {
		return true, fmt.Errorf("fire %s: %w", c.Term(), fireErr)
	}
	return true, nil
}

func (m *Memory) begin() (*concept.Concept, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.concepts.TakeNext()
	if !ok {
		return nil, false
	}
	m.inflight[c.Term()] = &inflight{c: c}
	return c, true
}

// finish decays the fired concept over the cycles since it was last
// forgotten, applies reinforcement that arrived while it was out and puts
// it back.
func (m *Memory) finish(ctx context.Context, c *concept.Concept, now int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f := m.inflight[c.Term()]
	if f != nil && f.c != c {
		// c was removed, and a new concept for its term is firing elsewhere.
		m.forget(c, events.ReasonRemoved)
		return
	}
	delete(m.inflight, c.Term())
	if f != nil && f.removed {
		m.forget(c, events.ReasonRemoved)
		return
	}

	b := budget.Forget(*c.Budget(), now, m.params.DecayRate, m.params.QualityRatio)
	if f != nil && f.reinforced {
		b = budget.Activate(b, f.pending, m.params.Activation)
	}
	*c.Budget() = b
	m.putLocked(ctx, c)
}

func (m *Memory) accept(ctx context.Context, from *concept.Concept, d Derivation) error {
	b := d.Budget.Normalized()
	if d.Truth != nil {
		b.Quality = budget.QualityFromTruth(*d.Truth)
	}
	target, err := m.Conceptualize(ctx, d.Term, b, true)
	if err != nil {
		return err
	}
	if target == nil {
		return nil
	}
	if d.Truth != nil {
		task := concept.NewTask(d.Term, *d.Truth, b)
		target.AddTaskLink(concept.NewTaskLink(task, b))
	}
	if d.Term != from.Term() {
		from.AddTermLink(concept.NewTermLink(d.Term, b))
	}
	return nil
}

// Activate inserts or reinforces the concept for term.
func (m *Memory) Activate(ctx context.Context, term concept.Term, b budget.Budget) error {
	_, err := m.Conceptualize(ctx, term, b, true)
	return err
}

// Conceptualize returns the concept for term after reinforcing it with b.
// The concept is taken from the bag, remembered from the subconscious, or
// created when create is set. It returns nil when none of those apply or
// when the bag is full and the concept ranked lowest.
func (m *Memory) Conceptualize(ctx context.Context, term concept.Term, b budget.Budget, create bool) (c *concept.Concept, err error) {
	if err := m.Err(); err != nil {
		return nil, err
	}
	defer m.recoverInvariant(&err)

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conceptualizeLocked(ctx, term, b.Normalized(), create), nil
}

func (m *Memory) conceptualizeLocked(ctx context.Context, term concept.Term, b budget.Budget, create bool) *concept.Concept {
	now := m.now.Load()

	if f, ok := m.inflight[term]; ok && !f.removed {
		if f.reinforced {
			f.pending = budget.Merge(f.pending, b)
		} else {
			f.pending, f.reinforced = b, true
		}
		return f.c
	}

	c, ok := m.concepts.Take(term)
	if ok {
		*c.Budget() = budget.Forget(*c.Budget(), now, m.params.DecayRate, m.params.QualityRatio)
		*c.Budget() = budget.Activate(*c.Budget(), b, m.params.Activation)
	} else if c = m.rememberLocked(ctx, term, now); c != nil {
		*c.Budget() = budget.Activate(*c.Budget(), b, m.params.Activation)
	} else if create {
		c = concept.New(term, budget.NewAt(b.Priority, b.Durability, b.Quality, now), m.params.Links)
		m.bus.Emit(events.Event{Type: events.ConceptNew, Term: string(term), Priority: b.Priority, Cycle: now})
	} else {
		return nil
	}

	if !m.putLocked(ctx, c) {
		return nil
	}
	return c
}

// rememberLocked takes term from the subconscious. A miss, a failure and
// having no subconscious at all look the same to the caller. The decay
// clock restarts so time spent out of memory is not charged.
func (m *Memory) rememberLocked(ctx context.Context, term concept.Term, now int64) *concept.Concept {
	if m.cache == nil {
		return nil
	}
	c, err := m.cache.Take(ctx, term)
	if err != nil {
		if !errors.Is(err, subcon.ErrNotFound) {
			m.logger.Warn("subconscious take failed", zap.String("term", string(term)), zap.Error(err))
		}
		return nil
	}
	c.Budget().LastForgetTime = now
	m.bus.Emit(events.Event{Type: events.ConceptRemember, Term: string(term), Priority: c.Budget().Priority, Cycle: now})
	return c
}

// putLocked puts c into the bag and displaces whatever overflowed. It
// reports whether c itself is in the bag afterwards.
func (m *Memory) putLocked(ctx context.Context, c *concept.Concept) bool {
	out, over := m.concepts.Put(c)
	if !over {
		return true
	}
	if out.Term() == c.Term() {
		m.displaceLocked(ctx, out, events.ReasonRejected)
		return false
	}
	m.displaceLocked(ctx, out, events.ReasonEvicted)
	return true
}

// displaceLocked hands a concept that fell out of the bag to the
// subconscious, or forgets it.
func (m *Memory) displaceLocked(ctx context.Context, c *concept.Concept, reason string) {
	if m.cache != nil {
		err := m.cache.Add(ctx, c)
		if err == nil {
			return
		}
		if !errors.Is(err, subcon.ErrRejected) {
			m.logger.Warn("subconscious add failed", zap.String("term", string(c.Term())), zap.Error(err))
		}
		reason = events.ReasonCacheRejected
	}
	m.forget(c, reason)
}

func (m *Memory) forget(c *concept.Concept, reason string) {
	m.bus.Emit(events.Event{
		Type:     events.ConceptForget,
		Term:     string(c.Term()),
		Priority: c.Budget().Priority,
		Reason:   reason,
		Cycle:    m.now.Load(),
	})
}

// ForgetEvicted reports a concept the subconscious dropped on its own. It
// is meant as a subcon.Options.OnEvict callback and takes no locks.
func (m *Memory) ForgetEvicted(c *concept.Concept) {
	m.forget(c, events.ReasonSubconsciousFull)
}

// InputTask records a judgement about term: the concept is reinforced with
// b, quality seeded from truth, and a task link is attached.
func (m *Memory) InputTask(ctx context.Context, term concept.Term, truth budget.Truth, b budget.Budget) (*concept.Task, error) {
	b = b.Normalized()
	b.Quality = budget.QualityFromTruth(truth)
	task := concept.NewTask(term, truth, b)

	c, err := m.Conceptualize(ctx, term, b, true)
	if err != nil {
		return nil, err
	}
	if c != nil {
		c.AddTaskLink(concept.NewTaskLink(task, b))
	}
	return task, nil
}

// Link reinforces both terms and links them to each other with budget b.
func (m *Memory) Link(ctx context.Context, from, to concept.Term, b budget.Budget) error {
	a, err := m.Conceptualize(ctx, from, b, true)
	if err != nil {
		return err
	}
	z, err := m.Conceptualize(ctx, to, b, true)
	if err != nil {
		return err
	}
	if a != nil {
		a.AddTermLink(concept.NewTermLink(to, b))
	}
	if z != nil && from != to {
		z.AddTermLink(concept.NewTermLink(from, b))
	}
	return nil
}

// Concept returns a snapshot of the concept for term if it is in memory.
func (m *Memory) Concept(term concept.Term) (concept.Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if f, ok := m.inflight[term]; ok && !f.removed {
		return f.c.Snapshot(), true
	}
	c, ok := m.concepts.Get(term)
	if !ok {
		return concept.Snapshot{}, false
	}
	return c.Snapshot(), true
}

// Concepts returns snapshots of up to limit concepts, highest level first.
func (m *Memory) Concepts(limit int) []concept.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	top := m.concepts.Top(limit)
	out := make([]concept.Snapshot, 0, len(top))
	for _, c := range top {
		out = append(out, c.Snapshot())
	}
	return out
}

// PeekNext returns the concept the next cycle would fire.
func (m *Memory) PeekNext() (s concept.Snapshot, ok bool, err error) {
	if err := m.Err(); err != nil {
		return concept.Snapshot{}, false, err
	}
	defer m.recoverInvariant(&err)

	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.concepts.PeekNext()
	if !ok {
		return concept.Snapshot{}, false, nil
	}
	return c.Snapshot(), true, nil
}

// Remove drops the concept for term without sending it to the subconscious.
// A concept that is being fired is dropped when its cycle finishes.
func (m *Memory) Remove(term concept.Term) (removed bool, err error) {
	if err := m.Err(); err != nil {
		return false, err
	}
	defer m.recoverInvariant(&err)

	c, ok, pending := m.take(term)
	if ok && !pending {
		m.forget(c, events.ReasonRemoved)
	}
	return ok, nil
}

// take removes term from the bag, or marks it removed when it is in flight.
func (m *Memory) take(term concept.Term) (c *concept.Concept, ok, pending bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if f, found := m.inflight[term]; found && !f.removed {
		f.removed = true
		return f.c, true, true
	}
	c, ok = m.concepts.Take(term)
	return c, ok, false
}

// Verify checks the concept bag's bookkeeping.
func (m *Memory) Verify() error {
	if err := m.concepts.Verify(); err != nil {
		return m.fail(fmt.Errorf("%w: %w", ErrInvariant, err))
	}
	return nil
}

// fail records the first invariant violation and returns err.
func (m *Memory) fail(err error) error {
	if m.fault.CompareAndSwap(nil, &err) {
		m.logger.Error("memory corrupted", zap.Error(err))
	}
	return err
}

func (m *Memory) recoverInvariant(err *error) {
	r := recover()
	if r == nil {
		return
	}
	inv, ok := r.(*bag.InvariantError)
	if !ok {
		panic(r)
	}
	*err = m.fail(fmt.Errorf("%w: %w", ErrInvariant, inv))
}
