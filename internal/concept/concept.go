// Package concept defines the items held in memory: concepts keyed by term,
// and the task and term links each concept keeps in its own bags.
package concept

import (
	"fmt"

	"github.com/nidhogg/nuka-mind/internal/bag"
	"github.com/nidhogg/nuka-mind/internal/budget"
)

// Term is the stable key of a concept. The term algebra lives elsewhere;
// memory only needs equality and hashing.
type Term string

// Params sizes the per-concept link bags.
type Params struct {
	TaskLinks bag.Options
	TermLinks bag.Options
}

// DefaultParams returns small link bags suited to per-concept bookkeeping.
func DefaultParams() Params {
	return Params{
		TaskLinks: bag.Options{Levels: 10, Capacity: 20, FireThreshold: 5},
		TermLinks: bag.Options{Levels: 10, Capacity: 50, FireThreshold: 5},
	}
}

// Concept is the memory unit for one term.
type Concept struct {
	term      Term
	budget    budget.Budget
	taskLinks *bag.LevelBag[string, *TaskLink]
	termLinks *bag.LevelBag[Term, *TermLink]
}

var _ bag.Item[Term] = (*Concept)(nil)

// New creates a concept with empty link bags.
func New(term Term, b budget.Budget, p Params) *Concept {
	return &Concept{
		term:      term,
		budget:    b.Normalized(),
		taskLinks: bag.NewLevelBag[string, *TaskLink](p.TaskLinks),
		termLinks: bag.NewLevelBag[Term, *TermLink](p.TermLinks),
	}
}

func (c *Concept) Key() Term               { return c.term }
func (c *Concept) Term() Term              { return c.term }
func (c *Concept) Budget() *budget.Budget { return &c.budget }

// AddTaskLink stores l, returning a link that fell out of the bag.
func (c *Concept) AddTaskLink(l *TaskLink) (*TaskLink, bool) {
	return c.taskLinks.Put(l)
}

// AddTermLink stores l, returning a link that fell out of the bag.
func (c *Concept) AddTermLink(l *TermLink) (*TermLink, bool) {
	return c.termLinks.Put(l)
}

// TopTaskLinks returns up to n task links, highest priority level first.
func (c *Concept) TopTaskLinks(n int) []*TaskLink { return c.taskLinks.Top(n) }

// TopTermLinks returns up to n term links, highest priority level first.
func (c *Concept) TopTermLinks(n int) []*TermLink { return c.termLinks.Top(n) }

func (c *Concept) TaskLinkCount() int { return c.taskLinks.Size() }
func (c *Concept) TermLinkCount() int { return c.termLinks.Size() }

// TermLink returns the link to target if present.
func (c *Concept) TermLink(target Term) (*TermLink, bool) {
	return c.termLinks.Get(target)
}

func (c *Concept) String() string {
	return fmt.Sprintf("%s %s", c.term, c.budget)
}
