package memory

import (
	"context"

	"github.com/nidhogg/nuka-mind/internal/budget"
	"github.com/nidhogg/nuka-mind/internal/concept"
)

// Derivation is a result of firing a concept: a term to reinforce with a
// budget, and optionally the truth of a derived judgement about it.
type Derivation struct {
	Term   concept.Term
	Budget budget.Budget
	// Truth, when set, seeds the budget's quality and is stored as a task.
	Truth *budget.Truth
}

// Firer runs inference for a selected concept. Fire is called without any
// memory lock held; the derivations it returns are applied afterwards.
type Firer interface {
	Fire(ctx context.Context, c *concept.Concept, links []*concept.TaskLink) ([]Derivation, error)
}

// FirerFunc adapts a function to Firer.
type FirerFunc func(ctx context.Context, c *concept.Concept, links []*concept.TaskLink) ([]Derivation, error)

func (f FirerFunc) Fire(ctx context.Context, c *concept.Concept, links []*concept.TaskLink) ([]Derivation, error) {
	return f(ctx, c, links)
}
