// Package inference provides the default firing collaborator: activation
// spreads from a fired concept's tasks along its strongest term links.
package inference

import (
	"context"

	"go.uber.org/zap"

	"github.com/nidhogg/nuka-mind/internal/budget"
	"github.com/nidhogg/nuka-mind/internal/concept"
	"github.com/nidhogg/nuka-mind/internal/memory"
)

// SpreadOpts controls spreading activation behavior.
type SpreadOpts struct {
	DecayFactor float64 // per-hop decay of priority and confidence, default 0.7
	Threshold   float64 // min derived priority, default 0.05
	MaxTargets  int     // term links followed per fire, default 5
}

// DefaultSpreadOpts returns sensible defaults.
func DefaultSpreadOpts() SpreadOpts {
	return SpreadOpts{
		DecayFactor: 0.7,
		Threshold:   0.05,
		MaxTargets:  5,
	}
}

// Spreader is a memory.Firer. Each task link of the fired concept is pushed
// one hop along each of the top term links, attenuated by DecayFactor.
// Without task links the concept's own budget is spread instead.
type Spreader struct {
	opts   SpreadOpts
	logger *zap.Logger
}

var _ memory.Firer = (*Spreader)(nil)

func NewSpreader(opts SpreadOpts, logger *zap.Logger) *Spreader {
	def := DefaultSpreadOpts()
	if opts.DecayFactor <= 0 || opts.DecayFactor > 1 {
		opts.DecayFactor = def.DecayFactor
	}
	if opts.MaxTargets <= 0 {
		opts.MaxTargets = def.MaxTargets
	}
	if opts.Threshold < 0 {
		opts.Threshold = 0
	}
	return &Spreader{opts: opts, logger: logger}
}

func (s *Spreader) Fire(ctx context.Context, c *concept.Concept, links []*concept.TaskLink) ([]memory.Derivation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	targets := c.TopTermLinks(s.opts.MaxTargets)
	if len(targets) == 0 {
		return nil, nil
	}

	var out []memory.Derivation
	if len(links) == 0 {
		src := *c.Budget()
		for _, tg := range targets {
			if d, ok := s.spread(src, tg, nil); ok {
				out = append(out, d)
			}
		}
	}
	for _, tl := range links {
		truth := tl.Task.Truth
		for _, tg := range targets {
			if d, ok := s.spread(*tl.Budget(), tg, &truth); ok {
				out = append(out, d)
			}
		}
	}

	s.logger.Debug("spreading activation",
		zap.String("concept", string(c.Term())),
		zap.Int("task_links", len(links)),
		zap.Int("targets", len(targets)),
		zap.Int("derived", len(out)))
	return out, nil
}

func (s *Spreader) spread(src budget.Budget, tg *concept.TermLink, truth *budget.Truth) (memory.Derivation, bool) {
	link := *tg.Budget()
	p := budget.Clamp(s.opts.DecayFactor * budget.Clamp(src.Priority*link.Priority))
	if p < s.opts.Threshold {
		return memory.Derivation{}, false
	}
	d := memory.Derivation{
		Term:   tg.Target,
		Budget: budget.New(p, (src.Durability+link.Durability)/2, src.Quality),
	}
	if truth != nil {
		t := budget.NewTruth(truth.Frequency, truth.Confidence*s.opts.DecayFactor)
		d.Truth = &t
	}
	return d, true
}
