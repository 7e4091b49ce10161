package memory

import (
	"github.com/nidhogg/nuka-mind/internal/bag"
	"github.com/nidhogg/nuka-mind/internal/budget"
	"github.com/nidhogg/nuka-mind/internal/concept"
)

// Params tunes the control loop.
type Params struct {
	Concepts         bag.Options    // the concept bag
	Links            concept.Params // per-concept link bags
	DecayRate        float64        // durability exponent per elapsed cycle, default 0.1
	QualityRatio     float64        // share of quality kept as a decay floor, default 0.3
	TaskLinksPerFire int            // links handed to the firer, default 3
	Activation       budget.Mode
}

// DefaultParams returns the reference tuning.
func DefaultParams() Params {
	return Params{
		Concepts:         bag.DefaultOptions(),
		Links:            concept.DefaultParams(),
		DecayRate:        0.1,
		QualityRatio:     budget.DefaultQualityRatio,
		TaskLinksPerFire: 3,
		Activation:       budget.ActivateMerge,
	}
}

func (p Params) withDefaults() Params {
	def := DefaultParams()
	if p.DecayRate <= 0 {
		p.DecayRate = def.DecayRate
	}
	if p.QualityRatio <= 0 {
		p.QualityRatio = def.QualityRatio
	}
	if p.TaskLinksPerFire <= 0 {
		p.TaskLinksPerFire = def.TaskLinksPerFire
	}
	return p
}
