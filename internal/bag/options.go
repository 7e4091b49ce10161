package bag

import (
	"fmt"
	"strings"

	"github.com/nidhogg/nuka-mind/internal/budget"
)

// Policy selects how TakeNext moves to the next non-empty level.
type Policy int

const (
	// PolicyDefault walks the distributor table. Reproducible run to run.
	PolicyDefault Policy = iota
	// PolicyFast picks a weighted random start level and probes up or down
	// from it until it finds an occupied level.
	PolicyFast
)

// ParsePolicy maps a config name to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return PolicyDefault, nil
	case "fast":
		return PolicyFast, nil
	default:
		return PolicyDefault, fmt.Errorf("unknown distributor policy %q", s)
	}
}

func (p Policy) String() string {
	if p == PolicyFast {
		return "fast"
	}
	return "default"
}

// MergeFunc folds an incoming budget into the budget of an item already in
// the bag.
type MergeFunc func(existing, incoming budget.Budget) budget.Budget

// Options configures a LevelBag. Zero Levels, Capacity and Merge fall back to
// DefaultOptions.
type Options struct {
	Levels   int
	Capacity int
	// FireThreshold is the first level drained in full on selection. Levels
	// below it yield one item per visit.
	FireThreshold int
	Policy        Policy
	// Concurrent switches the empty-levels violation from a panic to an
	// empty result.
	Concurrent bool
	// CheckInvariants runs Verify after every mutation.
	CheckInvariants bool
	// Seed feeds the PolicyFast start level generator.
	Seed  uint64
	Merge MergeFunc
}

// DefaultOptions returns the reference configuration.
func DefaultOptions() Options {
	return Options{
		Levels:        100,
		Capacity:      1000,
		FireThreshold: 50,
		Policy:        PolicyDefault,
		Merge:         budget.Merge,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Levels <= 0 {
		o.Levels = def.Levels
	}
	if o.Capacity <= 0 {
		o.Capacity = def.Capacity
	}
	if o.FireThreshold < 0 {
		o.FireThreshold = 0
	}
	if o.FireThreshold > o.Levels {
		o.FireThreshold = o.Levels
	}
	if o.Merge == nil {
		o.Merge = def.Merge
	}
	return o
}
