// Package budget implements the resource value algebra that drives admission,
// eviction and decay in the concept memory: Budget (priority, durability,
// quality) and the Truth value used to seed quality.
//
// All operators are pure functions over value types. Every arithmetic step is
// clamped to [0,1] so NaN or out-of-range input never propagates.
package budget

import (
	"fmt"
	"math"
)

// DefaultQualityRatio scales quality into the priority floor used by Decay.
const DefaultQualityRatio = 0.3

// Budget governs how likely an item is to be selected and how fast it fades.
type Budget struct {
	Priority       float64 `json:"priority"`
	Durability     float64 `json:"durability"`
	Quality        float64 `json:"quality"`
	LastForgetTime int64   `json:"last_forget_time"`
}

// New returns a clamped budget.
func New(priority, durability, quality float64) Budget {
	return Budget{
		Priority:   Clamp(priority),
		Durability: Clamp(durability),
		Quality:    Clamp(quality),
	}
}

// NewAt returns a clamped budget whose decay clock starts at now.
func NewAt(priority, durability, quality float64, now int64) Budget {
	b := New(priority, durability, quality)
	b.LastForgetTime = now
	return b
}

// Clamp limits x to [0,1]. NaN becomes 0.
func Clamp(x float64) float64 {
	switch {
	case math.IsNaN(x), x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}

// Normalized returns b with every component clamped.
func (b Budget) Normalized() Budget {
	b.Priority = Clamp(b.Priority)
	b.Durability = Clamp(b.Durability)
	b.Quality = Clamp(b.Quality)
	return b
}

// Summary is the geometric mean of the three components.
func (b Budget) Summary() float64 {
	return Clamp(math.Cbrt(b.Priority * b.Durability * b.Quality))
}

func (b Budget) String() string {
	return fmt.Sprintf("$%.4f;%.4f;%.4f$", b.Priority, b.Durability, b.Quality)
}

// Mode selects how an incoming budget reinforces an existing one.
type Mode int

const (
	// ActivateMerge favours the larger value without exceeding it.
	ActivateMerge Mode = iota
	// ActivateMax takes the component-wise maximum.
	ActivateMax
	// ActivateOr combines priorities with probabilistic or; may exceed both inputs.
	ActivateOr
)

// ParseMode maps a config name to a Mode. Unknown names fall back to ActivateMerge.
func ParseMode(s string) Mode {
	switch s {
	case "max":
		return ActivateMax
	case "or":
		return ActivateOr
	default:
		return ActivateMerge
	}
}

func (m Mode) String() string {
	switch m {
	case ActivateMax:
		return "max"
	case ActivateOr:
		return "or"
	default:
		return "merge"
	}
}

// Merge combines a reinforcing budget into an existing one. Priority and
// quality take the contraharmonic mean, which lies between the arithmetic
// mean and the maximum, so repeated weak evidence cannot suppress a strong
// prior. Durability is averaged.
func Merge(existing, incoming Budget) Budget {
	out := existing
	out.Priority = weighted(Clamp(existing.Priority), Clamp(incoming.Priority))
	out.Durability = average(Clamp(existing.Durability), Clamp(incoming.Durability))
	out.Quality = weighted(Clamp(existing.Quality), Clamp(incoming.Quality))
	return out
}

// Activate applies incoming to existing according to mode.
func Activate(existing, incoming Budget, mode Mode) Budget {
	switch mode {
	case ActivateMax:
		out := existing
		out.Priority = math.Max(Clamp(existing.Priority), Clamp(incoming.Priority))
		out.Durability = math.Max(Clamp(existing.Durability), Clamp(incoming.Durability))
		out.Quality = math.Max(Clamp(existing.Quality), Clamp(incoming.Quality))
		return out
	case ActivateOr:
		out := existing
		out.Priority = Or(existing.Priority, incoming.Priority)
		out.Durability = average(Clamp(existing.Durability), Clamp(incoming.Durability))
		out.Quality = Clamp(existing.Quality)
		return out
	default:
		return Merge(existing, incoming)
	}
}

// Or is the probabilistic sum 1-(1-a)(1-b).
func Or(a, b float64) float64 {
	na := Clamp(1 - Clamp(a))
	nb := Clamp(1 - Clamp(b))
	return Clamp(1 - Clamp(na*nb))
}

// Decay fades priority over elapsed cycles toward the quality floor using
// DefaultQualityRatio.
func Decay(b Budget, elapsed int64, rate float64) Budget {
	return DecayRelative(b, elapsed, rate, DefaultQualityRatio)
}

// DecayRelative multiplies the part of priority above quality*ratio by
// durability^(elapsed*rate). Priority never increases and never drops below
// the floor; a budget already under the floor is left as is.
func DecayRelative(b Budget, elapsed int64, rate, ratio float64) Budget {
	b = b.Normalized()
	if elapsed <= 0 || rate <= 0 || math.IsNaN(rate) {
		return b
	}
	floor := Clamp(b.Quality * Clamp(ratio))
	if b.Priority <= floor {
		return b
	}
	excess := Clamp(b.Priority - floor)
	factor := Clamp(math.Pow(b.Durability, float64(elapsed)*rate))
	b.Priority = Clamp(floor + Clamp(excess*factor))
	return b
}

// Forget decays b over the cycles since its last forget time and restarts
// its decay clock at now.
func Forget(b Budget, now int64, rate, ratio float64) Budget {
	out := DecayRelative(b, now-b.LastForgetTime, rate, ratio)
	out.LastForgetTime = now
	return out
}

func weighted(a, b float64) float64 {
	sum := a + b
	if sum <= 0 {
		return 0
	}
	return Clamp((a*a + b*b) / sum)
}

func average(a, b float64) float64 {
	return Clamp((a + b) / 2)
}
