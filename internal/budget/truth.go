package budget

import (
	"fmt"
	"math"
)

// MaxConfidence keeps confidence strictly below certainty.
const MaxConfidence = 0.99

// Truth is a minimal evidence value: how often a statement held and how much
// evidence backs that frequency.
type Truth struct {
	Frequency  float64 `json:"frequency"`
	Confidence float64 `json:"confidence"`
}

// NewTruth returns a truth value with frequency in [0,1] and confidence in
// [0, MaxConfidence].
func NewTruth(frequency, confidence float64) Truth {
	return Truth{
		Frequency:  Clamp(frequency),
		Confidence: math.Min(Clamp(confidence), MaxConfidence),
	}
}

// Expectation is the frequency pulled toward 0.5 by missing confidence.
func (t Truth) Expectation() float64 {
	t = NewTruth(t.Frequency, t.Confidence)
	return Clamp(t.Confidence*(t.Frequency-0.5) + 0.5)
}

func (t Truth) String() string {
	return fmt.Sprintf("%%%.2f;%.2f%%", t.Frequency, t.Confidence)
}

// QualityFromTruth maps evidence to a durable quality. It rises with
// confidence and with distance of frequency from 0.5: strongly true and
// strongly false statements are both worth keeping.
func QualityFromTruth(t Truth) float64 {
	t = NewTruth(t.Frequency, t.Confidence)
	extremeness := Clamp(0.5 + math.Abs(t.Frequency-0.5))
	return Clamp(t.Confidence * extremeness)
}
