package scoring

import (
	"proctor-go/internal/config"
	"proctor-go/internal/models"
)

// Policy is the tunable penalty table. Values come from configuration so
// institutions can adjust them without a rebuild.
type Policy struct {
	SeverityWeightLow    float64
	SeverityWeightMedium float64
	SeverityWeightHigh   float64

	RepetitionThreshold  int
	RepetitionMultiplier float64
	EventPenaltyCap      float64

	PlagiarismPenaltyCap  float64
	PlagiarismFloor       float64
	PlagiarismHardCeiling float64
	TypingPenaltyCap      float64
	TypingFloor           float64

	ReviewThreshold float64
}

// PolicyFromConfig builds a Policy from the proctoring config section.
func PolicyFromConfig(c config.ProctoringConfig) Policy {
	return Policy{
		SeverityWeightLow:     c.SeverityWeightLow,
		SeverityWeightMedium:  c.SeverityWeightMedium,
		SeverityWeightHigh:    c.SeverityWeightHigh,
		RepetitionThreshold:   c.RepetitionThreshold,
		RepetitionMultiplier:  c.RepetitionMultiplier,
		EventPenaltyCap:       c.EventPenaltyCap,
		PlagiarismPenaltyCap:  c.PlagiarismPenaltyCap,
		PlagiarismFloor:       c.PlagiarismFloor,
		PlagiarismHardCeiling: c.PlagiarismHardCeiling,
		TypingPenaltyCap:      c.TypingPenaltyCap,
		TypingFloor:           c.TypingFloor,
		ReviewThreshold:       c.ReviewThreshold,
	}
}

// DefaultPolicy mirrors the configuration defaults. Tests and tools use it
// directly so they do not need a viper instance.
func DefaultPolicy() Policy {
	return Policy{
		SeverityWeightLow:     1,
		SeverityWeightMedium:  5,
		SeverityWeightHigh:    15,
		RepetitionThreshold:   3,
		RepetitionMultiplier:  2,
		EventPenaltyCap:       30,
		PlagiarismPenaltyCap:  40,
		PlagiarismFloor:       0.3,
		PlagiarismHardCeiling: 0.85,
		TypingPenaltyCap:      20,
		TypingFloor:           0.5,
		ReviewThreshold:       50,
	}
}

// SeverityWeight returns the base penalty weight for a severity bucket.
func (p Policy) SeverityWeight(severity models.Severity) float64 {
	switch severity {
	case models.SeverityHigh:
		return p.SeverityWeightHigh
	case models.SeverityMedium:
		return p.SeverityWeightMedium
	default:
		return p.SeverityWeightLow
	}
}

// EventPenalty computes the penalty for one security event given how many
// events of the same type the session has seen so far, this one included.
// From the repetition threshold on, the weight doubles (or whatever the
// configured multiplier is), capped per event.
func (p Policy) EventPenalty(severity models.Severity, occurrence int) float64 {
	penalty := p.SeverityWeight(severity)
	if occurrence >= p.RepetitionThreshold {
		penalty *= p.RepetitionMultiplier
	}
	if penalty > p.EventPenaltyCap {
		penalty = p.EventPenaltyCap
	}
	return penalty
}

// PlagiarismPenalty maps a similarity score in [0,1] onto a capped penalty.
// Monotonic non-decreasing; zero below the floor so routine overlap in
// short answers costs nothing.
func (p Policy) PlagiarismPenalty(similarity float64) float64 {
	return rampPenalty(similarity, p.PlagiarismFloor, p.PlagiarismPenaltyCap)
}

// TypingPenalty maps a rhythm anomaly score in [0,1] onto a capped penalty.
func (p Policy) TypingPenalty(anomaly float64) float64 {
	return rampPenalty(anomaly, p.TypingFloor, p.TypingPenaltyCap)
}

// rampPenalty is zero up to floor, then rises linearly to cap at 1.0.
func rampPenalty(value, floor, cap float64) float64 {
	if value <= floor {
		return 0
	}
	if value >= 1 {
		return cap
	}
	if floor >= 1 {
		return 0
	}
	return cap * (value - floor) / (1 - floor)
}
