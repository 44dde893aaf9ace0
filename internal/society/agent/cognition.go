package agent

import "github.com/xkilldash9x/conclave/internal/society/models"

// Outcome is the raw scoring produced for one challenge. The agent clamps every
// scalar before recording it.
type Outcome struct {
	Confidence       float64
	ValueAlignment   float64
	RiskLevel        float64
	RealityCoherence float64
	Breakthrough     models.Breakthrough
}

// Cognition is the scoring engine behind an agent. The agent serializes every
// call, so implementations do not need their own locking.
type Cognition interface {
	// Solve scores ch given the agent's current state. It may draw randomness
	// but must not change what the engine has learned.
	Solve(state State, ch models.Challenge) (Outcome, error)
	// Learn folds a committed solution into the engine.
	Learn(rec models.SolutionRecord)
	// Danger takes a fresh danger reading in [0,1].
	Danger() float64
	// TopValues returns up to n value tags, strongest first.
	TopValues(n int) []string
	// MetaphysicalUnderstanding is the depth of the agent's reality model.
	MetaphysicalUnderstanding() float64
	// Safeguards is the number of safeguards engaged so far.
	Safeguards() int
	// EngageSafeguard hardens the most severe risk the agent tracks.
	EngageSafeguard()
}
