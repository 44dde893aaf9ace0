package models

import "fmt"

// Phase is a state of the deliberation state machine.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseChallengeGenerated
	PhaseProcessed
	PhaseShared
	PhaseDeliberated
	PhaseConverged
	PhaseRiskAssessed
	PhaseRealityIntegrated
	PhaseImplemented
	PhaseReflected
	PhaseMissionComplete
)

var phaseNames = map[Phase]string{
	PhaseIdle:               "idle",
	PhaseChallengeGenerated: "challenge_generated",
	PhaseProcessed:          "processed",
	PhaseShared:             "shared",
	PhaseDeliberated:        "deliberated",
	PhaseConverged:          "converged",
	PhaseRiskAssessed:       "risk_assessed",
	PhaseRealityIntegrated:  "reality_integrated",
	PhaseImplemented:        "implemented",
	PhaseReflected:          "reflected",
	PhaseMissionComplete:    "mission_complete",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// MarshalText renders phases by name in JSON reports.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses a phase name.
func (p *Phase) UnmarshalText(text []byte) error {
	for phase, name := range phaseNames {
		if name == string(text) {
			*p = phase
			return nil
		}
	}
	return fmt.Errorf("%w: unknown phase %q", ErrInvalidInput, string(text))
}

// Next returns the phase that must follow p. The reflection phase is
// conditional, so from PhaseImplemented the caller decides between
// PhaseReflected and PhaseIdle.
func (p Phase) Next() Phase {
	switch p {
	case PhaseIdle:
		return PhaseChallengeGenerated
	case PhaseChallengeGenerated:
		return PhaseProcessed
	case PhaseProcessed:
		return PhaseShared
	case PhaseShared:
		return PhaseDeliberated
	case PhaseDeliberated:
		return PhaseConverged
	case PhaseConverged:
		return PhaseRiskAssessed
	case PhaseRiskAssessed:
		return PhaseRealityIntegrated
	case PhaseRealityIntegrated:
		return PhaseImplemented
	default:
		return PhaseIdle
	}
}
