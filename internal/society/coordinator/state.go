package coordinator

import (
	"github.com/xkilldash9x/conclave/internal/society/history"
	"github.com/xkilldash9x/conclave/internal/society/models"
	"github.com/xkilldash9x/conclave/internal/society/network"
)

const (
	initialCoherence = 0.5
	initialWisdom    = 0.4
)

// SocietyState is the collective state of a run. It is owned by the
// Coordinator and only mutated from within a completed cycle.
type SocietyState struct {
	Progress         float64
	Coherence        float64
	CollectiveWisdom float64
	// Cycle is the number of completed cycles.
	Cycle int
	// Resets counts explicit progress resets after mission completion.
	Resets int

	Solved      *history.Ring[models.SolvedChallenge]
	Shared      *history.Ring[models.SharedBreakthrough]
	Active      *history.Ring[models.Challenge]
	Convergence *history.Ring[models.ValueConvergence]
	// Knowledge holds the unique descriptions of every attempted challenge.
	Knowledge map[string]struct{}
	Network   *network.Network
}

func newSocietyState(retention int) *SocietyState {
	return &SocietyState{
		Coherence:        initialCoherence,
		CollectiveWisdom: initialWisdom,
		Solved:           history.NewRing[models.SolvedChallenge](retention),
		Shared:           history.NewRing[models.SharedBreakthrough](retention),
		Active:           history.NewRing[models.Challenge](retention),
		Convergence:      history.NewRing[models.ValueConvergence](retention),
		Knowledge:        make(map[string]struct{}),
		Network:          network.New(),
	}
}

func (s *SocietyState) summary() models.Summary {
	return models.Summary{
		Cycles:                  s.Cycle,
		CivilizationProgress:    s.Progress,
		SocietyCoherence:        s.Coherence,
		CollectiveWisdom:        s.CollectiveWisdom,
		SolvedChallengeCount:    s.Solved.Total(),
		BreakthroughCount:       s.Shared.Total(),
		CollaborationMeanWeight: s.Network.MeanWeight(),
	}
}
