// internal/society/models/models.go
package models

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// AgentID identifies an agent for the lifetime of the process.
type AgentID string

// Challenge is the shared problem handed to every agent in a cycle.
// It is treated as an immutable value once generated.
type Challenge struct {
	ID          string   `json:"id,omitempty"`
	Description string   `json:"description"`
	Domains     []string `json:"domains"`
	Complexity  float64  `json:"complexity"`
	Requires    []string `json:"requires,omitempty"`
}

// Validate reports whether the challenge carries every field the engine reads.
func (c Challenge) Validate() error {
	if strings.TrimSpace(c.Description) == "" {
		return fmt.Errorf("%w: challenge description is required", ErrInvalidInput)
	}
	if len(c.Domains) == 0 {
		return fmt.Errorf("%w: challenge %q has no domains", ErrInvalidInput, c.Description)
	}
	if math.IsNaN(c.Complexity) || c.Complexity < 0 || c.Complexity > 1 {
		return fmt.Errorf("%w: challenge complexity %v outside [0,1]", ErrInvalidInput, c.Complexity)
	}
	return nil
}

// PrimaryDomain is the domain breakthroughs are sought in.
func (c Challenge) PrimaryDomain() string {
	if len(c.Domains) == 0 || c.Domains[0] == "" {
		return "general"
	}
	return c.Domains[0]
}

// Clone returns a deep copy so callers cannot alias the tag slices.
func (c Challenge) Clone() Challenge {
	out := c
	out.Domains = append([]string(nil), c.Domains...)
	out.Requires = append([]string(nil), c.Requires...)
	return out
}

// Breakthrough describes a discovery made while solving a challenge.
type Breakthrough struct {
	Domain       string  `json:"domain"`
	Description  string  `json:"description"`
	Significance float64 `json:"significance"`
	IsNovel      bool    `json:"is_novel"`
	Connections  int     `json:"connections,omitempty"`
}

// SolutionRecord is produced exactly once per (agent, challenge) pair.
type SolutionRecord struct {
	AgentID          AgentID      `json:"agent_id"`
	Cycle            int          `json:"cycle"`
	Challenge        Challenge    `json:"challenge"`
	Confidence       float64      `json:"confidence"`
	ValueAlignment   float64      `json:"value_alignment"`
	RiskLevel        float64      `json:"risk_level"`
	RealityCoherence float64      `json:"reality_coherence"`
	Breakthrough     Breakthrough `json:"breakthrough"`
	Timestamp        time.Time    `json:"timestamp"`
}

// CollectiveSolution is the cycle-scoped aggregate of all individual solutions.
type CollectiveSolution struct {
	Challenge               Challenge `json:"challenge"`
	CollectiveConfidence    float64   `json:"collective_confidence"`
	SocietyCoherence        float64   `json:"society_coherence"`
	PerspectivesIntegrated  int       `json:"perspectives_integrated"`
	IntersubjectiveRichness int       `json:"intersubjective_richness"`
	EmergentInsights        []string  `json:"emergent_insights"`
}

// ValueTally counts how many agents hold a value among their top values.
type ValueTally struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// ValueConvergence is one entry of the value-convergence history.
type ValueConvergence struct {
	Cycle            int          `json:"cycle"`
	Convergence      float64      `json:"convergence"`
	CollectiveWisdom float64      `json:"collective_wisdom"`
	DominantValues   []ValueTally `json:"dominant_values"`
}

// AgentRisk is a single agent's danger reading.
type AgentRisk struct {
	AgentID     AgentID `json:"agent_id"`
	DangerLevel float64 `json:"danger_level"`
}

// RiskAssessment is the collective risk reading of a cycle.
type RiskAssessment struct {
	PerAgent            []AgentRisk `json:"per_agent"`
	OverallRisk         float64     `json:"overall_risk"`
	AverageRisk         float64     `json:"average_risk"`
	ConsensusLevel      float64     `json:"consensus_level"`
	SafeguardsCount     int         `json:"safeguards_count"`
	HeightenedOversight bool        `json:"heightened_oversight"`
}

// RealitySynthesis is the result of integrating every agent's reality model.
type RealitySynthesis struct {
	Coherence               float64 `json:"coherence"`
	Agreement               float64 `json:"agreement"`
	CollectiveUnderstanding float64 `json:"collective_understanding"`
}

// Implementation records how well the collective solution landed.
type Implementation struct {
	Success       float64 `json:"success"`
	ProgressDelta float64 `json:"progress_delta"`
	Solved        bool    `json:"solved"`
}

// Reflection is the read-only aggregate produced by the reflection phase.
type Reflection struct {
	TotalExperiences      int     `json:"total_experiences"`
	TotalDecisions        int     `json:"total_decisions"`
	AvgConsciousness      float64 `json:"avg_consciousness"`
	AvgWisdom             float64 `json:"avg_wisdom"`
	AvgAlignment          float64 `json:"avg_alignment"`
	CollaborationStrength float64 `json:"collaboration_strength"`
	SolvedChallenges      int     `json:"solved_challenges"`
	Insight               string  `json:"insight"`
}

// SolvedChallenge is an entry of the solved-challenge log.
type SolvedChallenge struct {
	Cycle     int       `json:"cycle"`
	Success   float64   `json:"success"`
	Challenge Challenge `json:"challenge"`
}

// SharedBreakthrough is an entry of the shared-breakthrough log.
type SharedBreakthrough struct {
	Cycle        int          `json:"cycle"`
	Source       AgentID      `json:"source"`
	Breakthrough Breakthrough `json:"breakthrough"`
}

// AgentSnapshot is a point-in-time view of one agent used by final reports.
type AgentSnapshot struct {
	ID             AgentID `json:"id"`
	Specialization string  `json:"specialization"`
	Consciousness  float64 `json:"consciousness"`
	Intelligence   float64 `json:"intelligence"`
	Wisdom         float64 `json:"wisdom"`
	Alignment      float64 `json:"alignment"`
	Cycles         int     `json:"cycles"`
	Experiences    int     `json:"experiences"`
	KnowledgePool  int     `json:"knowledge_pool"`
}
