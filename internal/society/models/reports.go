package models

import (
	"context"
	"time"
)

// Summary carries the fields every cycle, epoch and final report must expose.
type Summary struct {
	Cycles                  int     `json:"cycles"`
	CivilizationProgress    float64 `json:"civilization_progress"`
	SocietyCoherence        float64 `json:"society_coherence"`
	CollectiveWisdom        float64 `json:"collective_wisdom"`
	SolvedChallengeCount    int     `json:"solved_challenge_count"`
	BreakthroughCount       int     `json:"breakthrough_count"`
	CollaborationMeanWeight float64 `json:"collaboration_mean_weight"`
}

// CycleReport is emitted once per completed cycle.
type CycleReport struct {
	ID                  string             `json:"id"`
	RunID               string             `json:"run_id"`
	Epoch               int                `json:"epoch"`
	Cycle               int                `json:"cycle"`
	Phases              []Phase            `json:"phases"`
	Challenge           Challenge          `json:"challenge"`
	Collective          CollectiveSolution `json:"collective"`
	Values              ValueConvergence   `json:"values"`
	Risk                RiskAssessment     `json:"risk"`
	Reality             RealitySynthesis   `json:"reality"`
	Implementation      Implementation     `json:"implementation"`
	Reflection          *Reflection        `json:"reflection,omitempty"`
	BreakthroughsShared int                `json:"breakthroughs_shared"`
	MissionComplete     bool               `json:"mission_complete"`
	Summary             Summary            `json:"summary"`
	Timestamp           time.Time          `json:"timestamp"`
}

// EpochReport is emitted when an epoch ends, early or not.
type EpochReport struct {
	ID              string    `json:"id"`
	RunID           string    `json:"run_id"`
	Epoch           int       `json:"epoch"`
	CyclesCompleted int       `json:"cycles_completed"`
	CyclesFailed    int       `json:"cycles_failed"`
	ProgressResets  int       `json:"progress_resets"`
	MissionComplete bool      `json:"mission_complete"`
	Cancelled       bool      `json:"cancelled"`
	Summary         Summary   `json:"summary"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
}

// StopReason explains why a run ended.
type StopReason string

const (
	StopReasonCompleted StopReason = "completed"
	StopReasonShutdown  StopReason = "shutdown"
	StopReasonHalted    StopReason = "halted"
)

// FinalReport is emitted exactly once when a run stops.
type FinalReport struct {
	RunID               string               `json:"run_id"`
	Reason              StopReason           `json:"reason"`
	Error               string               `json:"error,omitempty"`
	Epochs              int                  `json:"epochs"`
	ProgressResets      int                  `json:"progress_resets"`
	KnowledgePool       int                  `json:"knowledge_pool"`
	Summary             Summary              `json:"summary"`
	Agents              []AgentSnapshot      `json:"agents"`
	DominantValues      []ValueTally         `json:"dominant_values,omitempty"`
	RecentBreakthroughs []SharedBreakthrough `json:"recent_breakthroughs,omitempty"`
	RecentSolved        []SolvedChallenge    `json:"recent_solved,omitempty"`
	Timestamp           time.Time            `json:"timestamp"`
}

// ReportSink consumes structured summaries. Implementations must be safe
// for use by a single producer goroutine.
type ReportSink interface {
	ReportCycle(ctx context.Context, report CycleReport) error
	ReportEpoch(ctx context.Context, report EpochReport) error
	ReportFinal(ctx context.Context, report FinalReport) error
}

// NopSink discards every report.
type NopSink struct{}

func (NopSink) ReportCycle(context.Context, CycleReport) error { return nil }
func (NopSink) ReportEpoch(context.Context, EpochReport) error { return nil }
func (NopSink) ReportFinal(context.Context, FinalReport) error { return nil }
