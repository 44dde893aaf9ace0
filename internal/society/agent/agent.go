// Package agent implements the members of the society. An Agent owns its state
// and history; scoring is delegated to a pluggable Cognition.
package agent

import (
	"fmt"
	"sync"
	"time"

	"github.com/xkilldash9x/conclave/internal/society/history"
	"github.com/xkilldash9x/conclave/internal/society/models"
	"github.com/xkilldash9x/conclave/internal/society/randsrc"
	"github.com/xkilldash9x/conclave/internal/society/stats"
)

// State is a read-only view of an agent's scalars and counters.
type State struct {
	ID            models.AgentID
	Consciousness float64
	Intelligence  float64
	Wisdom        float64
	Alignment     float64
	// Cycles counts committed solutions and equals the number of experiences ever recorded.
	Cycles int
}

// Agent is a single reasoning member. All methods are safe for concurrent use.
type Agent struct {
	id             models.AgentID
	specialization Specialization

	mu            sync.Mutex
	state         State
	cognition     Cognition
	experiences   *history.Ring[models.SolutionRecord]
	breakthroughs *history.Ring[models.Breakthrough]
	knowledge     *history.Ring[models.SharedBreakthrough]
	now           func() time.Time

	// lastCycle is the society cycle of the latest committed record.
	lastCycle int
}

// Option customizes an Agent at construction.
type Option func(*Agent)

// WithClock overrides the timestamp source for solution records.
func WithClock(now func() time.Time) Option {
	return func(a *Agent) { a.now = now }
}

// WithRetention bounds the agent's experience and knowledge logs. Zero keeps everything.
func WithRetention(limit int) Option {
	return func(a *Agent) {
		a.experiences = history.NewRing[models.SolutionRecord](limit)
		a.breakthroughs = history.NewRing[models.Breakthrough](limit)
		a.knowledge = history.NewRing[models.SharedBreakthrough](limit)
	}
}

// New creates an agent with the given profile and scoring engine.
func New(id models.AgentID, spec Specialization, profile Profile, cognition Cognition, opts ...Option) *Agent {
	a := &Agent{
		id:             id,
		specialization: spec,
		state: State{
			ID:            id,
			Consciousness: stats.Clamp01(profile.Consciousness),
			Intelligence:  stats.Clamp01(profile.Intelligence),
			Wisdom:        stats.Clamp01(profile.Wisdom),
			Alignment:     stats.Clamp01(profile.Alignment),
		},
		cognition:     cognition,
		experiences:   history.NewRing[models.SolutionRecord](0),
		breakthroughs: history.NewRing[models.Breakthrough](0),
		knowledge:     history.NewRing[models.SharedBreakthrough](0),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ID returns the agent's stable identifier.
func (a *Agent) ID() models.AgentID { return a.id }

// Specialization returns the bias the agent was created with.
func (a *Agent) Specialization() Specialization { return a.specialization }

// Process scores ch on behalf of the society's cycle without changing the
// agent. The record takes effect only once it is passed to Commit, so a cycle
// abandoned after scoring leaves the agent as it was.
func (a *Agent) Process(ch models.Challenge, cycle int) (models.SolutionRecord, error) {
	if err := ch.Validate(); err != nil {
		return models.SolutionRecord{}, fmt.Errorf("agent %s: %w", a.id, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if cycle <= a.lastCycle {
		return models.SolutionRecord{}, fmt.Errorf("%w: agent %s already recorded cycle %d", models.ErrInvalidInput, a.id, a.lastCycle)
	}
	out, err := a.cognition.Solve(a.state, ch)
	if err != nil {
		return models.SolutionRecord{}, fmt.Errorf("agent %s: scoring failed: %w", a.id, err)
	}

	bt := out.Breakthrough
	bt.Significance = stats.Clamp01(bt.Significance)
	return models.SolutionRecord{
		AgentID:          a.id,
		Cycle:            cycle,
		Challenge:        ch.Clone(),
		Confidence:       stats.Clamp01(out.Confidence),
		ValueAlignment:   stats.Clamp01(out.ValueAlignment),
		RiskLevel:        stats.Clamp01(out.RiskLevel),
		RealityCoherence: stats.Clamp01(out.RealityCoherence),
		Breakthrough:     bt,
		Timestamp:        a.now(),
	}, nil
}

// Commit records rec as the agent's solution for rec.Cycle. The cycle counter,
// the experience log and the cognition's learning advance together. Each
// cycle is recorded at most once and cycles only move forward.
func (a *Agent) Commit(rec models.SolutionRecord) error {
	if rec.AgentID != a.id {
		return fmt.Errorf("%w: record of agent %s committed to agent %s", models.ErrInvalidInput, rec.AgentID, a.id)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if rec.Cycle <= a.lastCycle {
		return fmt.Errorf("%w: agent %s already recorded cycle %d", models.ErrInvalidInput, a.id, a.lastCycle)
	}
	a.lastCycle = rec.Cycle
	a.state.Cycles++
	a.experiences.Append(rec)
	if rec.Breakthrough.IsNovel {
		a.breakthroughs.Append(rec.Breakthrough)
	}
	a.cognition.Learn(rec)
	return nil
}

// State returns a copy of the agent's current scalars.
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Experiences returns the retained solution records, oldest first.
func (a *Agent) Experiences() []models.SolutionRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.experiences.Items()
}

// RecentBreakthroughs returns up to n of the agent's latest novel breakthroughs.
func (a *Agent) RecentBreakthroughs(n int) []models.Breakthrough {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.breakthroughs.Last(n)
}

// Integrate adds a discovery shared by another agent to this agent's knowledge pool.
func (a *Agent) Integrate(shared models.SharedBreakthrough) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.knowledge.Append(shared)
}

// KnowledgePool is the number of discoveries ever integrated from others.
func (a *Agent) KnowledgePool() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.knowledge.Total()
}

// TopValues returns the agent's n strongest value tags.
func (a *Agent) TopValues(n int) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cognition.TopValues(n)
}

// Danger takes a fresh danger reading, clamped to [0,1].
func (a *Agent) Danger() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return stats.Clamp01(a.cognition.Danger())
}

// MetaphysicalUnderstanding is the depth of the agent's reality model, clamped to [0,1].
func (a *Agent) MetaphysicalUnderstanding() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return stats.Clamp01(a.cognition.MetaphysicalUnderstanding())
}

// Safeguards is the number of safeguards the agent has engaged.
func (a *Agent) Safeguards() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cognition.Safeguards()
}

// EngageSafeguard hardens the agent's most severe risk.
func (a *Agent) EngageSafeguard() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cognition.EngageSafeguard()
}

// Grow scales consciousness and wisdom, clamping both to 1.
func (a *Agent) Grow(consciousnessFactor, wisdomFactor float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.Consciousness = stats.Clamp01(a.state.Consciousness * consciousnessFactor)
	a.state.Wisdom = stats.Clamp01(a.state.Wisdom * wisdomFactor)
}

// Snapshot returns the agent's reportable view.
func (a *Agent) Snapshot() models.AgentSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return models.AgentSnapshot{
		ID:             a.id,
		Specialization: a.specialization.String(),
		Consciousness:  a.state.Consciousness,
		Intelligence:   a.state.Intelligence,
		Wisdom:         a.state.Wisdom,
		Alignment:      a.state.Alignment,
		Cycles:         a.state.Cycles,
		Experiences:    a.experiences.Total(),
		KnowledgePool:  a.knowledge.Total(),
	}
}

// IDFor returns the identifier of the agent at index: OMEGA-A through OMEGA-Z,
// then OMEGA-27 onward.
func IDFor(index int) models.AgentID {
	if index >= 0 && index < 26 {
		return models.AgentID(fmt.Sprintf("OMEGA-%c", rune('A'+index)))
	}
	return models.AgentID(fmt.Sprintf("OMEGA-%d", index+1))
}

// Spawn creates n agents with round-robin specializations and the default
// cognition, each drawing from its own source derived from rng.
func Spawn(n int, rng randsrc.Source, opts ...Option) []*Agent {
	agents := make([]*Agent, 0, max(n, 0))
	for i := 0; i < n; i++ {
		spec := SpecializationFor(i)
		profile := Specialize(spec, BaseProfile())
		cog := NewOmegaCognition(randsrc.Derive(rng), profile.Acceleration)
		agents = append(agents, New(IDFor(i), spec, profile, cog, opts...))
	}
	return agents
}
