// Package coordinator drives the nine-phase deliberation cycle over a fixed set
// of agents and owns the resulting SocietyState.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/conclave/internal/config"
	"github.com/xkilldash9x/conclave/internal/society/agent"
	"github.com/xkilldash9x/conclave/internal/society/challenge"
	"github.com/xkilldash9x/conclave/internal/society/models"
	"github.com/xkilldash9x/conclave/internal/society/network"
	"github.com/xkilldash9x/conclave/internal/society/randsrc"
)

const (
	consciousnessGrowth = 1.002
	wisdomGrowth        = 1.001
	sharedPerAgent      = 2
	topValuesPerAgent   = 3
	recentBreakthroughs = 3
	recentSolved        = 5
)

// Dependencies are the collaborators a Coordinator drives.
type Dependencies struct {
	Agents    []*agent.Agent
	Generator challenge.Generator
	// Sink receives every cycle and epoch report. Defaults to a no-op sink.
	Sink models.ReportSink
	// Rand drives insight sampling. Defaults to an entropy-seeded source.
	Rand randsrc.Source
	// Now stamps reports. Defaults to time.Now.
	Now func() time.Time
	// RunID tags every report. Generated when empty.
	RunID string
}

// Coordinator runs deliberation cycles. Cycles are serialized; concurrent
// callers block until the running cycle completes.
type Coordinator struct {
	logger *zap.Logger
	cfg    config.SocietyConfig
	agents []*agent.Agent
	gen    challenge.Generator
	sink   models.ReportSink
	rng    randsrc.Source
	now    func() time.Time
	runID  string

	mu    sync.Mutex
	state *SocietyState
	phase models.Phase
	epoch int
}

// New builds a Coordinator. A society with zero agents is accepted; every
// cycle attempted on it fails with models.ErrEmptySociety.
func New(logger *zap.Logger, cfg config.SocietyConfig, deps Dependencies) (*Coordinator, error) {
	if deps.Generator == nil {
		return nil, fmt.Errorf("%w: a challenge generator is required", models.ErrInvalidInput)
	}
	if cfg.ReflectionPeriod <= 0 {
		return nil, fmt.Errorf("%w: reflection period must be positive", models.ErrInvalidInput)
	}
	if deps.Sink == nil {
		deps.Sink = models.NopSink{}
	}
	if deps.Rand == nil {
		deps.Rand = randsrc.New(0)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.RunID == "" {
		deps.RunID = uuid.NewString()
	}

	agents := append([]*agent.Agent(nil), deps.Agents...)
	sort.Slice(agents, func(i, j int) bool { return agents[i].ID() < agents[j].ID() })
	for i := 1; i < len(agents); i++ {
		if agents[i].ID() == agents[i-1].ID() {
			return nil, fmt.Errorf("%w: duplicate agent id %s", models.ErrInvalidInput, agents[i].ID())
		}
	}

	state := newSocietyState(cfg.HistoryRetention)
	for i, a := range agents {
		for _, b := range agents[i+1:] {
			state.Network.Connect(a.ID(), b.ID(), cfg.InitialCollaboration)
		}
	}

	c := &Coordinator{
		logger: logger.Named("coordinator").With(zap.String("run_id", deps.RunID)),
		cfg:    cfg,
		agents: agents,
		gen:    deps.Generator,
		sink:   deps.Sink,
		rng:    deps.Rand,
		now:    deps.Now,
		runID:  deps.RunID,
		state:  state,
		phase:  models.PhaseIdle,
	}
	c.logger.Info("Society assembled.",
		zap.Int("agents", len(agents)),
		zap.Int("collaboration_edges", state.Network.Len()),
	)
	return c, nil
}

// RunID identifies the run in every report.
func (c *Coordinator) RunID() string { return c.runID }

// Agents returns the society members in id order.
func (c *Coordinator) Agents() []*agent.Agent {
	return append([]*agent.Agent(nil), c.agents...)
}

// Phase is the phase the coordinator currently rests in.
func (c *Coordinator) Phase() models.Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// BeginEpoch advances the epoch counter stamped on subsequent cycle reports
// and opens the epoch's report. Close it with FinishEpoch.
func (c *Coordinator) BeginEpoch() models.EpochReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	return models.EpochReport{
		ID:        uuid.NewString(),
		RunID:     c.runID,
		Epoch:     c.epoch,
		StartedAt: c.now(),
	}
}

// Snapshot returns the current summary.
func (c *Coordinator) Snapshot() models.Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.summary()
}

// Collaboration returns the collaboration network's edges.
func (c *Coordinator) Collaboration() []network.Edge {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Network.Edges()
}

// Progress is the current civilization progress.
func (c *Coordinator) Progress() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Progress
}

// ResetProgress performs the explicit reset after mission completion.
func (c *Coordinator) ResetProgress() {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.state.Progress
	c.state.Progress = 0
	c.state.Resets++
	c.phase = models.PhaseIdle
	c.logger.Info("Civilization progress reset for continued evolution.",
		zap.Float64("previous_progress", prev),
		zap.Int("resets", c.state.Resets),
	)
}

// RunCycle executes one full deliberation cycle and emits its report to the sink.
// It fails before touching any state when the society is empty, when ctx is
// already cancelled, or when challenge generation or agent processing fails.
// Once agent processing has succeeded the cycle always runs to completion.
func (c *Coordinator) RunCycle(ctx context.Context) (models.CycleReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.agents) == 0 {
		return models.CycleReport{}, fmt.Errorf("%w: no agents to deliberate", models.ErrEmptySociety)
	}
	if err := ctx.Err(); err != nil {
		return models.CycleReport{}, err
	}

	cycle := c.state.Cycle + 1
	trace := make([]models.Phase, 0, 10)
	enter := func(p models.Phase) {
		c.phase = p
		trace = append(trace, p)
		c.logger.Debug("Phase transition.", zap.Int("cycle", cycle), zap.Stringer("phase", p))
	}
	abort := func(p models.Phase, err error) (models.CycleReport, error) {
		c.phase = models.PhaseIdle
		return models.CycleReport{}, &models.CycleError{Cycle: cycle, Phase: p, Err: err}
	}

	// Phase 1
	ch, err := c.gen.Next(ctx)
	if err == nil {
		err = ch.Validate()
	}
	if err != nil {
		return abort(models.PhaseChallengeGenerated, err)
	}
	enter(models.PhaseChallengeGenerated)

	// Phase 2
	solutions, err := c.process(ch, cycle)
	if err != nil {
		return abort(models.PhaseProcessed, err)
	}
	// Every agent has scored; from here the cycle commits.
	if err := c.commit(solutions); err != nil {
		return abort(models.PhaseProcessed, err)
	}
	enter(models.PhaseProcessed)
	c.state.Active.Append(ch)

	// Phase 3
	shared := c.shareBreakthroughs(cycle)
	enter(models.PhaseShared)

	// Phase 4
	collective := c.deliberate(ch, solutions)
	enter(models.PhaseDeliberated)

	// Phase 5
	values := c.convergeValues(cycle)
	enter(models.PhaseConverged)

	// Phase 6
	risk := c.assessRisk(cycle)
	enter(models.PhaseRiskAssessed)

	// Phase 7
	reality := c.integrateReality()
	enter(models.PhaseRealityIntegrated)

	// Phase 8
	impl := c.implement(cycle, collective, risk)
	enter(models.PhaseImplemented)

	// Phase 9
	var reflection *models.Reflection
	if cycle%c.cfg.ReflectionPeriod == 0 {
		r := c.reflect()
		reflection = &r
		enter(models.PhaseReflected)
	}

	for _, a := range c.agents {
		a.Grow(consciousnessGrowth, wisdomGrowth)
	}
	c.state.Cycle = cycle

	missionComplete := c.state.Progress >= 1.0
	if missionComplete {
		enter(models.PhaseMissionComplete)
		c.logger.Info("Civilizational mission complete.", zap.Int("cycle", cycle))
	} else {
		c.phase = models.PhaseIdle
	}

	report := models.CycleReport{
		ID:                  uuid.NewString(),
		RunID:               c.runID,
		Epoch:               c.epoch,
		Cycle:               cycle,
		Phases:              trace,
		Challenge:           ch,
		Collective:          collective,
		Values:              values,
		Risk:                risk,
		Reality:             reality,
		Implementation:      impl,
		Reflection:          reflection,
		BreakthroughsShared: shared,
		MissionComplete:     missionComplete,
		Summary:             c.state.summary(),
		Timestamp:           c.now(),
	}

	c.logger.Info("Cycle complete.",
		zap.Int("cycle", cycle),
		zap.String("challenge", ch.Description),
		zap.Float64("collective_confidence", collective.CollectiveConfidence),
		zap.Float64("success", impl.Success),
		zap.Float64("progress", c.state.Progress),
	)

	// A completed cycle is always reported, even if the caller is shutting down.
	if err := c.sink.ReportCycle(context.WithoutCancel(ctx), report); err != nil {
		c.logger.Warn("Failed to deliver cycle report.", zap.Int("cycle", cycle), zap.Error(err))
	}
	return report, nil
}

// RunEpoch runs up to cycles cycles as one epoch. It stops early when the
// mission completes, when ctx is cancelled (checked between cycles), or on the
// first failed cycle, whose error it returns.
func (c *Coordinator) RunEpoch(ctx context.Context, cycles int) (models.EpochReport, error) {
	rep := c.BeginEpoch()

	var runErr error
	for i := 0; i < cycles; i++ {
		if ctx.Err() != nil {
			rep.Cancelled = true
			break
		}
		cr, err := c.RunCycle(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				rep.Cancelled = true
				break
			}
			rep.CyclesFailed++
			runErr = err
			break
		}
		rep.CyclesCompleted++
		if cr.MissionComplete {
			rep.MissionComplete = true
			break
		}
	}

	c.FinishEpoch(ctx, &rep)
	return rep, runErr
}

// FinishEpoch stamps rep with the current summary and delivers it to the sink.
func (c *Coordinator) FinishEpoch(ctx context.Context, rep *models.EpochReport) {
	c.mu.Lock()
	rep.Summary = c.state.summary()
	rep.ProgressResets = c.state.Resets
	c.mu.Unlock()
	rep.FinishedAt = c.now()

	c.logger.Info("Epoch finished.",
		zap.Int("epoch", rep.Epoch),
		zap.Int("cycles_completed", rep.CyclesCompleted),
		zap.Int("cycles_failed", rep.CyclesFailed),
		zap.Bool("mission_complete", rep.MissionComplete),
		zap.Bool("cancelled", rep.Cancelled),
	)
	if err := c.sink.ReportEpoch(context.WithoutCancel(ctx), *rep); err != nil {
		c.logger.Warn("Failed to deliver epoch report.", zap.Int("epoch", rep.Epoch), zap.Error(err))
	}
}

// FinalReport assembles the end-of-run report. It does not deliver it.
func (c *Coordinator) FinalReport(reason models.StopReason, epochs int, cause error) models.FinalReport {
	c.mu.Lock()
	defer c.mu.Unlock()

	rep := models.FinalReport{
		RunID:               c.runID,
		Reason:              reason,
		Epochs:              epochs,
		ProgressResets:      c.state.Resets,
		KnowledgePool:       len(c.state.Knowledge),
		Summary:             c.state.summary(),
		Agents:              make([]models.AgentSnapshot, 0, len(c.agents)),
		RecentBreakthroughs: c.state.Shared.Last(recentBreakthroughs),
		RecentSolved:        c.state.Solved.Last(recentSolved),
		Timestamp:           c.now(),
	}
	if cause != nil {
		rep.Error = cause.Error()
	}
	for _, a := range c.agents {
		rep.Agents = append(rep.Agents, a.Snapshot())
	}
	if latest, ok := c.state.Convergence.Latest(); ok {
		rep.DominantValues = latest.DominantValues
	}
	return rep
}
