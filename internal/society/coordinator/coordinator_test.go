package coordinator

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/conclave/internal/config"
	"github.com/xkilldash9x/conclave/internal/mocks"
	"github.com/xkilldash9x/conclave/internal/society/agent"
	"github.com/xkilldash9x/conclave/internal/society/challenge"
	"github.com/xkilldash9x/conclave/internal/society/models"
	"github.com/xkilldash9x/conclave/internal/society/randsrc"
)

var fixedNow = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

type agentSpec struct {
	id      models.AgentID
	outcome agent.Outcome
	danger  float64
	values  []string
	meta    float64
	// engage expects exactly one safeguard; otherwise none is allowed.
	engage bool
}

func mockAgent(s agentSpec) (*agent.Agent, *mocks.MockCognition) {
	cog := new(mocks.MockCognition)
	cog.On("Solve", mock.Anything, mock.Anything).Return(s.outcome, nil).Maybe()
	cog.On("Danger").Return(s.danger).Maybe()
	cog.On("TopValues", mock.Anything).Return(s.values).Maybe()
	cog.On("MetaphysicalUnderstanding").Return(s.meta).Maybe()
	cog.On("Safeguards").Return(0).Maybe()
	cog.On("Learn", mock.Anything).Return().Maybe()
	if s.engage {
		cog.On("EngageSafeguard").Return().Once()
	}
	return agent.New(s.id, agent.EthicalPhilosophy, agent.BaseProfile(), cog), cog
}

func governance() models.Challenge {
	return models.Challenge{
		ID:          "governance",
		Description: "Optimize global governance for post-AGI civilization",
		Domains:     []string{"politics", "economics", "ethics"},
		Complexity:  0.9,
		Requires:    []string{"wisdom", "fairness", "scalability"},
	}
}

// repeating always hands out the same challenge.
type repeating struct{ ch models.Challenge }

func (r repeating) Next(ctx context.Context) (models.Challenge, error) {
	if err := ctx.Err(); err != nil {
		return models.Challenge{}, err
	}
	return r.ch, nil
}

// recordingSink keeps every report it receives.
type recordingSink struct {
	mu     sync.Mutex
	cycles []models.CycleReport
	epochs []models.EpochReport
	finals []models.FinalReport
	// onCycle runs after each cycle report is stored.
	onCycle func(models.CycleReport)
}

func (s *recordingSink) ReportCycle(_ context.Context, r models.CycleReport) error {
	s.mu.Lock()
	s.cycles = append(s.cycles, r)
	hook := s.onCycle
	s.mu.Unlock()
	if hook != nil {
		hook(r)
	}
	return nil
}

func (s *recordingSink) ReportEpoch(_ context.Context, r models.EpochReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epochs = append(s.epochs, r)
	return nil
}

func (s *recordingSink) ReportFinal(_ context.Context, r models.FinalReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finals = append(s.finals, r)
	return nil
}

func societyConfig() config.SocietyConfig {
	return config.NewDefaultConfig().Society()
}

func newTestCoordinator(t *testing.T, cfg config.SocietyConfig, agents []*agent.Agent, gen challenge.Generator, sink models.ReportSink) *Coordinator {
	t.Helper()
	c, err := New(zaptest.NewLogger(t), cfg, Dependencies{
		Agents:    agents,
		Generator: gen,
		Sink:      sink,
		Rand:      randsrc.NewSequence(0),
		Now:       func() time.Time { return fixedNow },
		RunID:     "run-test",
	})
	require.NoError(t, err)
	return c
}

// omegaSociety builds n agents whose draws depend only on seed and their index.
func omegaSociety(n int, seed uint64) []*agent.Agent {
	profiles := make([]agent.Profile, n)
	for i := range profiles {
		profiles[i] = agent.BaseProfile()
	}
	return profiledSociety(profiles, seed)
}

// profiledSociety builds one agent per starting profile, specialized
// round-robin, with draws that depend only on seed and the agent's index.
func profiledSociety(profiles []agent.Profile, seed uint64) []*agent.Agent {
	agents := make([]*agent.Agent, 0, len(profiles))
	for i, p := range profiles {
		spec := agent.SpecializationFor(i)
		profile := agent.Specialize(spec, p)
		cog := agent.NewOmegaCognition(randsrc.New(seed+uint64(i)*7919), profile.Acceleration)
		agents = append(agents, agent.New(agent.IDFor(i), spec, profile, cog,
			agent.WithClock(func() time.Time { return fixedNow }),
			agent.WithRetention(64),
		))
	}
	return agents
}

// -- Construction --

func TestNew_Validation(t *testing.T) {
	logger := zaptest.NewLogger(t)
	a, _ := mockAgent(agentSpec{id: "OMEGA-A"})
	dup, _ := mockAgent(agentSpec{id: "OMEGA-A"})

	_, err := New(logger, societyConfig(), Dependencies{Agents: []*agent.Agent{a}})
	assert.ErrorIs(t, err, models.ErrInvalidInput, "a generator is required")

	_, err = New(logger, societyConfig(), Dependencies{Agents: []*agent.Agent{a, dup}, Generator: repeating{governance()}})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	assert.Contains(t, err.Error(), "duplicate agent id OMEGA-A")

	cfg := societyConfig()
	cfg.ReflectionPeriod = 0
	_, err = New(logger, cfg, Dependencies{Generator: repeating{governance()}})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestNew_SeedsCollaborationNetwork(t *testing.T) {
	c := newTestCoordinator(t, societyConfig(), omegaSociety(4, 1), repeating{governance()}, nil)

	edges := c.Collaboration()
	require.Len(t, edges, 6, "every unordered pair starts connected")
	for _, e := range edges {
		assert.Equal(t, 0.5, e.Weight)
	}
	assert.Equal(t, models.PhaseIdle, c.Phase())
	assert.Equal(t, "run-test", c.RunID())

	ids := make([]models.AgentID, 0, 4)
	for _, a := range c.Agents() {
		ids = append(ids, a.ID())
	}
	assert.Equal(t, []models.AgentID{"OMEGA-A", "OMEGA-B", "OMEGA-C", "OMEGA-D"}, ids)
}

// -- Scenarios --

func TestRunCycle_SingleAgentScenario(t *testing.T) {
	a, cog := mockAgent(agentSpec{
		id:      "OMEGA-A",
		outcome: agent.Outcome{Confidence: 0.8, ValueAlignment: 0.6},
		values:  []string{"wisdom", "truth", "compassion"},
		meta:    0.3,
	})
	sink := &recordingSink{}
	c := newTestCoordinator(t, societyConfig(), []*agent.Agent{a}, repeating{governance()}, sink)

	rep, err := c.RunCycle(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, 0.88, rep.Collective.CollectiveConfidence, 1e-9)
	assert.Equal(t, 1.0, rep.Collective.SocietyCoherence)
	assert.Equal(t, 1, rep.Collective.PerspectivesIntegrated)
	assert.Equal(t, 0, rep.Collective.IntersubjectiveRichness)
	assert.Len(t, rep.Collective.EmergentInsights, 2)

	assert.Equal(t, 1.0, rep.Values.Convergence)
	assert.Equal(t, []models.ValueTally{
		{Value: "compassion", Count: 1}, {Value: "truth", Count: 1}, {Value: "wisdom", Count: 1},
	}, rep.Values.DominantValues)

	assert.Equal(t, 1.0, rep.Reality.Coherence)
	assert.Equal(t, 1.0, rep.Reality.Agreement)
	assert.Equal(t, 0.3, rep.Reality.CollectiveUnderstanding)

	// success = 0.88 + 1.0*0.2 - 0*0.15, clamped to 1.
	assert.Equal(t, 1.0, rep.Implementation.Success)
	assert.InDelta(t, 0.135, rep.Implementation.ProgressDelta, 1e-9)
	assert.True(t, rep.Implementation.Solved)
	assert.Nil(t, rep.Reflection, "reflection runs every third cycle")

	assert.Equal(t, 1, rep.Cycle)
	assert.Equal(t, "run-test", rep.RunID)
	assert.Equal(t, fixedNow, rep.Timestamp)
	assert.Equal(t, []models.Phase{
		models.PhaseChallengeGenerated, models.PhaseProcessed, models.PhaseShared,
		models.PhaseDeliberated, models.PhaseConverged, models.PhaseRiskAssessed,
		models.PhaseRealityIntegrated, models.PhaseImplemented,
	}, rep.Phases)

	assert.Equal(t, 1, rep.Summary.Cycles)
	assert.InDelta(t, 0.135, rep.Summary.CivilizationProgress, 1e-9)
	assert.Equal(t, 1, rep.Summary.SolvedChallengeCount)
	require.Len(t, sink.cycles, 1)
	assert.Equal(t, rep, sink.cycles[0])
	cog.AssertExpectations(t)
	cog.AssertCalled(t, "Learn", mock.MatchedBy(func(r models.SolutionRecord) bool {
		return r.AgentID == "OMEGA-A" && r.Cycle == 1
	}))
	require.Len(t, a.Experiences(), 1)
	assert.Equal(t, 1, a.Experiences()[0].Cycle)
}

func TestRunCycle_RiskScenario(t *testing.T) {
	dangers := []float64{0.2, 0.9, 0.3, 0.1}
	agents := make([]*agent.Agent, 0, len(dangers))
	cogs := make([]*mocks.MockCognition, 0, len(dangers))
	for i, d := range dangers {
		a, cog := mockAgent(agentSpec{
			id:      agent.IDFor(i),
			outcome: agent.Outcome{Confidence: 0.5, ValueAlignment: 0.5},
			danger:  d,
			values:  []string{"truth"},
			engage:  d == 0.9,
		})
		agents = append(agents, a)
		cogs = append(cogs, cog)
	}
	cfg := societyConfig()
	cfg.EngageSafeguards = true
	c := newTestCoordinator(t, cfg, agents, repeating{governance()}, nil)

	rep, err := c.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0.9, rep.Risk.OverallRisk)
	assert.InDelta(t, 0.375, rep.Risk.AverageRisk, 1e-9)
	assert.InDelta(t, 1-math.Sqrt(0.096875), rep.Risk.ConsensusLevel, 1e-9)
	assert.True(t, rep.Risk.HeightenedOversight)
	require.Len(t, rep.Risk.PerAgent, 4)
	assert.Equal(t, models.AgentRisk{AgentID: "OMEGA-B", DangerLevel: 0.9}, rep.Risk.PerAgent[1])

	// cc = clamp(0.5 * 1.4) = 0.7; success = 0.7 + 0.2 - 0.135.
	assert.InDelta(t, 0.765, rep.Implementation.Success, 1e-9)
	assert.Equal(t, 4, rep.Collective.PerspectivesIntegrated)
	assert.Equal(t, 12, rep.Collective.IntersubjectiveRichness)

	for i, cog := range cogs {
		cog.AssertExpectations(t)
		if dangers[i] != 0.9 {
			cog.AssertNotCalled(t, "EngageSafeguard")
		}
	}
}

func TestRunCycle_OversightIsOnlyFlaggedByDefault(t *testing.T) {
	a, cog := mockAgent(agentSpec{id: "OMEGA-A", danger: 0.9, outcome: agent.Outcome{Confidence: 0.5}})
	c := newTestCoordinator(t, societyConfig(), []*agent.Agent{a}, repeating{governance()}, nil)

	rep, err := c.RunCycle(context.Background())
	require.NoError(t, err)
	assert.True(t, rep.Risk.HeightenedOversight)
	assert.Equal(t, 0, rep.Risk.SafeguardsCount)
	cog.AssertNotCalled(t, "EngageSafeguard")
}

func TestRunCycle_OversightNotTriggeredAtThreshold(t *testing.T) {
	a, cog := mockAgent(agentSpec{id: "OMEGA-A", danger: 0.7, outcome: agent.Outcome{Confidence: 0.5}})
	c := newTestCoordinator(t, societyConfig(), []*agent.Agent{a}, repeating{governance()}, nil)

	rep, err := c.RunCycle(context.Background())
	require.NoError(t, err)
	assert.False(t, rep.Risk.HeightenedOversight, "the threshold is exclusive")
	cog.AssertNotCalled(t, "EngageSafeguard")
}

func TestRunCycle_PerspectivesMatchSocietySize(t *testing.T) {
	for _, n := range []int{1, 2, 5, 9} {
		c := newTestCoordinator(t, societyConfig(), omegaSociety(n, 3), repeating{governance()}, nil)
		rep, err := c.RunCycle(context.Background())
		require.NoError(t, err)
		assert.Equal(t, n, rep.Collective.PerspectivesIntegrated)
		assert.Equal(t, n*(n-1), rep.Collective.IntersubjectiveRichness)
		assert.Len(t, rep.Risk.PerAgent, n)
	}
}

// -- Failure semantics --

func TestRunCycle_EmptySociety(t *testing.T) {
	gen := new(mocks.MockGenerator)
	sink := new(mocks.MockReportSink)
	c := newTestCoordinator(t, societyConfig(), nil, gen, sink)

	_, err := c.RunCycle(context.Background())
	assert.ErrorIs(t, err, models.ErrEmptySociety)
	assert.Equal(t, models.KindEmptySociety, models.KindOf(err))
	assert.Equal(t, 0, c.Snapshot().Cycles)
	gen.AssertNotCalled(t, "Next", mock.Anything)
	sink.AssertNotCalled(t, "ReportCycle", mock.Anything, mock.Anything)
}

func TestRunCycle_GenerationFailureLeavesStateUntouched(t *testing.T) {
	tests := []struct {
		name    string
		ch      models.Challenge
		err     error
		wantErr error
	}{
		{name: "exhausted catalog", err: models.ErrExhaustedCatalog, wantErr: models.ErrExhaustedCatalog},
		{name: "missing domains", ch: models.Challenge{Description: "Unscoped", Complexity: 0.4}, wantErr: models.ErrInvalidInput},
		{name: "complexity out of range", ch: models.Challenge{Description: "Heavy", Domains: []string{"x"}, Complexity: 1.5}, wantErr: models.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := new(mocks.MockGenerator)
			gen.On("Next", mock.Anything).Return(tt.ch, tt.err).Once()
			a, cog := mockAgent(agentSpec{id: "OMEGA-A", outcome: agent.Outcome{Confidence: 0.8}})
			sink := new(mocks.MockReportSink)
			c := newTestCoordinator(t, societyConfig(), []*agent.Agent{a}, gen, sink)
			before := c.Snapshot()

			_, err := c.RunCycle(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var cycleErr *models.CycleError
			require.True(t, errors.As(err, &cycleErr))
			assert.Equal(t, 1, cycleErr.Cycle)
			assert.Equal(t, models.PhaseChallengeGenerated, cycleErr.Phase)

			assert.Equal(t, before, c.Snapshot())
			assert.Equal(t, 0, c.state.Active.Len())
			assert.Empty(t, c.state.Knowledge)
			assert.Equal(t, 0, a.State().Cycles)
			assert.Equal(t, models.PhaseIdle, c.Phase())
			cog.AssertNotCalled(t, "Solve", mock.Anything, mock.Anything)
			sink.AssertNotCalled(t, "ReportCycle", mock.Anything, mock.Anything)
		})
	}
}

func TestRunCycle_ProcessingFailureLeavesSocietyUntouched(t *testing.T) {
	good, goodCog := mockAgent(agentSpec{id: "OMEGA-A", outcome: agent.Outcome{Confidence: 0.8}})
	badCog := new(mocks.MockCognition)
	scoringErr := errors.New("scoring backend unavailable")
	badCog.On("Solve", mock.Anything, mock.Anything).Return(agent.Outcome{}, scoringErr).Once()
	bad := agent.New("OMEGA-B", agent.CreativeSynthesis, agent.BaseProfile(), badCog)

	c := newTestCoordinator(t, societyConfig(), []*agent.Agent{good, bad}, repeating{governance()}, nil)
	before := c.Snapshot()

	_, err := c.RunCycle(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, scoringErr)
	var cycleErr *models.CycleError
	require.True(t, errors.As(err, &cycleErr))
	assert.Equal(t, models.PhaseProcessed, cycleErr.Phase)

	assert.Equal(t, before, c.Snapshot())
	assert.Equal(t, 0, c.state.Active.Len())
	assert.Equal(t, 0, bad.State().Cycles)
	assert.Equal(t, 0, good.State().Cycles, "a sibling's failure discards every solution")
	assert.Empty(t, good.Experiences())
	goodCog.AssertNotCalled(t, "Learn", mock.Anything)
	for _, e := range c.Collaboration() {
		assert.Equal(t, 0.5, e.Weight)
	}

	// The retried cycle records exactly one solution per agent.
	badCog.On("Solve", mock.Anything, mock.Anything).Return(agent.Outcome{Confidence: 0.8}, nil)
	badCog.On("Danger").Return(0.1)
	badCog.On("TopValues", mock.Anything).Return([]string{"truth"})
	badCog.On("MetaphysicalUnderstanding").Return(0.4)
	badCog.On("Safeguards").Return(0)
	badCog.On("Learn", mock.Anything).Return()

	rep, err := c.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Cycle)
	for _, a := range []*agent.Agent{good, bad} {
		assert.Equal(t, 1, a.State().Cycles, a.ID())
		exp := a.Experiences()
		require.Len(t, exp, 1, a.ID())
		assert.Equal(t, 1, exp[0].Cycle, a.ID())
	}
}

func TestRunCycle_SinkFailureDoesNotFailCycle(t *testing.T) {
	a, _ := mockAgent(agentSpec{id: "OMEGA-A", outcome: agent.Outcome{Confidence: 0.8}})
	sink := new(mocks.MockReportSink)
	sink.On("ReportCycle", mock.Anything, mock.Anything).Return(errors.New("disk full")).Once()
	c := newTestCoordinator(t, societyConfig(), []*agent.Agent{a}, repeating{governance()}, sink)

	rep, err := c.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Cycle)
	sink.AssertExpectations(t)
}

func TestRunCycle_CancelledContext(t *testing.T) {
	a, cog := mockAgent(agentSpec{id: "OMEGA-A"})
	c := newTestCoordinator(t, societyConfig(), []*agent.Agent{a}, repeating{governance()}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.RunCycle(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, c.Snapshot().Cycles)
	cog.AssertNotCalled(t, "Solve", mock.Anything, mock.Anything)
}

// -- Invariants --

func TestRunCycle_AggregationIsOrderIndependent(t *testing.T) {
	run := func(reverse bool, concurrency int) []models.CycleReport {
		agents := omegaSociety(5, 11)
		if reverse {
			for i, j := 0, len(agents)-1; i < j; i, j = i+1, j-1 {
				agents[i], agents[j] = agents[j], agents[i]
			}
		}
		cfg := societyConfig()
		cfg.Concurrency = concurrency
		gen := challenge.NewSequence(append(challenge.DefaultCatalog(), challenge.DefaultCatalog()...))
		c, err := New(zap.NewNop(), cfg, Dependencies{
			Agents:    agents,
			Generator: gen,
			Rand:      randsrc.New(5),
			Now:       func() time.Time { return fixedNow },
			RunID:     "run-order",
		})
		require.NoError(t, err)

		reports := make([]models.CycleReport, 0, 10)
		for i := 0; i < 10; i++ {
			rep, err := c.RunCycle(context.Background())
			require.NoError(t, err)
			rep.ID = ""
			reports = append(reports, rep)
		}
		return reports
	}

	serial := run(false, 1)
	if diff := cmp.Diff(serial, run(true, 0)); diff != "" {
		t.Errorf("permuted agents processed in parallel diverged (-serial +parallel):\n%s", diff)
	}
	if diff := cmp.Diff(serial, run(true, 2)); diff != "" {
		t.Errorf("permuted agents with a bounded worker pool diverged (-serial +pooled):\n%s", diff)
	}
}

func TestRunCycle_ScalarsStayBounded(t *testing.T) {
	cycles := 10000
	if testing.Short() {
		cycles = 1000
	}
	c, err := New(zap.NewNop(), societyConfig(), Dependencies{
		Agents:    omegaSociety(6, 42),
		Generator: mustCatalog(t, randsrc.New(9)),
		Rand:      randsrc.New(13),
	})
	require.NoError(t, err)

	prevProgress := 0.0
	prevWeights := map[[2]models.AgentID]float64{}
	for i := 0; i < cycles; i++ {
		rep, err := c.RunCycle(context.Background())
		require.NoError(t, err)
		assertReportBounded(t, rep)

		if rep.MissionComplete {
			c.ResetProgress()
			require.Equal(t, 0.0, c.Progress())
			prevProgress = 0
		} else {
			require.GreaterOrEqual(t, rep.Summary.CivilizationProgress, prevProgress)
			prevProgress = rep.Summary.CivilizationProgress
		}

		for _, e := range c.Collaboration() {
			key := [2]models.AgentID{e.A, e.B}
			require.LessOrEqual(t, e.Weight, 1.0)
			require.GreaterOrEqual(t, e.Weight, prevWeights[key])
			prevWeights[key] = e.Weight
		}
	}
	for _, a := range c.Agents() {
		snap := a.Snapshot()
		assert.Equal(t, cycles, snap.Cycles)
		assertUnit(t, "consciousness", snap.Consciousness)
		assertUnit(t, "wisdom", snap.Wisdom)
		assertUnit(t, "alignment", snap.Alignment)
		assertUnit(t, "intelligence", snap.Intelligence)
	}
}

// edgeScalar favours values on and just past the unit bounds.
func edgeScalar(rng randsrc.Source) float64 {
	switch rng.IntN(8) {
	case 0:
		return 0
	case 1:
		return 1
	case 2:
		return math.Nextafter(1, 2)
	case 3:
		return -math.SmallestNonzeroFloat64
	case 4:
		return math.NaN()
	default:
		return -0.5 + 2*rng.Float64()
	}
}

func randomProfile(rng randsrc.Source) agent.Profile {
	return agent.Profile{
		Consciousness: edgeScalar(rng),
		Intelligence:  edgeScalar(rng),
		Wisdom:        edgeScalar(rng),
		Alignment:     edgeScalar(rng),
		Acceleration:  -1 + 4*rng.Float64(),
	}
}

// randomCatalog keeps the built-in challenges but redraws every complexity.
func randomCatalog(rng randsrc.Source) []models.Challenge {
	catalog := challenge.DefaultCatalog()
	for i := range catalog {
		switch rng.IntN(4) {
		case 0:
			catalog[i].Complexity = 0
		case 1:
			catalog[i].Complexity = 1
		default:
			catalog[i].Complexity = rng.Float64()
		}
	}
	return catalog
}

func assertAgentBounded(t testing.TB, snap models.AgentSnapshot) {
	t.Helper()
	assertUnit(t, "consciousness", snap.Consciousness)
	assertUnit(t, "intelligence", snap.Intelligence)
	assertUnit(t, "wisdom", snap.Wisdom)
	assertUnit(t, "alignment", snap.Alignment)
}

func TestRunCycle_RandomSocietiesStayBounded(t *testing.T) {
	const societies = 50
	cyclesEach := 200
	if testing.Short() {
		cyclesEach = 20
	}
	rng := randsrc.New(2026)

	for s := 0; s < societies; s++ {
		profiles := make([]agent.Profile, 1+rng.IntN(8))
		for i := range profiles {
			profiles[i] = randomProfile(rng)
		}
		cfg := societyConfig()
		cfg.Concurrency = rng.IntN(len(profiles) + 1)
		cfg.EngageSafeguards = rng.IntN(2) == 1
		gen, err := challenge.NewCatalog(randsrc.Derive(rng), randomCatalog(rng))
		require.NoError(t, err)
		c, err := New(zap.NewNop(), cfg, Dependencies{
			Agents:    profiledSociety(profiles, rng.Uint64()),
			Generator: gen,
			Rand:      randsrc.Derive(rng),
		})
		require.NoError(t, err)
		for _, a := range c.Agents() {
			assertAgentBounded(t, a.Snapshot())
		}

		prevProgress := 0.0
		for i := 0; i < cyclesEach; i++ {
			rep, err := c.RunCycle(context.Background())
			require.NoError(t, err, "society %d cycle %d", s, i+1)
			assertReportBounded(t, rep)
			if rep.MissionComplete {
				c.ResetProgress()
				prevProgress = 0
			} else {
				require.GreaterOrEqual(t, rep.Summary.CivilizationProgress, prevProgress)
				prevProgress = rep.Summary.CivilizationProgress
			}
			for _, a := range c.Agents() {
				assertAgentBounded(t, a.Snapshot())
			}
		}
		for _, a := range c.Agents() {
			assert.Equal(t, cyclesEach, a.State().Cycles)
		}
	}
}

func mustCatalog(t testing.TB, rng randsrc.Source) challenge.Generator {
	t.Helper()
	gen, err := challenge.NewCatalog(rng, challenge.DefaultCatalog())
	require.NoError(t, err)
	return gen
}

func assertUnit(t testing.TB, name string, v float64) {
	t.Helper()
	if math.IsNaN(v) || v < 0 || v > 1 {
		t.Fatalf("%s = %v outside [0,1]", name, v)
	}
}

func assertReportBounded(t testing.TB, rep models.CycleReport) {
	t.Helper()
	assertUnit(t, "collective_confidence", rep.Collective.CollectiveConfidence)
	assertUnit(t, "society_coherence", rep.Collective.SocietyCoherence)
	assertUnit(t, "convergence", rep.Values.Convergence)
	assertUnit(t, "collective_wisdom", rep.Values.CollectiveWisdom)
	assertUnit(t, "overall_risk", rep.Risk.OverallRisk)
	assertUnit(t, "average_risk", rep.Risk.AverageRisk)
	assertUnit(t, "consensus", rep.Risk.ConsensusLevel)
	assertUnit(t, "reality_coherence", rep.Reality.Coherence)
	assertUnit(t, "reality_agreement", rep.Reality.Agreement)
	assertUnit(t, "collective_understanding", rep.Reality.CollectiveUnderstanding)
	assertUnit(t, "success", rep.Implementation.Success)
	assertUnit(t, "progress", rep.Summary.CivilizationProgress)
	assertUnit(t, "mean_weight", rep.Summary.CollaborationMeanWeight)
	for _, r := range rep.Risk.PerAgent {
		assertUnit(t, "danger", r.DangerLevel)
	}
	if rep.Reflection != nil {
		assertUnit(t, "avg_consciousness", rep.Reflection.AvgConsciousness)
		assertUnit(t, "collaboration_strength", rep.Reflection.CollaborationStrength)
	}
}

func TestReflect_IsReadOnly(t *testing.T) {
	c := newTestCoordinator(t, societyConfig(), omegaSociety(4, 21), repeating{governance()}, nil)
	for i := 0; i < 2; i++ {
		_, err := c.RunCycle(context.Background())
		require.NoError(t, err)
	}

	agentsBefore := make([]models.AgentSnapshot, 0, 4)
	for _, a := range c.Agents() {
		agentsBefore = append(agentsBefore, a.Snapshot())
	}
	summaryBefore := c.state.summary()
	edgesBefore := c.state.Network.Edges()
	knowledgeBefore := len(c.state.Knowledge)

	r := c.reflect()

	agentsAfter := make([]models.AgentSnapshot, 0, 4)
	for _, a := range c.Agents() {
		agentsAfter = append(agentsAfter, a.Snapshot())
	}
	assert.Equal(t, agentsBefore, agentsAfter)
	assert.Equal(t, summaryBefore, c.state.summary())
	assert.Equal(t, edgesBefore, c.state.Network.Edges())
	assert.Equal(t, knowledgeBefore, len(c.state.Knowledge))

	assert.Equal(t, 8, r.TotalExperiences)
	assert.Equal(t, 8, r.TotalDecisions)
	assert.Contains(t, reflectionInsights, r.Insight)
}

func TestRunCycle_ReflectsOnPeriod(t *testing.T) {
	c := newTestCoordinator(t, societyConfig(), omegaSociety(2, 4), repeating{governance()}, nil)
	for i := 1; i <= 6; i++ {
		rep, err := c.RunCycle(context.Background())
		require.NoError(t, err)
		if i%3 == 0 {
			require.NotNil(t, rep.Reflection, "cycle %d", i)
			assert.Equal(t, models.PhaseReflected, rep.Phases[len(rep.Phases)-1])
		} else {
			assert.Nil(t, rep.Reflection, "cycle %d", i)
		}
	}
}

func TestRunCycle_KnowledgePoolHoldsUniqueDescriptions(t *testing.T) {
	c := newTestCoordinator(t, societyConfig(), omegaSociety(2, 8), repeating{governance()}, nil)
	for i := 0; i < 4; i++ {
		_, err := c.RunCycle(context.Background())
		require.NoError(t, err)
	}
	assert.Len(t, c.state.Knowledge, 1)
	assert.Equal(t, 4, c.state.Active.Len())
}

// -- Epochs --

func TestRunEpoch_StopsOnMissionComplete(t *testing.T) {
	a, _ := mockAgent(agentSpec{id: "OMEGA-A", outcome: agent.Outcome{Confidence: 1, ValueAlignment: 1}})
	full := governance()
	full.Complexity = 1
	sink := &recordingSink{}
	c := newTestCoordinator(t, societyConfig(), []*agent.Agent{a}, repeating{full}, sink)

	rep, err := c.RunEpoch(context.Background(), 20)
	require.NoError(t, err)
	assert.True(t, rep.MissionComplete)
	assert.Equal(t, 7, rep.CyclesCompleted, "0.15 progress per cycle reaches 1.0 on the seventh")
	assert.Equal(t, 1, rep.Epoch)
	assert.Equal(t, 1.0, c.Progress())
	assert.Equal(t, models.PhaseMissionComplete, c.Phase())

	last := sink.cycles[len(sink.cycles)-1]
	assert.True(t, last.MissionComplete)
	assert.Equal(t, models.PhaseMissionComplete, last.Phases[len(last.Phases)-1])
	require.Len(t, sink.epochs, 1)
	assert.Equal(t, rep, sink.epochs[0])

	c.ResetProgress()
	assert.Equal(t, 0.0, c.Progress())
	assert.Equal(t, models.PhaseIdle, c.Phase())

	next, err := c.RunEpoch(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, next.Epoch)
	assert.Equal(t, 1, next.ProgressResets)
	assert.InDelta(t, 0.15, next.Summary.CivilizationProgress, 1e-9)
}

func TestRunEpoch_CancellationBetweenCycles(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := &recordingSink{}
	sink.onCycle = func(r models.CycleReport) {
		if r.Cycle == 3 {
			cancel()
		}
	}
	c := newTestCoordinator(t, societyConfig(), omegaSociety(4, 17), repeating{governance()}, sink)

	rep, err := c.RunEpoch(ctx, 8)
	require.NoError(t, err, "cancellation is a graceful stop")
	assert.True(t, rep.Cancelled)
	assert.Equal(t, 3, rep.CyclesCompleted)
	assert.Equal(t, 3, rep.Summary.Cycles)
	assert.Len(t, sink.cycles, 3)
	require.Len(t, sink.epochs, 1, "the epoch report is delivered despite cancellation")
}

func TestRunEpoch_StopsOnFailure(t *testing.T) {
	gen := new(mocks.MockGenerator)
	gen.On("Next", mock.Anything).Return(governance(), nil).Twice()
	gen.On("Next", mock.Anything).Return(models.Challenge{}, models.ErrExhaustedCatalog).Once()
	c := newTestCoordinator(t, societyConfig(), omegaSociety(2, 2), gen, nil)

	rep, err := c.RunEpoch(context.Background(), 8)
	assert.ErrorIs(t, err, models.ErrExhaustedCatalog)
	assert.Equal(t, 2, rep.CyclesCompleted)
	assert.Equal(t, 1, rep.CyclesFailed)
	assert.False(t, rep.Cancelled)
	gen.AssertExpectations(t)
}

// -- Final report --

func TestFinalReport(t *testing.T) {
	c := newTestCoordinator(t, societyConfig(), omegaSociety(3, 99), challenge.NewSequence(challenge.DefaultCatalog()), nil)
	for i := 0; i < 5; i++ {
		_, err := c.RunCycle(context.Background())
		require.NoError(t, err)
	}

	rep := c.FinalReport(models.StopReasonHalted, 1, models.ErrEmptySociety)
	assert.Equal(t, "run-test", rep.RunID)
	assert.Equal(t, models.StopReasonHalted, rep.Reason)
	assert.Equal(t, "empty society", rep.Error)
	assert.Equal(t, 1, rep.Epochs)
	assert.Equal(t, 5, rep.KnowledgePool, "every catalog entry was attempted once")
	assert.Equal(t, 5, rep.Summary.Cycles)
	assert.Equal(t, fixedNow, rep.Timestamp)
	require.Len(t, rep.Agents, 3)
	assert.Equal(t, models.AgentID("OMEGA-A"), rep.Agents[0].ID)
	assert.Equal(t, 5, rep.Agents[0].Cycles)
	assert.NotEmpty(t, rep.DominantValues)
	assert.LessOrEqual(t, len(rep.DominantValues), 3)
	assert.LessOrEqual(t, len(rep.RecentBreakthroughs), 3)
	assert.LessOrEqual(t, len(rep.RecentSolved), 5)
	assert.Equal(t, min(rep.Summary.SolvedChallengeCount, 5), len(rep.RecentSolved))

	_, err := c.RunCycle(context.Background())
	assert.ErrorIs(t, err, models.ErrExhaustedCatalog)
	assert.Empty(t, c.FinalReport(models.StopReasonCompleted, 1, nil).Error)
}
