package coordinator

import (
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/conclave/internal/society/models"
	"github.com/xkilldash9x/conclave/internal/society/stats"
)

const (
	collectiveBoostPerAgent = 0.1
	coherenceBonus          = 0.2
	riskPenalty             = 0.15
	progressScale           = 0.15
	maxEmergentInsights     = 2
)

var emergentInsights = []string{
	"Collective reasoning reveals multi-scale solution structure",
	"Diverse perspectives illuminate complementary aspects of truth",
	"Synthesis transcends individual cognitive limitations",
	"Emergent understanding exceeds sum of parts",
}

var reflectionInsights = []string{
	"Collective intelligence exceeds sum of individual capabilities",
	"Diversity of perspectives enhances solution robustness",
	"Shared values emerge through repeated interaction",
	"Collaborative networks strengthen with successful outcomes",
}

// process hands ch to every agent in parallel and waits for all of them. Agent
// processing is not interrupted by cancellation: once a cycle has a challenge
// it is allowed to finish, so cancellation only takes effect between cycles.
// Nothing is committed here; a single failure discards every solution.
func (c *Coordinator) process(ch models.Challenge, cycle int) (map[models.AgentID]models.SolutionRecord, error) {
	limit := c.cfg.Concurrency
	if limit <= 0 || limit > len(c.agents) {
		limit = len(c.agents)
	}

	var g errgroup.Group
	g.SetLimit(limit)

	var mu sync.Mutex
	results := make(map[models.AgentID]models.SolutionRecord, len(c.agents))
	for _, a := range c.agents {
		g.Go(func() error {
			rec, err := a.Process(ch, cycle)
			if err != nil {
				return err
			}
			mu.Lock()
			results[a.ID()] = rec
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// commit records every solution with its agent, in agent-id order.
func (c *Coordinator) commit(solutions map[models.AgentID]models.SolutionRecord) error {
	for _, a := range c.agents {
		if err := a.Commit(solutions[a.ID()]); err != nil {
			return err
		}
	}
	return nil
}

// shareBreakthroughs propagates each agent's latest novel breakthroughs to every
// other agent and strengthens the corresponding collaboration edges.
func (c *Coordinator) shareBreakthroughs(cycle int) int {
	shared := 0
	for _, src := range c.agents {
		for _, b := range src.RecentBreakthroughs(sharedPerAgent) {
			entry := models.SharedBreakthrough{Cycle: cycle, Source: src.ID(), Breakthrough: b}
			for _, dst := range c.agents {
				if dst == src {
					continue
				}
				dst.Integrate(entry)
				c.state.Network.RecordShare(src.ID(), dst.ID(), c.cfg.ShareDelta)
			}
			c.state.Shared.Append(entry)
			shared++
		}
	}
	c.logger.Debug("Breakthroughs propagated.", zap.Int("cycle", cycle), zap.Int("shared", shared))
	return shared
}

// deliberate merges every solution into the collective one. Solutions are read
// in agent-id order so the result does not depend on processing order.
func (c *Coordinator) deliberate(ch models.Challenge, solutions map[models.AgentID]models.SolutionRecord) models.CollectiveSolution {
	n := len(c.agents)
	confidences := make([]float64, 0, n)
	alignments := make([]float64, 0, n)
	for _, a := range c.agents {
		rec := solutions[a.ID()]
		confidences = append(confidences, rec.Confidence)
		alignments = append(alignments, rec.ValueAlignment)
	}

	multiplier := 1 + collectiveBoostPerAgent*float64(n)
	coherence := stats.Cohesion(alignments)
	c.state.Coherence = coherence

	return models.CollectiveSolution{
		Challenge:               ch,
		CollectiveConfidence:    stats.Clamp01(stats.Mean(confidences) * multiplier),
		SocietyCoherence:        coherence,
		PerspectivesIntegrated:  n,
		IntersubjectiveRichness: n * (n - 1),
		EmergentInsights:        c.sampleInsights(),
	}
}

func (c *Coordinator) sampleInsights() []string {
	pool := append([]string(nil), emergentInsights...)
	k := min(maxEmergentInsights, len(pool))
	out := make([]string, 0, k)
	for i := 0; i < k; i++ {
		j := i + c.rng.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
		out = append(out, pool[i])
	}
	return out
}

// convergeValues tallies every agent's top values and records the convergence.
func (c *Coordinator) convergeValues(cycle int) models.ValueConvergence {
	counts := make(map[string]int)
	wisdom := make([]float64, 0, len(c.agents))
	for _, a := range c.agents {
		for _, v := range a.TopValues(topValuesPerAgent) {
			counts[v]++
		}
		wisdom = append(wisdom, a.State().Wisdom)
	}

	tallies := make([]models.ValueTally, 0, len(counts))
	maxFreq := 0
	for v, n := range counts {
		tallies = append(tallies, models.ValueTally{Value: v, Count: n})
		maxFreq = max(maxFreq, n)
	}
	sort.Slice(tallies, func(i, j int) bool {
		if tallies[i].Count != tallies[j].Count {
			return tallies[i].Count > tallies[j].Count
		}
		return tallies[i].Value < tallies[j].Value
	})
	if len(tallies) > topValuesPerAgent {
		tallies = tallies[:topValuesPerAgent]
	}

	entry := models.ValueConvergence{
		Cycle:            cycle,
		Convergence:      stats.Clamp01(float64(maxFreq) / float64(len(c.agents))),
		CollectiveWisdom: stats.Mean(wisdom),
		DominantValues:   tallies,
	}
	c.state.CollectiveWisdom = entry.CollectiveWisdom
	c.state.Convergence.Append(entry)
	return entry
}

// assessRisk takes a fresh danger reading from every agent. The most
// conservative reading wins. Crossing the oversight threshold is only flagged
// unless safeguards are enabled, in which case each agent that reported the
// maximum engages one.
func (c *Coordinator) assessRisk(cycle int) models.RiskAssessment {
	perAgent := make([]models.AgentRisk, 0, len(c.agents))
	dangers := make([]float64, 0, len(c.agents))
	for _, a := range c.agents {
		d := a.Danger()
		perAgent = append(perAgent, models.AgentRisk{AgentID: a.ID(), DangerLevel: d})
		dangers = append(dangers, d)
	}

	overall := stats.Max(dangers)
	heightened := overall > c.cfg.OversightThreshold
	if heightened {
		c.logger.Warn("Elevated risk level, additional oversight engaged.",
			zap.Int("cycle", cycle),
			zap.Float64("overall_risk", overall),
			zap.Float64("threshold", c.cfg.OversightThreshold),
		)
		if c.cfg.EngageSafeguards {
			for i, a := range c.agents {
				if dangers[i] == overall {
					a.EngageSafeguard()
				}
			}
		}
	}

	safeguards := 0
	for _, a := range c.agents {
		safeguards += a.Safeguards()
	}

	return models.RiskAssessment{
		PerAgent:            perAgent,
		OverallRisk:         overall,
		AverageRisk:         stats.Mean(dangers),
		ConsensusLevel:      stats.Cohesion(dangers),
		SafeguardsCount:     safeguards,
		HeightenedOversight: heightened,
	}
}

func (c *Coordinator) integrateReality() models.RealitySynthesis {
	levels := make([]float64, 0, len(c.agents))
	for _, a := range c.agents {
		levels = append(levels, a.MetaphysicalUnderstanding())
	}
	return models.RealitySynthesis{
		Coherence:               stats.Cohesion(levels),
		Agreement:               stats.PairwiseAgreement(levels),
		CollectiveUnderstanding: stats.Mean(levels),
	}
}

// implement turns the collective solution into civilization progress.
func (c *Coordinator) implement(cycle int, collective models.CollectiveSolution, risk models.RiskAssessment) models.Implementation {
	success := stats.Clamp01(collective.CollectiveConfidence +
		collective.SocietyCoherence*coherenceBonus -
		risk.OverallRisk*riskPenalty)
	delta := success * collective.Challenge.Complexity * progressScale
	c.state.Progress = stats.Clamp01(c.state.Progress + delta)
	c.state.Knowledge[collective.Challenge.Description] = struct{}{}

	solved := success > c.cfg.SuccessThreshold
	if solved {
		c.state.Solved.Append(models.SolvedChallenge{
			Cycle:     cycle,
			Success:   success,
			Challenge: collective.Challenge,
		})
	}
	return models.Implementation{Success: success, ProgressDelta: delta, Solved: solved}
}

// reflect aggregates the society's state. It reads and never writes.
func (c *Coordinator) reflect() models.Reflection {
	var experiences, decisions int
	consciousness := make([]float64, 0, len(c.agents))
	wisdom := make([]float64, 0, len(c.agents))
	alignment := make([]float64, 0, len(c.agents))
	for _, a := range c.agents {
		snap := a.Snapshot()
		experiences += snap.Experiences
		decisions += snap.Cycles
		consciousness = append(consciousness, snap.Consciousness)
		wisdom = append(wisdom, snap.Wisdom)
		alignment = append(alignment, snap.Alignment)
	}

	r := models.Reflection{
		TotalExperiences:      experiences,
		TotalDecisions:        decisions,
		AvgConsciousness:      stats.Mean(consciousness),
		AvgWisdom:             stats.Mean(wisdom),
		AvgAlignment:          stats.Mean(alignment),
		CollaborationStrength: c.state.Network.MeanWeight(),
		SolvedChallenges:      c.state.Solved.Total(),
		Insight:               reflectionInsights[c.rng.IntN(len(reflectionInsights))],
	}
	c.logger.Info("Collective reflection.",
		zap.Int("total_experiences", r.TotalExperiences),
		zap.Float64("avg_wisdom", r.AvgWisdom),
		zap.Float64("collaboration_strength", r.CollaborationStrength),
		zap.String("insight", r.Insight),
	)
	return r
}
