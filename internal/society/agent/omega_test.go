package agent

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/conclave/internal/society/models"
	"github.com/xkilldash9x/conclave/internal/society/randsrc"
)

func TestOmegaSolve_NoBreakthrough(t *testing.T) {
	// draws: four risk checks (none trigger), breakthrough miss, confidence
	rng := randsrc.NewSequence(0.5, 0.5, 0.5, 0.5, 0.9, 0.5)
	o := NewOmegaCognition(rng, 1)

	ch := models.Challenge{
		Description: "Create sustainable relationship between technology and nature",
		Domains:     []string{"ecology", "technology", "ethics"},
		Complexity:  0.9,
	}
	out, err := o.Solve(State{}, ch)
	require.NoError(t, err)

	assert.InDelta(t, 0.51, out.ValueAlignment, 1e-12)
	assert.Equal(t, 0.1, out.RiskLevel)
	assert.Equal(t, 1.0, out.RealityCoherence)
	assert.InDelta(t, 0.8, out.Confidence, 1e-12)
	assert.False(t, out.Breakthrough.IsNovel)
	assert.Equal(t, "ecology", out.Breakthrough.Domain)
	assert.Equal(t, 0.3, out.Breakthrough.Significance)

	assert.Equal(t, 0.4, o.MetaphysicalUnderstanding(), "scoring alone teaches nothing")
	assert.Equal(t, crystallizationStart, o.crystallization)
	o.Learn(models.SolutionRecord{Challenge: ch, Breakthrough: out.Breakthrough})
	assert.InDelta(t, 0.41, o.MetaphysicalUnderstanding(), 1e-12)
	assert.InDelta(t, 0.51, o.crystallization, 1e-12)
	assert.Equal(t, 1.0, o.acceleration)
}

func TestOmegaSolve_BreakthroughAccelerates(t *testing.T) {
	// risks: first and last trigger; breakthrough hit; significance; connections; confidence
	rng := randsrc.NewSequence(0.05, 0.5, 0.5, 0.05, 0.1, 0.5, 0.5, 0.0)
	o := NewOmegaCognition(rng, 1)

	ch := models.Challenge{
		Description: "Design governance system",
		Domains:     []string{"ethics"},
		Complexity:  0.85,
	}
	out, err := o.Solve(State{}, ch)
	require.NoError(t, err)

	assert.Equal(t, 0.40, out.RiskLevel)
	assert.True(t, out.Breakthrough.IsNovel)
	assert.Equal(t, "Novel insight in ethics", out.Breakthrough.Description)
	assert.InDelta(t, 0.8, out.Breakthrough.Significance, 1e-12)
	assert.Equal(t, 4, out.Breakthrough.Connections)
	assert.InDelta(t, 0.7, out.Confidence, 1e-12)
	assert.Equal(t, 1.0, o.acceleration, "acceleration grows only once the breakthrough is learned")

	o.Learn(models.SolutionRecord{Challenge: ch, Breakthrough: out.Breakthrough})
	assert.InDelta(t, 1.05, o.acceleration, 1e-12)
}

func TestOmegaSolve_MentionedValuesAndLayersStrengthen(t *testing.T) {
	o := NewOmegaCognition(randsrc.NewSequence(0.99), 1)
	ch := models.Challenge{
		Description: "Balance liberty and collective wellbeing",
		Domains:     []string{"physical", "mathematical"},
		Requires:    []string{"knowledge_synthesis"},
		Complexity:  0.5,
	}
	for i := 0; i < 3; i++ {
		out, err := o.Solve(State{}, ch)
		require.NoError(t, err)
		o.Learn(models.SolutionRecord{Challenge: ch, Breakthrough: out.Breakthrough})
	}

	assert.Equal(t, []string{"wellbeing", "compassion", "justice"}, o.TopValues(3))
	assert.InDelta(t, 0.93, o.values[0].strength, 1e-12)
	assert.InDelta(t, 0.83, o.values[2].strength, 1e-12)
	assert.InDelta(t, 0.56, o.layers[0], 1e-12)
	assert.InDelta(t, 0.56, o.layers[3], 1e-12)
	assert.Equal(t, 0.5, o.layers[1])
	assert.InDelta(t, 0.53, o.crystallization, 1e-12)
}

func TestOmegaTopValues_Bounds(t *testing.T) {
	o := NewOmegaCognition(randsrc.New(1), 1)
	assert.Equal(t, []string{"compassion", "wellbeing", "justice"}, o.TopValues(3))
	assert.Len(t, o.TopValues(50), 6)
	assert.Empty(t, o.TopValues(-1))
}

func TestOmegaEngageSafeguard_DampensWorstRisk(t *testing.T) {
	o := NewOmegaCognition(randsrc.New(1), 1)
	o.EngageSafeguard()
	assert.Equal(t, 1, o.Safeguards())
	assert.InDelta(t, 0.36, o.risks[0].severity, 1e-12)

	o.EngageSafeguard()
	// 0.36 is still the worst, ahead of 0.35
	assert.InDelta(t, 0.324, o.risks[0].severity, 1e-12)
	o.EngageSafeguard()
	assert.InDelta(t, 0.315, o.risks[3].severity, 1e-12)
	assert.Equal(t, 3, o.Safeguards())
}

func TestOmegaAcceleration_ChanceIsCapped(t *testing.T) {
	o := NewOmegaCognition(randsrc.NewSequence(0.99), 100)
	b := o.seekBreakthrough("law")
	assert.True(t, b.IsNovel, "a draw of 0.99 is below a capped chance of 1")
	assert.Equal(t, 5, b.Connections)

	for _, accel := range []float64{0, -2, math.NaN()} {
		o = NewOmegaCognition(randsrc.NewSequence(0.0), accel)
		assert.Equal(t, 0.0, o.acceleration)
		assert.False(t, o.seekBreakthrough("law").IsNovel, "zero acceleration rules out novel breakthroughs")
		assert.Equal(t, Specialize(SystemsOptimization, Profile{Acceleration: accel}).Acceleration, o.acceleration,
			"the engine and Specialize clamp acceleration the same way")
	}
}

func TestOmegaSolve_CoherenceScoredAsLearned(t *testing.T) {
	o := NewOmegaCognition(randsrc.NewSequence(0.99), 1)
	ch := models.Challenge{Description: "Map the physical world", Domains: []string{"physical"}, Complexity: 0.4}

	first, err := o.Solve(State{}, ch)
	require.NoError(t, err)
	again, err := o.Solve(State{}, ch)
	require.NoError(t, err)
	assert.Equal(t, first.ValueAlignment, again.ValueAlignment, "unlearned solutions do not compound")
	assert.Equal(t, first.RealityCoherence, again.RealityCoherence)
	assert.Equal(t, layerStart, o.layers[0])

	o.Learn(models.SolutionRecord{Challenge: ch, Breakthrough: first.Breakthrough})
	assert.InDelta(t, layerStart+layerMentionGain, o.layers[0], 1e-12)
	assert.Less(t, first.RealityCoherence, 1.0)
}
