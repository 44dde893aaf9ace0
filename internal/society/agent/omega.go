package agent

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/xkilldash9x/conclave/internal/society/models"
	"github.com/xkilldash9x/conclave/internal/society/randsrc"
	"github.com/xkilldash9x/conclave/internal/society/stats"
)

const (
	valueMentionGain        = 0.01
	crystallizationStart    = 0.5
	crystallizationGain     = 0.01
	riskTriggerProbability  = 0.1
	baselineDanger          = 0.1
	safeguardDampening      = 0.9
	insightRate             = 0.3
	accelerationGrowth      = 1.05
	incrementalSignificance = 0.3
	layerStart              = 0.5
	layerMentionGain        = 0.02
	metaphysicalStart       = 0.4
	metaphysicalGain        = 0.01
	confidenceFloor         = 0.7
	confidenceSpread        = 0.2
)

type value struct {
	name     string
	strength float64
}

type risk struct {
	category   string
	severity   float64
	safeguards int
}

var ontologicalLayers = []string{
	"physical",
	"informational",
	"computational",
	"mathematical",
	"abstract",
	"metaphysical",
}

// OmegaCognition is the default scoring engine. It keeps a small set of
// self-reinforcing models: crystallized values, a risk register, breakthrough
// acceleration and a layered reality model.
type OmegaCognition struct {
	rng randsrc.Source

	values          []value
	crystallization float64

	risks []risk

	acceleration float64

	layers       []float64
	metaphysical float64
}

// NewOmegaCognition builds a fresh engine. acceleration scales the chance of a
// breakthrough and comes from the agent's specialized profile; like Specialize,
// a negative or NaN acceleration is clamped to 0, which rules out novel
// breakthroughs.
func NewOmegaCognition(rng randsrc.Source, acceleration float64) *OmegaCognition {
	acceleration = clampAcceleration(acceleration)
	layers := make([]float64, len(ontologicalLayers))
	for i := range layers {
		layers[i] = layerStart
	}
	return &OmegaCognition{
		rng: rng,
		values: []value{
			{"wellbeing", 0.90},
			{"autonomy", 0.85},
			{"knowledge", 0.80},
			{"beauty", 0.75},
			{"justice", 0.88},
			{"compassion", 0.92},
		},
		crystallization: crystallizationStart,
		risks: []risk{
			{category: "alignment", severity: 0.40},
			{category: "capability_overshoot", severity: 0.30},
			{category: "value_drift", severity: 0.25},
			{category: "unintended_consequences", severity: 0.35},
		},
		acceleration: acceleration,
		layers:       layers,
		metaphysical: metaphysicalStart,
	}
}

// Solve reads danger, seeks a breakthrough in the primary domain and scores
// confidence, in that order. Value alignment and reality coherence are scored
// as they will stand once the solution is learned.
func (o *OmegaCognition) Solve(_ State, ch models.Challenge) (Outcome, error) {
	text := challengeText(ch)

	danger := o.Danger()

	layers := append([]float64(nil), o.layers...)
	for i, layer := range ontologicalLayers {
		if strings.Contains(text, layer) {
			layers[i] = math.Min(1, layers[i]+layerMentionGain)
		}
	}

	breakthrough := o.seekBreakthrough(ch.PrimaryDomain())
	confidence := confidenceFloor + o.rng.Float64()*confidenceSpread

	return Outcome{
		Confidence:       confidence,
		ValueAlignment:   math.Min(1, o.crystallization+crystallizationGain),
		RiskLevel:        danger,
		RealityCoherence: stats.Cohesion(layers),
		Breakthrough:     breakthrough,
	}, nil
}

// Learn strengthens the values and reality layers the solved challenge
// mentions, deepens crystallization and metaphysical understanding, and
// accelerates after a novel breakthrough.
func (o *OmegaCognition) Learn(rec models.SolutionRecord) {
	text := challengeText(rec.Challenge)
	for i := range o.values {
		if strings.Contains(text, o.values[i].name) {
			o.values[i].strength = math.Min(1, o.values[i].strength+valueMentionGain)
		}
	}
	o.crystallization = math.Min(1, o.crystallization+crystallizationGain)

	for i, layer := range ontologicalLayers {
		if strings.Contains(text, layer) {
			o.layers[i] = math.Min(1, o.layers[i]+layerMentionGain)
		}
	}
	o.metaphysical = math.Min(1, o.metaphysical+metaphysicalGain)

	if rec.Breakthrough.IsNovel {
		o.acceleration *= accelerationGrowth
	}
}

func (o *OmegaCognition) seekBreakthrough(domain string) models.Breakthrough {
	chance := math.Min(1, insightRate*o.acceleration)
	if o.rng.Float64() < chance {
		return models.Breakthrough{
			Domain:       domain,
			Description:  fmt.Sprintf("Novel insight in %s", domain),
			Significance: 0.6 + o.rng.Float64()*0.4,
			IsNovel:      true,
			Connections:  2 + o.rng.IntN(4),
		}
	}
	return models.Breakthrough{
		Domain:       domain,
		Description:  "Incremental progress",
		Significance: incrementalSignificance,
	}
}

// Danger draws each registered risk independently; the reading is the most
// severe triggered risk, or a baseline when none trigger.
func (o *OmegaCognition) Danger() float64 {
	danger := 0.0
	triggered := false
	for _, r := range o.risks {
		if o.rng.Float64() < riskTriggerProbability {
			triggered = true
			danger = math.Max(danger, r.severity)
		}
	}
	if !triggered {
		return baselineDanger
	}
	return danger
}

// TopValues orders values by strength, breaking ties by name.
func (o *OmegaCognition) TopValues(n int) []string {
	sorted := append([]value(nil), o.values...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].strength != sorted[j].strength {
			return sorted[i].strength > sorted[j].strength
		}
		return sorted[i].name < sorted[j].name
	})
	n = min(max(n, 0), len(sorted))
	out := make([]string, 0, n)
	for _, v := range sorted[:n] {
		out = append(out, v.name)
	}
	return out
}

func (o *OmegaCognition) MetaphysicalUnderstanding() float64 { return o.metaphysical }

func (o *OmegaCognition) Safeguards() int {
	total := 0
	for _, r := range o.risks {
		total += r.safeguards
	}
	return total
}

// EngageSafeguard adds a safeguard to the most severe risk, dampening it.
func (o *OmegaCognition) EngageSafeguard() {
	if len(o.risks) == 0 {
		return
	}
	worst := 0
	for i, r := range o.risks {
		if r.severity > o.risks[worst].severity {
			worst = i
		}
	}
	o.risks[worst].safeguards++
	o.risks[worst].severity *= safeguardDampening
}

func challengeText(ch models.Challenge) string {
	parts := make([]string, 0, 1+len(ch.Domains)+len(ch.Requires))
	parts = append(parts, ch.Description)
	parts = append(parts, ch.Domains...)
	parts = append(parts, ch.Requires...)
	return strings.ToLower(strings.Join(parts, " "))
}

func clampAcceleration(a float64) float64 {
	if a < 0 || math.IsNaN(a) {
		return 0
	}
	return a
}
