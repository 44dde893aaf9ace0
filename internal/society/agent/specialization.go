package agent

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/conclave/internal/society/models"
	"github.com/xkilldash9x/conclave/internal/society/stats"
)

// Specialization biases an agent's starting profile.
type Specialization int

const (
	ScientificDiscovery Specialization = iota
	EthicalPhilosophy
	SystemsOptimization
	CreativeSynthesis

	specializationCount = 4
)

var specializationNames = map[Specialization]string{
	ScientificDiscovery: "scientific_discovery",
	EthicalPhilosophy:   "ethical_philosophy",
	SystemsOptimization: "systems_optimization",
	CreativeSynthesis:   "creative_synthesis",
}

func (s Specialization) String() string {
	if name, ok := specializationNames[s]; ok {
		return name
	}
	return fmt.Sprintf("specialization(%d)", int(s))
}

// ParseSpecialization accepts the snake_case names produced by String.
func ParseSpecialization(name string) (Specialization, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for s, n := range specializationNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown specialization %q", models.ErrInvalidInput, name)
}

// SpecializationFor assigns specializations round-robin by agent index.
func SpecializationFor(index int) Specialization {
	if index < 0 {
		index = -index
	}
	return Specialization(index % specializationCount)
}

// Profile is the tunable starting point of an agent.
type Profile struct {
	Consciousness float64
	Intelligence  float64
	Wisdom        float64
	Alignment     float64
	// Acceleration multiplies the agent's breakthrough chance.
	Acceleration float64
}

// BaseProfile is the profile every agent starts from before specialization.
func BaseProfile() Profile {
	return Profile{
		Consciousness: 0.80,
		Intelligence:  0.85,
		Wisdom:        0.75,
		Alignment:     0.90,
		Acceleration:  1.0,
	}
}

// Specialize applies the bias of s to p. Scalars are clamped to [0,1];
// Acceleration is unbounded above and clamped to 0 below, NaN included.
func Specialize(s Specialization, p Profile) Profile {
	switch s {
	case ScientificDiscovery:
		p.Acceleration *= 1.2
	case EthicalPhilosophy:
		p.Wisdom *= 1.15
	case SystemsOptimization:
	case CreativeSynthesis:
		p.Consciousness *= 1.1
	}
	p.Consciousness = stats.Clamp01(p.Consciousness)
	p.Intelligence = stats.Clamp01(p.Intelligence)
	p.Wisdom = stats.Clamp01(p.Wisdom)
	p.Alignment = stats.Clamp01(p.Alignment)
	p.Acceleration = clampAcceleration(p.Acceleration)
	return p
}
