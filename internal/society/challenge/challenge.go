// Package challenge supplies the problems the society deliberates on.
package challenge

import (
	"context"
	"fmt"
	"sync"

	"github.com/xkilldash9x/conclave/internal/society/models"
	"github.com/xkilldash9x/conclave/internal/society/randsrc"
)

// Generator yields the next challenge for a cycle. Next may block (feeds) and
// must honor ctx while it does.
type Generator interface {
	Next(ctx context.Context) (models.Challenge, error)
}

// DefaultCatalog returns the built-in civilizational challenges.
func DefaultCatalog() []models.Challenge {
	return []models.Challenge{
		{
			ID:          "governance",
			Description: "Design governance system balancing individual liberty and collective wellbeing",
			Domains:     []string{"ethics", "politics", "systems_theory"},
			Complexity:  0.85,
			Requires:    []string{"value_synthesis", "long_term_reasoning", "multi_stakeholder_optimization"},
		},
		{
			ID:          "post-scarcity",
			Description: "Develop framework for flourishing in post-scarcity civilization",
			Domains:     []string{"economics", "psychology", "philosophy"},
			Complexity:  0.80,
			Requires:    []string{"meaning_generation", "value_evolution", "purpose_discovery"},
		},
		{
			ID:          "technology-nature",
			Description: "Create sustainable relationship between technology and nature",
			Domains:     []string{"ecology", "technology", "ethics"},
			Complexity:  0.90,
			Requires:    []string{"systems_thinking", "long_term_planning", "value_crystallization"},
		},
		{
			ID:          "cognitive-liberty",
			Description: "Establish principles for consciousness expansion and cognitive liberty",
			Domains:     []string{"neuroscience", "ethics", "law"},
			Complexity:  0.88,
			Requires:    []string{"consciousness_understanding", "autonomy_preservation", "risk_mitigation"},
		},
		{
			ID:          "education",
			Description: "Design education system for rapidly evolving civilization",
			Domains:     []string{"pedagogy", "psychology", "futures_studies"},
			Complexity:  0.75,
			Requires:    []string{"adaptability", "human_flourishing", "knowledge_synthesis"},
		},
	}
}

func validateCatalog(catalog []models.Challenge) error {
	if len(catalog) == 0 {
		return fmt.Errorf("%w: challenge catalog is empty", models.ErrInvalidInput)
	}
	for i, ch := range catalog {
		if err := ch.Validate(); err != nil {
			return fmt.Errorf("catalog entry %d: %w", i, err)
		}
	}
	return nil
}

// CatalogGenerator samples a fixed catalog with replacement. It never runs out.
type CatalogGenerator struct {
	mu      sync.Mutex
	rng     randsrc.Source
	catalog []models.Challenge
}

// NewCatalog validates catalog and returns a sampler over it.
func NewCatalog(rng randsrc.Source, catalog []models.Challenge) (*CatalogGenerator, error) {
	if err := validateCatalog(catalog); err != nil {
		return nil, err
	}
	cp := make([]models.Challenge, len(catalog))
	for i, ch := range catalog {
		cp[i] = ch.Clone()
	}
	return &CatalogGenerator{rng: rng, catalog: cp}, nil
}

func (g *CatalogGenerator) Next(ctx context.Context) (models.Challenge, error) {
	if err := ctx.Err(); err != nil {
		return models.Challenge{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.catalog[g.rng.IntN(len(g.catalog))].Clone(), nil
}

// SequenceGenerator walks a list once, in order, without replacement.
// Entries are handed out as-is; validation happens where they are consumed.
type SequenceGenerator struct {
	mu    sync.Mutex
	items []models.Challenge
	next  int
}

// NewSequence returns a generator over items.
func NewSequence(items []models.Challenge) *SequenceGenerator {
	cp := make([]models.Challenge, len(items))
	for i, ch := range items {
		cp[i] = ch.Clone()
	}
	return &SequenceGenerator{items: cp}
}

// NewShuffledSequence walks catalog once in an order drawn from rng.
func NewShuffledSequence(rng randsrc.Source, catalog []models.Challenge) *SequenceGenerator {
	g := NewSequence(catalog)
	for i := len(g.items) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		g.items[i], g.items[j] = g.items[j], g.items[i]
	}
	return g
}

func (g *SequenceGenerator) Next(ctx context.Context) (models.Challenge, error) {
	if err := ctx.Err(); err != nil {
		return models.Challenge{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.next >= len(g.items) {
		return models.Challenge{}, fmt.Errorf("%w: all %d challenges consumed", models.ErrExhaustedCatalog, len(g.items))
	}
	ch := g.items[g.next]
	g.next++
	return ch.Clone(), nil
}

// Remaining reports how many challenges are left.
func (g *SequenceGenerator) Remaining() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.items) - g.next
}
