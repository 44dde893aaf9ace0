// Package network tracks the pairwise collaboration strength between agents.
// Edges are undirected, weights live in [0,1] and never decrease.
package network

import (
	"math"
	"sort"
	"sync"

	"github.com/xkilldash9x/conclave/internal/society/models"
)

// Edge is a snapshot of one collaboration link. A is always ordered before B.
type Edge struct {
	A      models.AgentID `json:"a"`
	B      models.AgentID `json:"b"`
	Weight float64        `json:"weight"`
}

type pairKey struct {
	a, b models.AgentID
}

func keyFor(a, b models.AgentID) pairKey {
	if b < a {
		a, b = b, a
	}
	return pairKey{a: a, b: b}
}

// Network is the collaboration graph. The coordinator is its only writer;
// readers may take snapshots concurrently.
type Network struct {
	mu    sync.RWMutex
	edges map[pairKey]float64
}

// New returns an empty network.
func New() *Network {
	return &Network{edges: make(map[pairKey]float64)}
}

// RecordShare strengthens the edge between a and b by delta, creating it at
// delta when absent. Self-pairs and negative or NaN deltas are ignored.
func (n *Network) RecordShare(a, b models.AgentID, delta float64) {
	if a == b || math.IsNaN(delta) || delta < 0 {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	k := keyFor(a, b)
	n.edges[k] = math.Min(1, n.edges[k]+delta)
}

// Connect seeds the edge between a and b with at least weight w.
func (n *Network) Connect(a, b models.AgentID, w float64) {
	if a == b || math.IsNaN(w) || w < 0 {
		return
	}
	w = math.Min(1, w)
	n.mu.Lock()
	defer n.mu.Unlock()
	k := keyFor(a, b)
	if cur, ok := n.edges[k]; !ok || w > cur {
		n.edges[k] = w
	}
}

// Weight returns the edge weight and whether the edge exists.
func (n *Network) Weight(a, b models.AgentID) (float64, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	w, ok := n.edges[keyFor(a, b)]
	return w, ok
}

// MeanWeight is the mean of all edge weights, 0 when there are none.
func (n *Network) MeanWeight() float64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if len(n.edges) == 0 {
		return 0
	}
	var sum float64
	for _, w := range n.edges {
		sum += w
	}
	return sum / float64(len(n.edges))
}

// Len is the number of edges.
func (n *Network) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.edges)
}

// Edges returns every edge sorted by (A, B).
func (n *Network) Edges() []Edge {
	n.mu.RLock()
	out := make([]Edge, 0, len(n.edges))
	for k, w := range n.edges {
		out = append(out, Edge{A: k.a, B: k.b, Weight: w})
	}
	n.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}
