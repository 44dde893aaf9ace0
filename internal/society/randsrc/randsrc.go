// Package randsrc isolates every random draw the society makes behind a small
// interface so tests can substitute deterministic sequences.
package randsrc

import (
	"math/rand/v2"
	"sync"
)

// Source is the random source consumed by agents and the coordinator.
// Implementations need not be safe for concurrent use; wrap them with Locked.
type Source interface {
	// Float64 returns a value in [0,1).
	Float64() float64
	// IntN returns a value in [0,n). It panics if n <= 0.
	IntN(n int) int
	// Uint64 returns a uniformly distributed 64-bit value.
	Uint64() uint64
}

const seedMix = 0x9e3779b97f4a7c15

// New returns a PCG-backed source. A zero seed draws the seed from the
// runtime's entropy-seeded generator, so runs are not reproducible.
func New(seed uint64) Source {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return rand.New(rand.NewPCG(seed, seed^seedMix))
}

// Derive creates an independent child source from parent. Children derived
// in the same order from equally seeded parents produce equal streams.
func Derive(parent Source) Source {
	return New(parent.Uint64() | 1)
}

// Locked serializes access to an underlying source.
type Locked struct {
	mu  sync.Mutex
	src Source
}

// NewLocked wraps src for concurrent use.
func NewLocked(src Source) *Locked {
	return &Locked{src: src}
}

func (l *Locked) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.src.Float64()
}

func (l *Locked) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.src.IntN(n)
}

func (l *Locked) Uint64() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.src.Uint64()
}

// Sequence replays a fixed list of floats, wrapping around at the end.
// It is meant for tests that need exact control over every draw.
type Sequence struct {
	values []float64
	next   int
}

// NewSequence returns a Sequence over values. An empty list always yields 0.
func NewSequence(values ...float64) *Sequence {
	return &Sequence{values: append([]float64(nil), values...)}
}

func (s *Sequence) Float64() float64 {
	if len(s.values) == 0 {
		return 0
	}
	v := s.values[s.next%len(s.values)]
	s.next++
	return v
}

func (s *Sequence) IntN(n int) int {
	if n <= 0 {
		panic("randsrc: invalid argument to IntN")
	}
	i := int(s.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

func (s *Sequence) Uint64() uint64 {
	return uint64(s.Float64() * (1 << 53))
}
