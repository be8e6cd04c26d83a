// Package rng provides the seeded random source threaded through game setup and fallbacks.
package rng

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Source is a goroutine-safe wrapper around a seeded generator.
type Source struct {
	mu sync.Mutex
	r  *rand.Rand
}

// New returns a Source seeded with seed. The same seed yields the same sequence.
func New(seed uint64) *Source {
	return &Source{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// NewRandom returns a Source seeded from the clock.
func NewRandom() *Source {
	return New(uint64(time.Now().UnixNano()))
}

// IntN returns a number in [0, n). n must be positive.
func (s *Source) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.IntN(n)
}

func (s *Source) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64()
}

func (s *Source) Shuffle(n int, swap func(i, j int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.r.Shuffle(n, swap)
}

// Chance reports true with probability p. p >= 1 is always true and p <= 0 never.
func (s *Source) Chance(p float64) bool {
	if p >= 1 {
		return true
	}
	if p <= 0 {
		return false
	}
	return s.Float64() < p
}

// Pick returns a uniformly chosen element of items. items must not be empty.
func Pick[T any](s *Source, items []T) T {
	return items[s.IntN(len(items))]
}
