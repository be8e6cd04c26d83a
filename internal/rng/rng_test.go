package rng

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSameSeedSameSequence(t *testing.T) {
	a, b := New(42), New(42)
	for i := 0; i < 20; i++ {
		assert.Equal(t, a.IntN(1000), b.IntN(1000))
	}
}

func TestChanceBounds(t *testing.T) {
	s := New(1)
	for i := 0; i < 100; i++ {
		assert.True(t, s.Chance(1))
		assert.False(t, s.Chance(0))
	}
}

func TestPick(t *testing.T) {
	s := New(7)
	items := []string{"a", "b", "c"}
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		seen[Pick(s, items)] = true
	}
	assert.Len(t, seen, 3)
}
