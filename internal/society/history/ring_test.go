package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRing_Unbounded(t *testing.T) {
	r := NewRing[int](0)
	for i := 1; i <= 5; i++ {
		r.Append(i)
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5}, r.Items())
	assert.Equal(t, 5, r.Total())
	assert.Equal(t, []int{4, 5}, r.Last(2))
	latest, ok := r.Latest()
	assert.True(t, ok)
	assert.Equal(t, 5, latest)
}

func TestRing_EvictsOldestAndKeepsTotal(t *testing.T) {
	r := NewRing[string](3)
	for _, s := range []string{"a", "b", "c", "d", "e"} {
		r.Append(s)
	}
	assert.Equal(t, []string{"c", "d", "e"}, r.Items())
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, 5, r.Total())
	assert.Equal(t, []string{"d", "e"}, r.Last(2))
	assert.Equal(t, []string{"c", "d", "e"}, r.Last(10))
	assert.Nil(t, r.Last(0))

	latest, ok := r.Latest()
	assert.True(t, ok)
	assert.Equal(t, "e", latest)
}

func TestRing_Empty(t *testing.T) {
	r := NewRing[int](-4)
	_, ok := r.Latest()
	assert.False(t, ok)
	assert.Empty(t, r.Items())
	assert.Equal(t, 0, r.Total())
}
