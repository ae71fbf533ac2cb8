package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingEvictsOldest(t *testing.T) {
	r := NewRing[int](3)
	assert.Empty(t, r.Newest(0))

	for i := 1; i <= 5; i++ {
		r.Push(i)
	}

	assert.Equal(t, 3, r.Len())
	assert.Equal(t, 3, r.Cap())
	assert.Equal(t, []int{5, 4, 3}, r.Newest(0))
	assert.Equal(t, []int{5, 4}, r.Newest(2))
	assert.Equal(t, []int{5, 4, 3}, r.Newest(10))
}

func TestRingPartiallyFilled(t *testing.T) {
	r := NewRing[string](4)
	r.Push("a")
	r.Push("b")

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []string{"b", "a"}, r.Newest(0))
}

func TestRingMinimumCapacity(t *testing.T) {
	r := NewRing[int](0)
	r.Push(1)
	r.Push(2)
	assert.Equal(t, []int{2}, r.Newest(0))
}
