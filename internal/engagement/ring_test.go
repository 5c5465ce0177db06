package engagement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRing_PushBelowCapacity(t *testing.T) {
	r := NewRing[int](4)

	r.Push(1)
	r.Push(2)
	r.Push(3)

	assert.Equal(t, 3, r.Len())
	assert.Equal(t, uint64(0), r.Evicted())
	assert.Equal(t, []int{1, 2, 3}, r.Items())
}

func TestRing_EvictsOldestWhenFull(t *testing.T) {
	r := NewRing[int](3)

	for i := 1; i <= 5; i++ {
		r.Push(i)
	}

	assert.Equal(t, 3, r.Len())
	assert.Equal(t, uint64(2), r.Evicted())
	assert.Equal(t, []int{3, 4, 5}, r.Items(), "oldest entries should be gone")
}

func TestRing_HistoryCapEviction(t *testing.T) {
	r := NewRing[int](HistoryCap)

	for i := 0; i < HistoryCap+50; i++ {
		r.Push(i)
	}

	require.Equal(t, HistoryCap, r.Len())
	assert.Equal(t, uint64(50), r.Evicted())

	items := r.Items()
	assert.Equal(t, 50, items[0], "window should start after the evicted prefix")
	assert.Equal(t, HistoryCap+49, items[len(items)-1])
}

func TestRing_DoVisitsOldestFirst(t *testing.T) {
	r := NewRing[string](2)
	r.Push("a")
	r.Push("b")
	r.Push("c")

	var seen []string
	r.Do(func(s string) { seen = append(seen, s) })
	assert.Equal(t, []string{"b", "c"}, seen)
}

func TestRing_Reset(t *testing.T) {
	r := NewRing[int](2)
	r.Push(1)
	r.Push(2)
	r.Push(3)

	r.Reset()

	assert.Equal(t, 0, r.Len())
	assert.Equal(t, uint64(0), r.Evicted())
	assert.Empty(t, r.Items())
}

func TestNewRing_PanicsOnNonPositiveCapacity(t *testing.T) {
	assert.Panics(t, func() { NewRing[int](0) })
}
