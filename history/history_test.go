package history_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/exp/slices"

	"github.com/avbezrukov/linechat/history"
)

func TestBuffer_UnboundedWhenCapacityZero(t *testing.T) {
	b := history.New[string](0)
	for i := 0; i < 100; i++ {
		b.Add("x")
	}
	assert.Equal(t, 100, b.Len())
}

func TestBuffer_EvictsOldestOnOverflow(t *testing.T) {
	b := history.New[string](3)
	b.Add("a")
	b.Add("b")
	b.Add("c")
	b.Add("d")

	got := b.Snapshot()
	want := []string{"b", "c", "d"}
	assert.True(t, slices.Equal(want, got), "got %v, want %v", got, want)
}

func TestBuffer_SnapshotIsACopy(t *testing.T) {
	b := history.New[string](2)
	b.Add("a")

	snap := b.Snapshot()
	snap[0] = "mutated"

	assert.Equal(t, []string{"a"}, b.Snapshot())
}

func TestBuffer_SnapshotOrderIsInsertionOrder(t *testing.T) {
	b := history.New[int](5)
	for i := 1; i <= 5; i++ {
		b.Add(i)
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5}, b.Snapshot())
}

func TestBuffer_LenNeverExceedsCapacity(t *testing.T) {
	b := history.New[int](3)
	for i := 0; i < 50; i++ {
		b.Add(i)
		assert.LessOrEqual(t, b.Len(), 3)
	}
}
