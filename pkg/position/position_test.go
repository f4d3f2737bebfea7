package position

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entries(positions ...float64) []Entry {
	out := make([]Entry, len(positions))
	for i, p := range positions {
		out[i] = Entry{ID: fmt.Sprintf("e%d", i), Position: p}
	}
	return out
}

func TestAppend(t *testing.T) {
	assert.Equal(t, 1000.0, Append(nil))
	assert.Equal(t, 2000.0, Append(entries(1000)))
	assert.Equal(t, 3000.0, Append(entries(1000, 2000)))
}

func TestBetween(t *testing.T) {
	assert.Equal(t, 1500.0, Between(1000, 2000))
}

func TestBefore(t *testing.T) {
	assert.Equal(t, 500.0, Before(1000))
}

func TestForInsert(t *testing.T) {
	tests := []struct {
		name     string
		siblings []Entry
		index    int
		want     float64
	}{
		{"empty list", nil, 0, 1000},
		{"append past end", entries(1000, 2000), 2, 3000},
		{"head of list", entries(1000, 2000), 0, 500},
		{"between neighbors", entries(1000, 2000), 1, 1500},
		{"negative index clamps to head", entries(1000), -1, 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ForInsert(tt.siblings, tt.index))
		})
	}
}

func TestForDropCrossParentAlwaysAppends(t *testing.T) {
	siblings := entries(1000, 2000, 3000)

	// A cross-column drop targeting the top slot still lands at the
	// bottom of the destination list.
	assert.Equal(t, 4000.0, ForDrop(siblings, 0, false))
	assert.Equal(t, 500.0, ForDrop(siblings, 0, true))
}

func TestRenumber(t *testing.T) {
	assert.Empty(t, Renumber(0))
	assert.Equal(t, []float64{0, 1000, 2000, 3000}, Renumber(4))
}

func TestSortBreaksTiesByID(t *testing.T) {
	siblings := []Entry{
		{ID: "b", Position: 1000},
		{ID: "a", Position: 1000},
		{ID: "c", Position: 500},
	}
	Sort(siblings)

	assert.Equal(t, []string{"c", "a", "b"}, []string{siblings[0].ID, siblings[1].ID, siblings[2].ID})
}

// Repeated midpoint insertion at the same slot exhausts precision; the
// allocator must flag a rebalance before ties can appear, and a
// renumber must restore strictly increasing, evenly spaced keys.
func TestRepeatedMidpointInsertionTriggersRebalance(t *testing.T) {
	siblings := entries(1000, 2000)

	rebalanced := false
	for i := 0; i < 30; i++ {
		pos := Between(siblings[0].Position, siblings[1].Position)
		siblings = []Entry{siblings[0], {ID: fmt.Sprintf("mid%d", i), Position: pos}, siblings[len(siblings)-1]}

		if NeedsRebalance(siblings) {
			keys := Renumber(len(siblings))
			for j := range siblings {
				siblings[j].Position = keys[j]
			}
			rebalanced = true
			break
		}
	}
	require.True(t, rebalanced, "30 midpoint inserts must drop the gap below Epsilon")

	for i := 1; i < len(siblings); i++ {
		gap := siblings[i].Position - siblings[i-1].Position
		assert.Equal(t, Gap, gap, "positions must be evenly spaced after rebalance")
	}
	assert.False(t, NeedsRebalance(siblings))
}
