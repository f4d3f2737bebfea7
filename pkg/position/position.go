// Package position computes fractional sort keys for ordered lists of
// tasks, columns, projects, and workspaces.
//
// Siblings are totally ordered by ascending position. New keys are
// allocated without rewriting existing siblings: appends extend the tail
// by a fixed gap, inserts take the midpoint of their neighbors. Repeated
// midpoint insertion at one location halves the neighbor gap each time,
// so once the gap drops below Epsilon the caller must renumber the whole
// sibling list before continuing, or float resolution runs out and ties
// appear.
package position

import "sort"

const (
	// Gap is the spacing between consecutive keys after an append or a
	// full renumber.
	Gap = 1000.0

	// Epsilon is the smallest neighbor gap tolerated before a rebalance
	// is required.
	Epsilon = 0.001
)

// Entry is a sibling as the allocator sees it: its sort key plus a
// stable secondary key used to break position ties deterministically.
type Entry struct {
	ID       string
	Position float64
}

// Sort orders siblings ascending by position, breaking exact ties by ID
// so every client renders an identical list.
func Sort(siblings []Entry) {
	sort.Slice(siblings, func(i, j int) bool {
		if siblings[i].Position == siblings[j].Position {
			return siblings[i].ID < siblings[j].ID
		}
		return siblings[i].Position < siblings[j].Position
	})
}

// Append returns the key for a new last sibling.
func Append(siblings []Entry) float64 {
	if len(siblings) == 0 {
		return Gap
	}
	return siblings[len(siblings)-1].Position + Gap
}

// Between returns the key for an insert strictly between two neighbors.
func Between(lower, upper float64) float64 {
	return (lower + upper) / 2
}

// Before returns the key for an insert ahead of the current first
// sibling.
func Before(first float64) float64 {
	return first / 2
}

// ForInsert returns the key for inserting at index within an
// already-sorted sibling list. Index len(siblings) appends.
func ForInsert(siblings []Entry, index int) float64 {
	switch {
	case len(siblings) == 0 || index >= len(siblings):
		return Append(siblings)
	case index <= 0:
		return Before(siblings[0].Position)
	default:
		return Between(siblings[index-1].Position, siblings[index].Position)
	}
}

// ForDrop returns the key for a drag-and-drop release. Drops into a
// different parent always append to the destination regardless of the
// vertical drop offset; only same-parent drops honor the target slot.
func ForDrop(siblings []Entry, index int, sameParent bool) float64 {
	if !sameParent {
		return Append(siblings)
	}
	return ForInsert(siblings, index)
}

// Renumber returns evenly spaced keys for a whole-list reorder of n
// members: 0, Gap, 2*Gap, and so on. Used both when the full order is
// known at once (column/project drags) and as the rebalance pass.
func Renumber(n int) []float64 {
	keys := make([]float64, n)
	for i := range keys {
		keys[i] = float64(i) * Gap
	}
	return keys
}

// NeedsRebalance reports whether any adjacent pair of the sorted
// sibling list is closer than Epsilon. When true, the caller must
// renumber the list before allocating further keys.
func NeedsRebalance(siblings []Entry) bool {
	for i := 1; i < len(siblings); i++ {
		if siblings[i].Position-siblings[i-1].Position < Epsilon {
			return true
		}
	}
	return false
}
