package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plankhq/plank/pkg/realtime"
)

func TestActivePrunesStaleCursors(t *testing.T) {
	now := time.Now()
	c := NewCursors(5 * time.Second)
	c.now = func() time.Time { return now }

	c.Observe(realtime.CursorMove{UserID: "alice", X: 1})
	c.Observe(realtime.CursorMove{UserID: "bob", X: 2})

	// Bob refreshes, alice goes quiet past the window.
	now = now.Add(4 * time.Second)
	c.Observe(realtime.CursorMove{UserID: "bob", X: 3})
	now = now.Add(2 * time.Second)

	active := c.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "bob", active[0].UserID)
	assert.Equal(t, 3.0, active[0].X)
}

func TestRemoveDropsCursorImmediately(t *testing.T) {
	c := NewCursors(0)
	c.Observe(realtime.CursorMove{UserID: "alice"})
	c.Remove("alice")
	assert.Empty(t, c.Active())
}

func TestLockedTaskTracksActiveDrag(t *testing.T) {
	now := time.Now()
	c := NewCursors(5 * time.Second)
	c.now = func() time.Time { return now }

	c.Observe(realtime.CursorMove{UserID: "alice", IsDragging: true, DragTaskID: "task-1"})
	assert.True(t, c.LockedTask("task-1"))
	assert.False(t, c.LockedTask("task-2"))

	// The drag ends: the next cursor update clears the lock.
	c.Observe(realtime.CursorMove{UserID: "alice"})
	assert.False(t, c.LockedTask("task-1"))
}

func TestLockExpiresWithStaleCursor(t *testing.T) {
	now := time.Now()
	c := NewCursors(5 * time.Second)
	c.now = func() time.Time { return now }

	c.Observe(realtime.CursorMove{UserID: "alice", IsDragging: true, DragTaskID: "task-1"})
	now = now.Add(6 * time.Second)

	assert.False(t, c.LockedTask("task-1"), "a vanished peer must not hold the lock forever")
}
