package client

import (
	"sync"
	"time"

	"github.com/plankhq/plank/pkg/realtime"
)

// DefaultStaleAfter is the window after which a remote cursor is
// treated as gone even without an explicit cursor:leave. An ungraceful
// disconnect sends no leave, so staleness filtering is the only thing
// standing between peers and ghost cursors.
const DefaultStaleAfter = 5 * time.Second

type trackedCursor struct {
	cursor realtime.CursorMove
	seenAt time.Time
}

// Cursors tracks remote pointer positions for one room, keyed by user.
// It also backs the soft lock: an item named in an active drag cursor
// is rendered non-interactive locally. The lock is advisory UI only;
// the hub never enforces it.
type Cursors struct {
	mu         sync.Mutex
	byUser     map[string]trackedCursor
	staleAfter time.Duration
	now        func() time.Time
}

// NewCursors returns a tracker. staleAfter of zero or less falls back
// to DefaultStaleAfter.
func NewCursors(staleAfter time.Duration) *Cursors {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Cursors{
		byUser:     make(map[string]trackedCursor),
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// Observe records a cursor:move.
func (c *Cursors) Observe(cursor realtime.CursorMove) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byUser[cursor.UserID] = trackedCursor{cursor: cursor, seenAt: c.now()}
}

// Remove handles an explicit cursor:leave.
func (c *Cursors) Remove(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byUser, userID)
}

// Active returns the cursors refreshed within the staleness window,
// pruning the rest.
func (c *Cursors) Active() []realtime.CursorMove {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-c.staleAfter)
	out := make([]realtime.CursorMove, 0, len(c.byUser))
	for userID, tracked := range c.byUser {
		if tracked.seenAt.Before(cutoff) {
			delete(c.byUser, userID)
			continue
		}
		out = append(out, tracked.cursor)
	}
	return out
}

// LockedTask reports whether some active peer is dragging the task.
// Two users starting a drag before either cursor update arrives can
// still race; that is accepted.
func (c *Cursors) LockedTask(taskID string) bool {
	for _, cursor := range c.Active() {
		if cursor.IsDragging && cursor.DragTaskID == taskID {
			return true
		}
	}
	return false
}
