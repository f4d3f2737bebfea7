package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plankhq/plank/pkg/models"
)

func newUser(name string) models.User {
	return models.User{ID: models.NewUserID(), Email: name + "@example.com", Name: name}
}

func userIDs(users []models.OnlineUser) []string {
	out := make([]string, len(users))
	for i, u := range users {
		out[i] = u.ID.String()
	}
	return out
}

func TestJoinReturnsRoster(t *testing.T) {
	r := NewRegistry()
	alice := newUser("alice")
	bob := newUser("bob")

	users := r.Join("conn-a", "room-1", alice)
	assert.Equal(t, []string{alice.ID.String()}, userIDs(users))

	users = r.Join("conn-b", "room-1", bob)
	assert.ElementsMatch(t, []string{alice.ID.String(), bob.ID.String()}, userIDs(users))
}

func TestMultiTabDedup(t *testing.T) {
	r := NewRegistry()
	alice := newUser("alice")

	users := r.Join("tab-1", "room-1", alice)
	assert.Len(t, users, 1)

	users = r.Join("tab-2", "room-1", alice)
	assert.Len(t, users, 1, "two tabs of the same user collapse to one roster entry")

	assert.Len(t, r.ConnectionsInRoom("room-1"), 2)
}

func TestDisconnectOrdering(t *testing.T) {
	r := NewRegistry()
	alice := newUser("alice")
	r.Join("tab-1", "room-1", alice)
	r.Join("tab-2", "room-1", alice)

	// First tab goes: the user stays visible through the second tab.
	vacated := r.LeaveByConnection("tab-1")
	assert.Equal(t, "room-1", vacated)
	assert.Len(t, r.OnlineUsers("room-1"), 1)

	// Second tab goes: the user is gone.
	vacated = r.LeaveByConnection("tab-2")
	assert.Equal(t, "room-1", vacated)
	assert.Empty(t, r.OnlineUsers("room-1"))
}

func TestJoinSwitchesRoom(t *testing.T) {
	r := NewRegistry()
	alice := newUser("alice")

	r.Join("conn-a", "room-a", alice)
	r.Join("conn-a", "room-b", alice)

	assert.Empty(t, r.OnlineUsers("room-a"), "joining room B implicitly leaves room A")
	assert.Len(t, r.OnlineUsers("room-b"), 1)
	assert.Equal(t, "room-b", r.RoomOf("conn-a"))
}

func TestLeaveUnknownRoomIsNoop(t *testing.T) {
	r := NewRegistry()
	alice := newUser("alice")
	r.Join("conn-a", "room-a", alice)

	// Leaving a room the connection is not in must not disturb its
	// actual membership.
	users := r.Leave("conn-a", "room-b")
	assert.Empty(t, users)
	assert.Len(t, r.OnlineUsers("room-a"), 1)
}

func TestLeaveByUnknownConnection(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, "", r.LeaveByConnection("ghost"))
	assert.Empty(t, r.OnlineUsers("nowhere"))
}

// For any sequence of join/leave/disconnect, the roster never contains
// a user with zero live connections in the room.
func TestRosterNeverContainsDepartedUsers(t *testing.T) {
	r := NewRegistry()
	alice := newUser("alice")
	bob := newUser("bob")

	r.Join("a1", "room", alice)
	r.Join("a2", "room", alice)
	r.Join("b1", "room", bob)

	r.LeaveByConnection("b1")
	require.NotContains(t, userIDs(r.OnlineUsers("room")), bob.ID.String())

	r.Leave("a1", "room")
	r.LeaveByConnection("a2")
	assert.Empty(t, r.OnlineUsers("room"))
	assert.Empty(t, r.ConnectionsInRoom("room"))
}

func TestColorIsDeterministic(t *testing.T) {
	alice := newUser("alice")

	c1 := ColorFor(alice.ID)
	c2 := ColorFor(alice.ID)
	assert.Equal(t, c1, c2)
	assert.Contains(t, palette, c1)

	// The roster carries the same color across reconnects.
	r := NewRegistry()
	users := r.Join("conn-a", "room", alice)
	assert.Equal(t, c1, users[0].Color)
	r.LeaveByConnection("conn-a")
	users = r.Join("conn-b", "room", alice)
	assert.Equal(t, c1, users[0].Color)
}
