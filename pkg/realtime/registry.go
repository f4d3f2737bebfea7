package realtime

import (
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/plankhq/plank/pkg/models"
)

// palette holds the display colors assigned to users. Assignment is a
// pure function of the user id so a user keeps their color across tabs,
// reconnects, and sessions.
var palette = []string{
	"#e06c75", "#61afef", "#98c379", "#e5c07b",
	"#c678dd", "#56b6c2", "#d19a66", "#abb2bf",
}

// ColorFor returns the deterministic display color for a user id.
func ColorFor(id models.UserID) string {
	h := fnv.New32a()
	h.Write([]byte(id.String()))
	return palette[h.Sum32()%uint32(len(palette))]
}

type presenceKey struct {
	userID string
	connID string
}

// PresenceEntry is one (user, connection) pair currently viewing a
// room. Multiple entries may share a user (multiple tabs) but never a
// connection.
type PresenceEntry struct {
	User         models.User
	ConnectionID string
	RoomID       string
	JoinedAt     time.Time
	Color        string
}

type connRef struct {
	key    presenceKey
	roomID string
}

// Registry is the authoritative map from rooms to live presence entries
// and from connections back to their room. All methods are safe for
// concurrent use; the registry is small, so a single mutex serializes
// every mutation rather than per-room locks.
//
// No operation fails in the domain sense: absent rooms and unknown
// connections yield empty results, never errors.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]map[presenceKey]*PresenceEntry
	conns map[string]connRef
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]map[presenceKey]*PresenceEntry),
		conns: make(map[string]connRef),
	}
}

// Join registers a connection in a room and returns the room's
// refreshed roster. Any room the connection was previously in is left
// first, unconditionally: a connection belongs to at most one room.
func (r *Registry) Join(connID, roomID string, user models.User) []models.OnlineUser {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.leaveByConnection(connID)

	entry := &PresenceEntry{
		User:         user,
		ConnectionID: connID,
		RoomID:       roomID,
		JoinedAt:     time.Now(),
		Color:        ColorFor(user.ID),
	}

	key := presenceKey{userID: user.ID.String(), connID: connID}
	room := r.rooms[roomID]
	if room == nil {
		room = make(map[presenceKey]*PresenceEntry)
		r.rooms[roomID] = room
	}
	room[key] = entry
	r.conns[connID] = connRef{key: key, roomID: roomID}

	return r.onlineUsers(roomID)
}

// Leave removes a connection from a room and returns the refreshed
// roster for that room.
func (r *Registry) Leave(connID, roomID string) []models.OnlineUser {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ref, ok := r.conns[connID]; ok && ref.roomID == roomID {
		r.leaveByConnection(connID)
	}
	return r.onlineUsers(roomID)
}

// LeaveByConnection removes a connection from whatever room it is in
// and returns the vacated room id, or "" when the connection was not in
// any room. The disconnect handler uses the returned id to know which
// room to notify.
func (r *Registry) LeaveByConnection(connID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveByConnection(connID)
}

func (r *Registry) leaveByConnection(connID string) string {
	ref, ok := r.conns[connID]
	if !ok {
		return ""
	}

	if room, ok := r.rooms[ref.roomID]; ok {
		delete(room, ref.key)
		if len(room) == 0 {
			delete(r.rooms, ref.roomID)
		}
	}
	delete(r.conns, connID)

	return ref.roomID
}

// OnlineUsers returns the room's roster, deduplicated by user id: a
// user with several tabs open appears once. Order is stable (sorted by
// id) so every broadcast renders identically.
func (r *Registry) OnlineUsers(roomID string) []models.OnlineUser {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.onlineUsers(roomID)
}

func (r *Registry) onlineUsers(roomID string) []models.OnlineUser {
	byUser := make(map[string]models.OnlineUser)
	for _, entry := range r.rooms[roomID] {
		byUser[entry.User.ID.String()] = models.OnlineUser{
			ID:    entry.User.ID,
			Email: entry.User.Email,
			Name:  entry.User.Name,
			Color: entry.Color,
		}
	}

	users := make([]models.OnlineUser, 0, len(byUser))
	for _, u := range byUser {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID.String() < users[j].ID.String() })
	return users
}

// ConnectionsInRoom returns the ids of every connection currently in a
// room, for targeted relay.
func (r *Registry) ConnectionsInRoom(roomID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.rooms[roomID]))
	for key := range r.rooms[roomID] {
		ids = append(ids, key.connID)
	}
	return ids
}

// RoomOf returns the room a connection is currently in, or "".
func (r *Registry) RoomOf(connID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conns[connID].roomID
}
