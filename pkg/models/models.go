// Package models defines the entities shared between the realtime hub,
// the sync client, and the CRUD collaborator boundary.
package models

import (
	"encoding/json"
	"time"
)

// ElementKind represents the type of a whiteboard element
type ElementKind string

const (
	ElementStroke ElementKind = "stroke"
	ElementShape  ElementKind = "shape"
	ElementText   ElementKind = "text"
	ElementNote   ElementKind = "note"
)

// User is an account as seen by the realtime layer. Credentials and
// profile management live behind the CRUD boundary and are not modeled
// here.
type User struct {
	ID    UserID `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// OnlineUser is the roster projection of a user currently present in a
// room. Multiple tabs of the same user collapse into one entry; Color
// is a pure function of the user id, so duplicates are visually
// identical anyway.
type OnlineUser struct {
	ID    UserID `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Project is the collaboration scope. Its id keys the realtime room.
type Project struct {
	ID        ProjectID `json:"id"`
	Name      string    `json:"name"`
	OwnerID   UserID    `json:"owner_id"`
	Position  float64   `json:"position"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Column is a kanban column, ordered among its siblings by Position.
type Column struct {
	ID        ColumnID  `json:"id"`
	ProjectID ProjectID `json:"project_id"`
	Title     string    `json:"title"`
	Position  float64   `json:"position"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Task is a kanban card, ordered within its column by Position.
type Task struct {
	ID          TaskID    `json:"id"`
	ProjectID   ProjectID `json:"project_id"`
	ColumnID    ColumnID  `json:"column_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Position    float64   `json:"position"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Element is a whiteboard element. Content varies by kind (stroke
// points, shape geometry, text runs, note body) and is carried opaquely:
// the realtime layer relays it, only the canvas interprets it.
type Element struct {
	ID        ElementID       `json:"id"`
	ProjectID ProjectID       `json:"project_id"`
	Kind      ElementKind     `json:"kind"`
	X         float64         `json:"x"`
	Y         float64         `json:"y"`
	Width     float64         `json:"width,omitempty"`
	Height    float64         `json:"height,omitempty"`
	Color     string          `json:"color,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
