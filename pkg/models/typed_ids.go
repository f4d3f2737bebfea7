package models

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// UserID is a typed ID for users
type UserID struct {
	uuid uuid.UUID
}

func NewUserID() UserID {
	return UserID{uuid: uuid.New()}
}

func ParseUserID(s string) (UserID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return UserID{}, fmt.Errorf("invalid user ID: %w", err)
	}
	return UserID{uuid: id}, nil
}

func (u UserID) UUID() uuid.UUID { return u.uuid }
func (u UserID) String() string  { return u.uuid.String() }
func (u UserID) IsZero() bool    { return u.uuid == uuid.Nil }

func (u UserID) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.uuid.String())
}

func (u *UserID) UnmarshalJSON(data []byte) error {
	return unmarshalUUID(data, &u.uuid)
}

// ProjectID is a typed ID for projects. A project doubles as the room
// key for realtime collaboration.
type ProjectID struct {
	uuid uuid.UUID
}

func NewProjectID() ProjectID {
	return ProjectID{uuid: uuid.New()}
}

func ParseProjectID(s string) (ProjectID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return ProjectID{}, fmt.Errorf("invalid project ID: %w", err)
	}
	return ProjectID{uuid: id}, nil
}

func (p ProjectID) UUID() uuid.UUID { return p.uuid }
func (p ProjectID) String() string  { return p.uuid.String() }
func (p ProjectID) IsZero() bool    { return p.uuid == uuid.Nil }

func (p ProjectID) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.uuid.String())
}

func (p *ProjectID) UnmarshalJSON(data []byte) error {
	return unmarshalUUID(data, &p.uuid)
}

// ColumnID is a typed ID for kanban columns
type ColumnID struct {
	uuid uuid.UUID
}

func NewColumnID() ColumnID {
	return ColumnID{uuid: uuid.New()}
}

func ParseColumnID(s string) (ColumnID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return ColumnID{}, fmt.Errorf("invalid column ID: %w", err)
	}
	return ColumnID{uuid: id}, nil
}

func (c ColumnID) UUID() uuid.UUID { return c.uuid }
func (c ColumnID) String() string  { return c.uuid.String() }
func (c ColumnID) IsZero() bool    { return c.uuid == uuid.Nil }

func (c ColumnID) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.uuid.String())
}

func (c *ColumnID) UnmarshalJSON(data []byte) error {
	return unmarshalUUID(data, &c.uuid)
}

// TaskID is a typed ID for tasks
type TaskID struct {
	uuid uuid.UUID
}

func NewTaskID() TaskID {
	return TaskID{uuid: uuid.New()}
}

func ParseTaskID(s string) (TaskID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return TaskID{}, fmt.Errorf("invalid task ID: %w", err)
	}
	return TaskID{uuid: id}, nil
}

func (t TaskID) UUID() uuid.UUID { return t.uuid }
func (t TaskID) String() string  { return t.uuid.String() }
func (t TaskID) IsZero() bool    { return t.uuid == uuid.Nil }

func (t TaskID) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.uuid.String())
}

func (t *TaskID) UnmarshalJSON(data []byte) error {
	return unmarshalUUID(data, &t.uuid)
}

// ElementID is a typed ID for whiteboard elements
type ElementID struct {
	uuid uuid.UUID
}

func NewElementID() ElementID {
	return ElementID{uuid: uuid.New()}
}

func ParseElementID(s string) (ElementID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return ElementID{}, fmt.Errorf("invalid element ID: %w", err)
	}
	return ElementID{uuid: id}, nil
}

func (e ElementID) UUID() uuid.UUID { return e.uuid }
func (e ElementID) String() string  { return e.uuid.String() }
func (e ElementID) IsZero() bool    { return e.uuid == uuid.Nil }

func (e ElementID) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.uuid.String())
}

func (e *ElementID) UnmarshalJSON(data []byte) error {
	return unmarshalUUID(data, &e.uuid)
}

func unmarshalUUID(data []byte, dst *uuid.UUID) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	*dst = id
	return nil
}
