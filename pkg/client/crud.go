package client

import (
	"context"

	"github.com/plankhq/plank/pkg/models"
)

// CRUD is the boundary to the persistence API. The realtime layer only
// relays already-decided results: every mutation is persisted through
// this synchronous interface, which returns the canonical object, and
// the broadcast peers receive is a hint, never the source of truth.
//
// Implementations live outside this module (the HTTP API client of the
// application); tests substitute fakes.
type CRUD interface {
	CreateTask(ctx context.Context, task models.Task) (models.Task, error)
	UpdateTask(ctx context.Context, task models.Task) (models.Task, error)
	DeleteTask(ctx context.Context, id models.TaskID) error
	// ListTasks returns the authoritative ordered task list of one
	// column, used to recover from a failed optimistic reorder.
	ListTasks(ctx context.Context, projectID models.ProjectID, columnID models.ColumnID) ([]models.Task, error)

	UpdateColumn(ctx context.Context, column models.Column) (models.Column, error)
	ListColumns(ctx context.Context, projectID models.ProjectID) ([]models.Column, error)

	CreateElement(ctx context.Context, element models.Element) (models.Element, error)
	UpdateElement(ctx context.Context, element models.Element) (models.Element, error)
	DeleteElement(ctx context.Context, id models.ElementID) error
}
