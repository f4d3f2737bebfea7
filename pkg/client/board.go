package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/plankhq/plank/pkg/models"
	"github.com/plankhq/plank/pkg/position"
	"github.com/plankhq/plank/pkg/realtime"
)

// TaskEvent is the payload of task:created and task:updated. The
// createdBy/updatedBy identity fields are stamped by the hub and only
// read by UI code, so they are not modeled here.
type TaskEvent struct {
	ProjectID string      `json:"projectId"`
	Task      models.Task `json:"task"`
}

// TaskDeletedEvent is the payload of task:deleted.
type TaskDeletedEvent struct {
	ProjectID string        `json:"projectId"`
	TaskID    models.TaskID `json:"taskId"`
}

// ColumnEvent is the payload of column:created and column:updated.
type ColumnEvent struct {
	ProjectID string        `json:"projectId"`
	Column    models.Column `json:"column"`
}

// ColumnDeletedEvent is the payload of column:deleted.
type ColumnDeletedEvent struct {
	ProjectID string          `json:"projectId"`
	ColumnID  models.ColumnID `json:"columnId"`
}

// ColumnsReorderedEvent carries the full reordered column list.
type ColumnsReorderedEvent struct {
	ProjectID string          `json:"projectId"`
	Columns   []models.Column `json:"columns"`
}

// Board reconciles the local kanban state of one project.
//
// Local edits are applied optimistically, persisted through the CRUD
// boundary, and emitted over the realtime channel. Remote events are
// applied in arrival order, last write wins: concurrent edits to the
// same entity are not merged, and different peers may transiently
// diverge until the next authoritative fetch.
type Board struct {
	client    *Client
	crud      CRUD
	logger    zerolog.Logger
	projectID models.ProjectID

	mu      sync.Mutex
	columns map[models.ColumnID]models.Column
	tasks   map[models.TaskID]models.Task

	unsubscribe []func()
}

func NewBoard(c *Client, crud CRUD, projectID models.ProjectID, logger zerolog.Logger) *Board {
	b := &Board{
		client:    c,
		crud:      crud,
		logger:    logger.With().Str("component", "board").Str("project", projectID.String()).Logger(),
		projectID: projectID,
		columns:   make(map[models.ColumnID]models.Column),
		tasks:     make(map[models.TaskID]models.Task),
	}

	bus := c.Bus()
	b.unsubscribe = append(b.unsubscribe,
		bus.Subscribe(realtime.EventTaskCreated, b.onRemoteTask),
		bus.Subscribe(realtime.EventTaskUpdated, b.onRemoteTask),
		bus.Subscribe(realtime.EventTaskDeleted, b.onRemoteTaskDeleted),
		bus.Subscribe(realtime.EventColumnCreated, b.onRemoteColumn),
		bus.Subscribe(realtime.EventColumnUpdated, b.onRemoteColumn),
		bus.Subscribe(realtime.EventColumnDeleted, b.onRemoteColumnDeleted),
		bus.Subscribe(realtime.EventColumnReordered, b.onRemoteReorder),
	)
	return b
}

// Close detaches the board from the event bus.
func (b *Board) Close() {
	for _, fn := range b.unsubscribe {
		fn()
	}
}

// Load replaces local state with the authoritative CRUD state.
func (b *Board) Load(ctx context.Context) error {
	columns, err := b.crud.ListColumns(ctx, b.projectID)
	if err != nil {
		return fmt.Errorf("board: load columns: %w", err)
	}

	tasks := make(map[models.TaskID]models.Task)
	for _, col := range columns {
		colTasks, err := b.crud.ListTasks(ctx, b.projectID, col.ID)
		if err != nil {
			return fmt.Errorf("board: load tasks of %s: %w", col.ID, err)
		}
		for _, task := range colTasks {
			tasks[task.ID] = task
		}
	}

	b.mu.Lock()
	b.columns = make(map[models.ColumnID]models.Column, len(columns))
	for _, col := range columns {
		b.columns[col.ID] = col
	}
	b.tasks = tasks
	b.mu.Unlock()
	return nil
}

// Columns returns the columns in render order.
func (b *Board) Columns() []models.Column {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sortedColumns()
}

func (b *Board) sortedColumns() []models.Column {
	entries := make([]position.Entry, 0, len(b.columns))
	for id, col := range b.columns {
		entries = append(entries, position.Entry{ID: id.String(), Position: col.Position})
	}
	position.Sort(entries)

	out := make([]models.Column, 0, len(entries))
	for _, e := range entries {
		id, _ := models.ParseColumnID(e.ID)
		out = append(out, b.columns[id])
	}
	return out
}

// Tasks returns one column's tasks in render order.
func (b *Board) Tasks(columnID models.ColumnID) []models.Task {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sortedTasks(columnID)
}

func (b *Board) sortedTasks(columnID models.ColumnID) []models.Task {
	entries := make([]position.Entry, 0)
	for id, task := range b.tasks {
		if task.ColumnID == columnID {
			entries = append(entries, position.Entry{ID: id.String(), Position: task.Position})
		}
	}
	position.Sort(entries)

	out := make([]models.Task, 0, len(entries))
	for _, e := range entries {
		id, _ := models.ParseTaskID(e.ID)
		out = append(out, b.tasks[id])
	}
	return out
}

// CreateTask appends a task to a column, persists it, and announces it.
// The CRUD response is canonical and replaces the optimistic copy
// before the broadcast, so peers receive the persisted object.
func (b *Board) CreateTask(ctx context.Context, columnID models.ColumnID, title string) (models.Task, error) {
	b.mu.Lock()
	siblings := b.taskEntries(columnID)
	task := models.Task{
		ID:        models.NewTaskID(),
		ProjectID: b.projectID,
		ColumnID:  columnID,
		Title:     title,
		Position:  position.Append(siblings),
	}
	b.tasks[task.ID] = task
	b.mu.Unlock()

	canonical, err := b.crud.CreateTask(ctx, task)
	if err != nil {
		b.mu.Lock()
		delete(b.tasks, task.ID)
		b.mu.Unlock()
		return models.Task{}, fmt.Errorf("board: create task: %w", err)
	}

	b.mu.Lock()
	b.tasks[canonical.ID] = canonical
	b.mu.Unlock()

	b.emit(realtime.EventTaskCreated, TaskEvent{ProjectID: b.projectID.String(), Task: canonical})
	return canonical, nil
}

// MoveTask applies a committed drag. Within one column the drop slot is
// honored; a drop into a different column always appends at the bottom
// regardless of the vertical drop offset.
//
// If persisting fails, the optimistic move is discarded and the
// affected columns are reloaded from the authoritative list: the
// allocator computed against a neighbor snapshot that may now be wrong,
// so a partial patch is not safe.
func (b *Board) MoveTask(ctx context.Context, taskID models.TaskID, destColumn models.ColumnID, index int) error {
	b.mu.Lock()
	task, ok := b.tasks[taskID]
	if !ok {
		b.mu.Unlock()
		return fmt.Errorf("board: unknown task %s", taskID)
	}
	sourceColumn := task.ColumnID
	sameParent := sourceColumn == destColumn

	siblings := b.taskEntries(destColumn)
	if sameParent {
		siblings = withoutEntry(siblings, taskID.String())
	}

	before := task
	task.ColumnID = destColumn
	task.Position = position.ForDrop(siblings, index, sameParent)
	b.tasks[taskID] = task

	rebalanced := b.rebalanceLocked(destColumn)
	// The rebalance may have renumbered the moved task as well.
	task = b.tasks[taskID]
	b.mu.Unlock()

	if err := b.persistMove(ctx, task, rebalanced); err != nil {
		b.mu.Lock()
		b.tasks[taskID] = before
		b.mu.Unlock()
		b.reloadColumns(ctx, sourceColumn, destColumn)
		return fmt.Errorf("board: move task: %w", err)
	}

	b.emit(realtime.EventTaskUpdated, TaskEvent{ProjectID: b.projectID.String(), Task: task})
	return nil
}

// rebalanceLocked renumbers a column's tasks when fractional precision
// is exhausted. Returns the renumbered tasks, or nil when none was
// needed. Caller holds b.mu.
func (b *Board) rebalanceLocked(columnID models.ColumnID) []models.Task {
	entries := b.taskEntries(columnID)
	if !position.NeedsRebalance(entries) {
		return nil
	}

	keys := position.Renumber(len(entries))
	out := make([]models.Task, 0, len(entries))
	for i, e := range entries {
		id, _ := models.ParseTaskID(e.ID)
		task := b.tasks[id]
		task.Position = keys[i]
		b.tasks[id] = task
		out = append(out, task)
	}
	return out
}

func (b *Board) persistMove(ctx context.Context, moved models.Task, rebalanced []models.Task) error {
	if rebalanced == nil {
		_, err := b.crud.UpdateTask(ctx, moved)
		return err
	}
	for _, task := range rebalanced {
		if _, err := b.crud.UpdateTask(ctx, task); err != nil {
			return err
		}
		if task.ID != moved.ID {
			b.emit(realtime.EventTaskUpdated, TaskEvent{ProjectID: b.projectID.String(), Task: task})
		}
	}
	return nil
}

// DeleteTask removes a task, persists the removal, and announces it.
func (b *Board) DeleteTask(ctx context.Context, taskID models.TaskID) error {
	b.mu.Lock()
	task, ok := b.tasks[taskID]
	if !ok {
		b.mu.Unlock()
		return nil
	}
	delete(b.tasks, taskID)
	b.mu.Unlock()

	if err := b.crud.DeleteTask(ctx, taskID); err != nil {
		b.mu.Lock()
		b.tasks[taskID] = task
		b.mu.Unlock()
		return fmt.Errorf("board: delete task: %w", err)
	}

	b.emit(realtime.EventTaskDeleted, TaskDeletedEvent{ProjectID: b.projectID.String(), TaskID: taskID})
	return nil
}

// ReorderColumns applies a whole-list column reorder. The full order is
// known at once, so every position is renumbered in one pass instead of
// incremental midpoint math.
func (b *Board) ReorderColumns(ctx context.Context, ordered []models.ColumnID) error {
	keys := position.Renumber(len(ordered))

	b.mu.Lock()
	previous := make([]models.Column, 0, len(ordered))
	updated := make([]models.Column, 0, len(ordered))
	for i, id := range ordered {
		col, ok := b.columns[id]
		if !ok {
			b.mu.Unlock()
			return fmt.Errorf("board: unknown column %s", id)
		}
		previous = append(previous, col)
		col.Position = keys[i]
		b.columns[id] = col
		updated = append(updated, col)
	}
	b.mu.Unlock()

	for _, col := range updated {
		if _, err := b.crud.UpdateColumn(ctx, col); err != nil {
			b.mu.Lock()
			for _, prev := range previous {
				b.columns[prev.ID] = prev
			}
			b.mu.Unlock()
			b.reloadAllColumns(ctx)
			return fmt.Errorf("board: reorder columns: %w", err)
		}
	}

	b.emit(realtime.EventColumnReordered, ColumnsReorderedEvent{ProjectID: b.projectID.String(), Columns: updated})
	return nil
}

func (b *Board) taskEntries(columnID models.ColumnID) []position.Entry {
	entries := make([]position.Entry, 0)
	for id, task := range b.tasks {
		if task.ColumnID == columnID {
			entries = append(entries, position.Entry{ID: id.String(), Position: task.Position})
		}
	}
	position.Sort(entries)
	return entries
}

func withoutEntry(entries []position.Entry, id string) []position.Entry {
	out := entries[:0]
	for _, e := range entries {
		if e.ID != id {
			out = append(out, e)
		}
	}
	return out
}

// reloadColumns refetches the authoritative task lists of the given
// columns after a failed optimistic reorder.
func (b *Board) reloadColumns(ctx context.Context, columnIDs ...models.ColumnID) {
	seen := make(map[models.ColumnID]bool)
	for _, columnID := range columnIDs {
		if seen[columnID] {
			continue
		}
		seen[columnID] = true

		tasks, err := b.crud.ListTasks(ctx, b.projectID, columnID)
		if err != nil {
			b.logger.Error().Str("column", columnID.String()).Err(err).Msg("reload after failed reorder")
			continue
		}

		b.mu.Lock()
		for id, task := range b.tasks {
			if task.ColumnID == columnID {
				delete(b.tasks, id)
			}
		}
		for _, task := range tasks {
			b.tasks[task.ID] = task
		}
		b.mu.Unlock()
	}
}

func (b *Board) reloadAllColumns(ctx context.Context) {
	columns, err := b.crud.ListColumns(ctx, b.projectID)
	if err != nil {
		b.logger.Error().Err(err).Msg("reload columns after failed reorder")
		return
	}
	b.mu.Lock()
	b.columns = make(map[models.ColumnID]models.Column, len(columns))
	for _, col := range columns {
		b.columns[col.ID] = col
	}
	b.mu.Unlock()
}

func (b *Board) emit(event string, data any) {
	if err := b.client.Emit(event, data); err != nil {
		// Best-effort: peers catch up from persistence on their next load.
		b.logger.Debug().Str("event", event).Err(err).Msg("emit failed")
	}
}

func (b *Board) onRemoteTask(env realtime.Envelope) {
	event, ok := decode[TaskEvent](b.client, env)
	if !ok || event.ProjectID != b.projectID.String() {
		return
	}
	b.mu.Lock()
	b.tasks[event.Task.ID] = event.Task
	b.mu.Unlock()
}

func (b *Board) onRemoteTaskDeleted(env realtime.Envelope) {
	event, ok := decode[TaskDeletedEvent](b.client, env)
	if !ok || event.ProjectID != b.projectID.String() {
		return
	}
	b.mu.Lock()
	delete(b.tasks, event.TaskID)
	b.mu.Unlock()
}

func (b *Board) onRemoteColumn(env realtime.Envelope) {
	event, ok := decode[ColumnEvent](b.client, env)
	if !ok || event.ProjectID != b.projectID.String() {
		return
	}
	b.mu.Lock()
	b.columns[event.Column.ID] = event.Column
	b.mu.Unlock()
}

func (b *Board) onRemoteColumnDeleted(env realtime.Envelope) {
	event, ok := decode[ColumnDeletedEvent](b.client, env)
	if !ok || event.ProjectID != b.projectID.String() {
		return
	}
	b.mu.Lock()
	delete(b.columns, event.ColumnID)
	b.mu.Unlock()
}

func (b *Board) onRemoteReorder(env realtime.Envelope) {
	event, ok := decode[ColumnsReorderedEvent](b.client, env)
	if !ok || event.ProjectID != b.projectID.String() {
		return
	}
	b.mu.Lock()
	for _, col := range event.Columns {
		b.columns[col.ID] = col
	}
	b.mu.Unlock()
}
