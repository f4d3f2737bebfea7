package client

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/plankhq/plank/pkg/history"
	"github.com/plankhq/plank/pkg/models"
	"github.com/plankhq/plank/pkg/realtime"
)

// ElementEvent is the payload of <kind>:created and <kind>:updated for
// whiteboard elements, e.g. note:created or shape:updated.
type ElementEvent struct {
	ProjectID string         `json:"projectId"`
	Element   models.Element `json:"element"`
}

// ElementDeletedEvent is the payload of <kind>:deleted.
type ElementDeletedEvent struct {
	ProjectID string           `json:"projectId"`
	ElementID models.ElementID `json:"elementId"`
}

// CanvasClearEvent is the payload of canvas:clear.
type CanvasClearEvent struct {
	ProjectID string `json:"projectId"`
}

// StrokeEvent carries live drawing progress. The points streamed via
// stroke:point are transient; only the element announced on stroke end
// is durable.
type StrokeEvent struct {
	ProjectID string           `json:"projectId"`
	ElementID models.ElementID `json:"elementId"`
	Color     string           `json:"color,omitempty"`
	X         float64          `json:"x"`
	Y         float64          `json:"y"`
}

func createdEvent(kind models.ElementKind) string { return string(kind) + ":created" }
func updatedEvent(kind models.ElementKind) string { return string(kind) + ":updated" }
func deletedEvent(kind models.ElementKind) string { return string(kind) + ":deleted" }

var elementKinds = []models.ElementKind{
	models.ElementStroke, models.ElementShape, models.ElementText, models.ElementNote,
}

// Canvas reconciles the whiteboard state of one project and owns the
// local undo/redo log.
//
// Unlike the kanban board, a failed persist does not roll the local
// edit back: losing a drawing the user can still see is worse than a
// transient divergence from the store, so failures are logged and the
// local copy stays. Undo and redo are local-only concepts; their
// effects travel as ordinary create/update/delete mutations, so peers
// never need to know an edit was an undo.
type Canvas struct {
	client    *Client
	crud      CRUD
	logger    zerolog.Logger
	projectID models.ProjectID

	mu       sync.Mutex
	elements map[models.ElementID]models.Element
	stack    *history.Stack

	unsubscribe []func()
}

func NewCanvas(c *Client, crud CRUD, projectID models.ProjectID, logger zerolog.Logger) *Canvas {
	cv := &Canvas{
		client:    c,
		crud:      crud,
		logger:    logger.With().Str("component", "canvas").Str("project", projectID.String()).Logger(),
		projectID: projectID,
		elements:  make(map[models.ElementID]models.Element),
		stack:     history.NewStack(history.DefaultLimit),
	}

	bus := c.Bus()
	for _, kind := range elementKinds {
		cv.unsubscribe = append(cv.unsubscribe,
			bus.Subscribe(createdEvent(kind), cv.onRemoteElement),
			bus.Subscribe(updatedEvent(kind), cv.onRemoteElement),
			bus.Subscribe(deletedEvent(kind), cv.onRemoteElementDeleted),
		)
	}
	cv.unsubscribe = append(cv.unsubscribe,
		bus.Subscribe(realtime.EventCanvasClear, cv.onRemoteClear),
	)
	return cv
}

// Close detaches the canvas from the event bus.
func (cv *Canvas) Close() {
	for _, fn := range cv.unsubscribe {
		fn()
	}
}

// Elements returns a snapshot of the current elements.
func (cv *Canvas) Elements() []models.Element {
	cv.mu.Lock()
	defer cv.mu.Unlock()
	out := make([]models.Element, 0, len(cv.elements))
	for _, el := range cv.elements {
		out = append(out, el)
	}
	return out
}

// CanUndo reports whether the history has an action to undo.
func (cv *Canvas) CanUndo() bool {
	cv.mu.Lock()
	defer cv.mu.Unlock()
	return cv.stack.CanUndo()
}

// CanRedo reports whether the history has an undone action to redo.
func (cv *Canvas) CanRedo() bool {
	cv.mu.Lock()
	defer cv.mu.Unlock()
	return cv.stack.CanRedo()
}

// AddElement records a finished element: applied locally, pushed onto
// the history, persisted, and announced.
func (cv *Canvas) AddElement(ctx context.Context, element models.Element) models.Element {
	element.ProjectID = cv.projectID
	if element.ID.IsZero() {
		element.ID = models.NewElementID()
	}

	cv.mu.Lock()
	cv.elements[element.ID] = element
	cv.stack.Push(history.Create{Element: element})
	cv.mu.Unlock()

	if canonical, err := cv.crud.CreateElement(ctx, element); err != nil {
		cv.logger.Error().Str("element", element.ID.String()).Err(err).Msg("persist create failed, keeping local copy")
	} else {
		element = canonical
		cv.mu.Lock()
		cv.elements[element.ID] = element
		cv.mu.Unlock()
	}

	cv.emit(createdEvent(element.Kind), ElementEvent{ProjectID: cv.projectID.String(), Element: element})
	return element
}

// RemoveElement deletes an element and records the inverse.
func (cv *Canvas) RemoveElement(ctx context.Context, id models.ElementID) {
	cv.mu.Lock()
	element, ok := cv.elements[id]
	if !ok {
		cv.mu.Unlock()
		return
	}
	delete(cv.elements, id)
	cv.stack.Push(history.Delete{Element: element})
	cv.mu.Unlock()

	cv.persistDelete(ctx, element)
	cv.emit(deletedEvent(element.Kind), ElementDeletedEvent{ProjectID: cv.projectID.String(), ElementID: id})
}

// MoveElement records a committed drag to a new position.
func (cv *Canvas) MoveElement(ctx context.Context, id models.ElementID, toX, toY float64) {
	cv.mu.Lock()
	element, ok := cv.elements[id]
	if !ok {
		cv.mu.Unlock()
		return
	}
	action := history.Move{ID: id, FromX: element.X, FromY: element.Y, ToX: toX, ToY: toY}
	element.X, element.Y = toX, toY
	cv.elements[id] = element
	cv.stack.Push(action)
	cv.mu.Unlock()

	cv.persistUpdate(ctx, element)
	cv.emit(updatedEvent(element.Kind), ElementEvent{ProjectID: cv.projectID.String(), Element: element})
}

// ResizeElement records a committed resize gesture. Resizing can shift
// the origin too, so both geometry and position are captured.
func (cv *Canvas) ResizeElement(ctx context.Context, id models.ElementID, toX, toY, toWidth, toHeight float64) {
	cv.mu.Lock()
	element, ok := cv.elements[id]
	if !ok {
		cv.mu.Unlock()
		return
	}
	action := history.Resize{
		ID:         id,
		FromWidth:  element.Width,
		FromHeight: element.Height,
		ToWidth:    toWidth,
		ToHeight:   toHeight,
		FromX:      element.X,
		FromY:      element.Y,
		ToX:        toX,
		ToY:        toY,
	}
	element.X, element.Y = toX, toY
	element.Width, element.Height = toWidth, toHeight
	cv.elements[id] = element
	cv.stack.Push(action)
	cv.mu.Unlock()

	cv.persistUpdate(ctx, element)
	cv.emit(updatedEvent(element.Kind), ElementEvent{ProjectID: cv.projectID.String(), Element: element})
}

// EditElement records a content change on a text or note element.
func (cv *Canvas) EditElement(ctx context.Context, id models.ElementID, content json.RawMessage) {
	cv.mu.Lock()
	element, ok := cv.elements[id]
	if !ok {
		cv.mu.Unlock()
		return
	}
	action := history.Edit{ID: id, FromContent: element.Content, ToContent: content}
	element.Content = content
	cv.elements[id] = element
	cv.stack.Push(action)
	cv.mu.Unlock()

	cv.persistUpdate(ctx, element)
	cv.emit(updatedEvent(element.Kind), ElementEvent{ProjectID: cv.projectID.String(), Element: element})
}

// RecolorElement records a color change.
func (cv *Canvas) RecolorElement(ctx context.Context, id models.ElementID, color string) {
	cv.mu.Lock()
	element, ok := cv.elements[id]
	if !ok {
		cv.mu.Unlock()
		return
	}
	action := history.Recolor{ID: id, FromColor: element.Color, ToColor: color}
	element.Color = color
	cv.elements[id] = element
	cv.stack.Push(action)
	cv.mu.Unlock()

	cv.persistUpdate(ctx, element)
	cv.emit(updatedEvent(element.Kind), ElementEvent{ProjectID: cv.projectID.String(), Element: element})
}

// Undo reverts the most recent action. The inverse effect is applied
// locally and then travels the ordinary mutation path, persist plus
// broadcast, so peers converge without a dedicated undo message.
// Returns false when there was nothing to undo.
func (cv *Canvas) Undo(ctx context.Context) bool {
	cv.mu.Lock()
	action := cv.stack.Undo()
	cv.mu.Unlock()
	if action == nil {
		return false
	}
	cv.apply(ctx, action, true)
	return true
}

// Redo re-applies the most recently undone action. Returns false when
// there was nothing to redo.
func (cv *Canvas) Redo(ctx context.Context) bool {
	cv.mu.Lock()
	action := cv.stack.Redo()
	cv.mu.Unlock()
	if action == nil {
		return false
	}
	cv.apply(ctx, action, false)
	return true
}

// apply performs an action's inverse (undo) or forward (redo) effect.
func (cv *Canvas) apply(ctx context.Context, action history.Action, inverse bool) {
	switch a := action.(type) {
	case history.Create:
		if inverse {
			cv.applyDelete(ctx, a.Element)
		} else {
			cv.applyCreate(ctx, a.Element)
		}
	case history.Delete:
		if inverse {
			cv.applyCreate(ctx, a.Element)
		} else {
			cv.applyDelete(ctx, a.Element)
		}
	case history.Move:
		cv.mutate(ctx, a.ID, func(el *models.Element) {
			if inverse {
				el.X, el.Y = a.FromX, a.FromY
			} else {
				el.X, el.Y = a.ToX, a.ToY
			}
		})
	case history.Resize:
		cv.mutate(ctx, a.ID, func(el *models.Element) {
			if inverse {
				el.X, el.Y = a.FromX, a.FromY
				el.Width, el.Height = a.FromWidth, a.FromHeight
			} else {
				el.X, el.Y = a.ToX, a.ToY
				el.Width, el.Height = a.ToWidth, a.ToHeight
			}
		})
	case history.Edit:
		cv.mutate(ctx, a.ID, func(el *models.Element) {
			if inverse {
				el.Content = a.FromContent
			} else {
				el.Content = a.ToContent
			}
		})
	case history.Recolor:
		cv.mutate(ctx, a.ID, func(el *models.Element) {
			if inverse {
				el.Color = a.FromColor
			} else {
				el.Color = a.ToColor
			}
		})
	}
}

// applyCreate recreates an element with its original id, so an undo of
// a delete (or redo of a create) restores the identical object.
func (cv *Canvas) applyCreate(ctx context.Context, element models.Element) {
	cv.mu.Lock()
	cv.elements[element.ID] = element
	cv.mu.Unlock()

	if _, err := cv.crud.CreateElement(ctx, element); err != nil {
		cv.logger.Error().Str("element", element.ID.String()).Err(err).Msg("persist recreate failed, keeping local copy")
	}
	cv.emit(createdEvent(element.Kind), ElementEvent{ProjectID: cv.projectID.String(), Element: element})
}

func (cv *Canvas) applyDelete(ctx context.Context, element models.Element) {
	cv.mu.Lock()
	delete(cv.elements, element.ID)
	cv.mu.Unlock()

	cv.persistDelete(ctx, element)
	cv.emit(deletedEvent(element.Kind), ElementDeletedEvent{ProjectID: cv.projectID.String(), ElementID: element.ID})
}

// mutate applies an in-place change, persists it, and announces it. A
// no-op when the element no longer exists, which can happen if a peer
// deleted it between the original edit and the undo.
func (cv *Canvas) mutate(ctx context.Context, id models.ElementID, fn func(*models.Element)) {
	cv.mu.Lock()
	element, ok := cv.elements[id]
	if !ok {
		cv.mu.Unlock()
		cv.logger.Debug().Str("element", id.String()).Msg("undo target gone, skipping")
		return
	}
	fn(&element)
	cv.elements[id] = element
	cv.mu.Unlock()

	cv.persistUpdate(ctx, element)
	cv.emit(updatedEvent(element.Kind), ElementEvent{ProjectID: cv.projectID.String(), Element: element})
}

// Clear wipes the whole canvas and the history with it: the undo log
// would otherwise resurrect elements the room agreed to drop.
func (cv *Canvas) Clear(ctx context.Context) {
	cv.mu.Lock()
	removed := make([]models.Element, 0, len(cv.elements))
	for _, el := range cv.elements {
		removed = append(removed, el)
	}
	cv.elements = make(map[models.ElementID]models.Element)
	cv.stack.Clear()
	cv.mu.Unlock()

	for _, el := range removed {
		cv.persistDelete(ctx, el)
	}
	cv.emit(realtime.EventCanvasClear, CanvasClearEvent{ProjectID: cv.projectID.String()})
}

func (cv *Canvas) persistUpdate(ctx context.Context, element models.Element) {
	if _, err := cv.crud.UpdateElement(ctx, element); err != nil {
		cv.logger.Error().Str("element", element.ID.String()).Err(err).Msg("persist update failed, keeping local copy")
	}
}

func (cv *Canvas) persistDelete(ctx context.Context, element models.Element) {
	if err := cv.crud.DeleteElement(ctx, element.ID); err != nil {
		cv.logger.Error().Str("element", element.ID.String()).Err(err).Msg("persist delete failed")
	}
}

func (cv *Canvas) emit(event string, data any) {
	if err := cv.client.Emit(event, data); err != nil {
		cv.logger.Debug().Str("event", event).Err(err).Msg("emit failed")
	}
}

func (cv *Canvas) onRemoteElement(env realtime.Envelope) {
	event, ok := decode[ElementEvent](cv.client, env)
	if !ok || event.ProjectID != cv.projectID.String() {
		return
	}
	cv.mu.Lock()
	cv.elements[event.Element.ID] = event.Element
	cv.mu.Unlock()
}

func (cv *Canvas) onRemoteElementDeleted(env realtime.Envelope) {
	event, ok := decode[ElementDeletedEvent](cv.client, env)
	if !ok || event.ProjectID != cv.projectID.String() {
		return
	}
	cv.mu.Lock()
	delete(cv.elements, event.ElementID)
	cv.mu.Unlock()
}

// onRemoteClear drops local elements and the history: undoing across a
// remote clear would replay edits the room no longer shares.
func (cv *Canvas) onRemoteClear(env realtime.Envelope) {
	event, ok := decode[CanvasClearEvent](cv.client, env)
	if !ok || event.ProjectID != cv.projectID.String() {
		return
	}
	cv.mu.Lock()
	cv.elements = make(map[models.ElementID]models.Element)
	cv.stack.Clear()
	cv.mu.Unlock()
}

// StartStroke announces the beginning of a live stroke. The points are
// ephemeral hints for peers' in-progress rendering; the durable element
// is created by FinishStroke.
func (cv *Canvas) StartStroke(id models.ElementID, color string, x, y float64) {
	cv.emit(realtime.EventStrokeStart, StrokeEvent{
		ProjectID: cv.projectID.String(), ElementID: id, Color: color, X: x, Y: y,
	})
}

// StrokePoint streams one live stroke point.
func (cv *Canvas) StrokePoint(id models.ElementID, x, y float64) {
	cv.emit(realtime.EventStrokePoint, StrokeEvent{
		ProjectID: cv.projectID.String(), ElementID: id, X: x, Y: y,
	})
}

// FinishStroke ends the live stream and commits the stroke as a
// durable element through the ordinary create path.
func (cv *Canvas) FinishStroke(ctx context.Context, element models.Element) models.Element {
	element.Kind = models.ElementStroke
	cv.emit(realtime.EventStrokeEnd, StrokeEvent{ProjectID: cv.projectID.String(), ElementID: element.ID})
	return cv.AddElement(ctx, element)
}

// UndoStroke is the quick-undo gesture for the drawing tool. It only
// acts when the newest history entry is a stroke creation.
func (cv *Canvas) UndoStroke(ctx context.Context) bool {
	cv.mu.Lock()
	if !cv.stack.CanUndo() {
		cv.mu.Unlock()
		return false
	}
	action := cv.stack.Undo()
	create, ok := action.(history.Create)
	if !ok || create.Element.Kind != models.ElementStroke {
		// Not a stroke on top; put the cursor back untouched.
		cv.stack.Redo()
		cv.mu.Unlock()
		return false
	}
	cv.mu.Unlock()

	cv.applyDelete(ctx, create.Element)
	cv.emit(realtime.EventStrokeUndo, StrokeEvent{ProjectID: cv.projectID.String(), ElementID: create.Element.ID})
	return true
}
