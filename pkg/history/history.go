// Package history implements the client-local undo/redo log.
//
// The log is strictly linear: a single cursor moves over an ordered
// sequence of actions, and pushing a new action destroys anything ahead
// of the cursor. Undo and redo only return the recorded action; applying
// the inverse or forward effect is the caller's job, and each
// application must be re-emitted through the ordinary mutation channel
// (persist + broadcast) so other participants converge. Undo is never a
// special replicated message type.
package history

import (
	"encoding/json"

	"github.com/plankhq/plank/pkg/models"
)

// DefaultLimit caps the number of retained actions. Pushing beyond the
// cap drops the oldest entries.
const DefaultLimit = 100

// Kind discriminates the closed set of action variants.
type Kind string

const (
	KindCreate  Kind = "create"
	KindDelete  Kind = "delete"
	KindMove    Kind = "move"
	KindResize  Kind = "resize"
	KindEdit    Kind = "edit"
	KindRecolor Kind = "recolor"
)

// Action is one undoable edit. The set of implementations is closed:
// every variant carries enough data to apply both its forward and its
// inverse effect, so the stack never needs to consult entity state.
type Action interface {
	Kind() Kind
	isAction()
}

// Create records a newly created element. The full element is retained
// so a redo after an undo recreates it with the identical id.
type Create struct {
	Element models.Element
}

func (Create) Kind() Kind { return KindCreate }
func (Create) isAction()  {}

// Delete records a removed element, keeping the full element for the
// inverse (recreate) effect.
type Delete struct {
	Element models.Element
}

func (Delete) Kind() Kind { return KindDelete }
func (Delete) isAction()  {}

// Move records a committed drag from one point to another.
type Move struct {
	ID           models.ElementID
	FromX, FromY float64
	ToX, ToY     float64
}

func (Move) Kind() Kind { return KindMove }
func (Move) isAction()  {}

// Resize records a committed resize gesture.
type Resize struct {
	ID                     models.ElementID
	FromWidth, FromHeight  float64
	ToWidth, ToHeight      float64
	FromX, FromY, ToX, ToY float64
}

func (Resize) Kind() Kind { return KindResize }
func (Resize) isAction()  {}

// Edit records a content change on a text or note element.
type Edit struct {
	ID          models.ElementID
	FromContent json.RawMessage
	ToContent   json.RawMessage
}

func (Edit) Kind() Kind { return KindEdit }
func (Edit) isAction()  {}

// Recolor records a color change.
type Recolor struct {
	ID        models.ElementID
	FromColor string
	ToColor   string
}

func (Recolor) Kind() Kind { return KindRecolor }
func (Recolor) isAction()  {}

// Stack is the linear history. The cursor ranges over [-1, len-1]; -1
// means nothing to undo. Stack is not safe for concurrent use: it backs
// a single client session where one gesture is in flight at a time.
type Stack struct {
	actions []Action
	cursor  int
	limit   int
}

// NewStack returns an empty stack retaining at most limit actions.
// A limit of zero or less falls back to DefaultLimit.
func NewStack(limit int) *Stack {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Stack{cursor: -1, limit: limit}
}

// Push records a committed action. Any redo tail beyond the cursor is
// discarded first, then the oldest entries are dropped if the stack
// exceeds its limit.
func (s *Stack) Push(action Action) {
	s.actions = append(s.actions[:s.cursor+1], action)
	s.cursor = len(s.actions) - 1

	if over := len(s.actions) - s.limit; over > 0 {
		s.actions = s.actions[over:]
		s.cursor -= over
	}
}

// Undo returns the action at the cursor and steps back, or nil when
// there is nothing to undo. The caller applies the inverse effect.
func (s *Stack) Undo() Action {
	if s.cursor < 0 {
		return nil
	}
	action := s.actions[s.cursor]
	s.cursor--
	return action
}

// Redo steps the cursor forward and returns the action there, or nil
// when nothing was undone. The caller applies the forward effect.
func (s *Stack) Redo() Action {
	if s.cursor >= len(s.actions)-1 {
		return nil
	}
	s.cursor++
	return s.actions[s.cursor]
}

// Clear empties the stack, used when the whole canvas or board resets.
func (s *Stack) Clear() {
	s.actions = nil
	s.cursor = -1
}

// Len reports the number of retained actions.
func (s *Stack) Len() int { return len(s.actions) }

// CanUndo reports whether Undo would return an action.
func (s *Stack) CanUndo() bool { return s.cursor >= 0 }

// CanRedo reports whether Redo would return an action.
func (s *Stack) CanRedo() bool { return s.cursor < len(s.actions)-1 }
