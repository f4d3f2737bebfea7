package client

import (
	"sync"

	"github.com/plankhq/plank/pkg/realtime"
)

// Handler consumes one event delivered by the bus.
type Handler func(realtime.Envelope)

// Bus is the single subscription surface of the sync client. Instead of
// threading one callback per event kind through every layer, consumers
// register handlers by event name and the read loop publishes to them.
type Bus struct {
	mu       sync.Mutex
	handlers map[string]map[int]Handler
	nextID   int
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[string]map[int]Handler)}
}

// Subscribe registers a handler for an event name and returns its
// unsubscribe function. Handlers run on the read-loop goroutine, so
// they must not block.
func (b *Bus) Subscribe(event string, fn Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[event] == nil {
		b.handlers[event] = make(map[int]Handler)
	}
	id := b.nextID
	b.nextID++
	b.handlers[event][id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[event], id)
	}
}

// Publish delivers an envelope to every handler of its event name.
func (b *Bus) Publish(env realtime.Envelope) {
	b.mu.Lock()
	fns := make([]Handler, 0, len(b.handlers[env.Event]))
	for _, fn := range b.handlers[env.Event] {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(env)
	}
}
