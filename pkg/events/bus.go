package events

import "sync"

// Handler receives the payload of one event.
type Handler func(payload any)

// Bus dispatches events synchronously to the handlers registered for
// their kind, in registration order. Emit runs on the caller's
// goroutine, so handlers must not block.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Kind][]Handler
}

func NewBus() *Bus { return &Bus{handlers: make(map[Kind][]Handler)} }

// On registers h for kind k.
func (b *Bus) On(k Kind, h Handler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	b.handlers[k] = append(b.handlers[k], h)
	b.mu.Unlock()
}

// Emit invokes every handler registered for k with payload.
func (b *Bus) Emit(k Kind, payload any) {
	if b == nil {
		return
	}
	b.mu.RLock()
	hs := make([]Handler, len(b.handlers[k]))
	copy(hs, b.handlers[k])
	b.mu.RUnlock()

	for _, h := range hs {
		h(payload)
	}
}
