// Package sessionhub fans session change events out to in-process subscribers.
// Identity providers embed a Hub to implement the Subscribe half of ports.IdentityProvider.
package sessionhub

import (
	"sync"

	domainauth "github.com/target/catalog-admin/internal/domain/auth"
	"github.com/target/catalog-admin/internal/ports"
)

// Hub is a registry of session handlers. The zero value is ready to use.
type Hub struct {
	mu       sync.Mutex
	nextID   uint64
	order    []uint64
	handlers map[uint64]ports.SessionHandler
}

// Subscribe registers h. The returned Unsubscribe is idempotent.
func (h *Hub) Subscribe(handler ports.SessionHandler) ports.Unsubscribe {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.handlers == nil {
		h.handlers = make(map[uint64]ports.SessionHandler)
	}
	id := h.nextID
	h.nextID++
	h.handlers[id] = handler
	h.order = append(h.order, id)

	var once sync.Once
	return func() {
		once.Do(func() { h.remove(id) })
	}
}

// Publish delivers ev to every current subscriber in registration order.
// Handlers run on the caller's goroutine and must not block.
func (h *Hub) Publish(ev domainauth.SessionEvent) {
	for _, handler := range h.snapshot() {
		var sess *domainauth.Session
		if ev.Session != nil {
			cp := *ev.Session
			sess = &cp
		}
		handler(domainauth.SessionEvent{Kind: ev.Kind, Session: sess})
	}
}

// Len returns the number of active subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handlers)
}

func (h *Hub) snapshot() []ports.SessionHandler {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]ports.SessionHandler, 0, len(h.order))
	for _, id := range h.order {
		out = append(out, h.handlers[id])
	}
	return out
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.handlers, id)
	for i, v := range h.order {
		if v == id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}
