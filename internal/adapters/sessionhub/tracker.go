package sessionhub

import (
	"context"
	"sync"
	"time"

	domainauth "github.com/target/catalog-admin/internal/domain/auth"
	"github.com/target/catalog-admin/internal/ports"
)

// Tracker holds a provider's current session, mirrors it into optional persistence
// and publishes every change on its Hub.
type Tracker struct {
	Hub

	persistence ports.SessionPersistence
	now         func() time.Time

	mu      sync.Mutex
	current *domainauth.Session
	loaded  bool
}

// NewTracker creates a Tracker. persistence may be nil for process-local sessions.
func NewTracker(persistence ports.SessionPersistence, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{persistence: persistence, now: now}
}

// Current returns the active session, rehydrating it from persistence on first use.
// Expired sessions are reported as absent.
func (t *Tracker) Current(ctx context.Context) (*domainauth.Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.loaded && t.persistence != nil {
		sess, err := t.persistence.Load(ctx)
		if err != nil {
			return nil, err
		}
		t.current = sess
	}
	t.loaded = true

	if t.current == nil || t.current.Expired(t.now()) {
		return nil, nil
	}
	cp := *t.current
	return &cp, nil
}

// Set stores sess and publishes kind.
func (t *Tracker) Set(ctx context.Context, kind domainauth.EventKind, sess domainauth.Session) error {
	if t.persistence != nil {
		if err := t.persistence.Save(ctx, sess); err != nil {
			return err
		}
	}
	t.mu.Lock()
	t.current = &sess
	t.loaded = true
	t.mu.Unlock()

	t.Publish(domainauth.SessionEvent{Kind: kind, Session: &sess})
	return nil
}

// Clear drops the session and publishes signed_out.
func (t *Tracker) Clear(ctx context.Context) error {
	if t.persistence != nil {
		if err := t.persistence.Clear(ctx); err != nil {
			return err
		}
	}
	t.mu.Lock()
	t.current = nil
	t.loaded = true
	t.mu.Unlock()

	t.Publish(domainauth.SessionEvent{Kind: domainauth.EventSignedOut})
	return nil
}

// Observe applies a change made elsewhere (e.g. another process sharing the
// persistence) and republishes it to local subscribers.
func (t *Tracker) Observe(ev domainauth.SessionEvent) {
	t.mu.Lock()
	if ev.Session != nil {
		cp := *ev.Session
		t.current = &cp
	} else {
		t.current = nil
	}
	t.loaded = true
	t.mu.Unlock()

	t.Publish(ev)
}
