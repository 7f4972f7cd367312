package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/target/catalog-admin/internal/adapters/sessionhub"
	domainauth "github.com/target/catalog-admin/internal/domain/auth"
	"github.com/target/catalog-admin/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.IdentityProvider   = (*FakeIdentityProvider)(nil)
	_ ports.ProfileStore       = (*MemoryProfileStore)(nil)
	_ ports.SessionPersistence = (*MemorySessionPersistence)(nil)
)

// ErrInvalidCredentials is returned by FakeIdentityProvider when the password does not match.
var ErrInvalidCredentials = errors.New("invalid_grant")

// FakeIdentityProvider simulates an identity provider. Func fields override the
// default behaviour; Emit pushes change-stream events to subscribers.
type FakeIdentityProvider struct {
	CurrentSessionFunc func(ctx context.Context) (*domainauth.Session, error)
	SignInFunc         func(ctx context.Context, email, password string) (*domainauth.Session, error)
	SignOutFunc        func(ctx context.Context) error

	// Password accepted by the default SignInWithPassword.
	Password string

	hub sessionhub.Hub

	mu      sync.Mutex
	current *domainauth.Session

	subscribes   atomic.Int32
	unsubscribes atomic.Int32
	signIns      atomic.Int32
	signOuts     atomic.Int32
}

// NewFakeIdentityProvider creates a provider with an optional current session.
func NewFakeIdentityProvider(current *domainauth.Session) *FakeIdentityProvider {
	return &FakeIdentityProvider{current: current, Password: "secret"}
}

// NewSession returns a session for userID valid for one hour.
func NewSession(userID, email string) *domainauth.Session {
	return &domainauth.Session{
		UserID:      userID,
		Email:       email,
		AccessToken: "token-" + userID,
		ExpiresAt:   time.Now().Add(time.Hour),
	}
}

func (f *FakeIdentityProvider) CurrentSession(ctx context.Context) (*domainauth.Session, error) {
	if f.CurrentSessionFunc != nil {
		return f.CurrentSessionFunc(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return nil, nil
	}
	cp := *f.current
	return &cp, nil
}

func (f *FakeIdentityProvider) Subscribe(h ports.SessionHandler) ports.Unsubscribe {
	f.subscribes.Add(1)
	unsub := f.hub.Subscribe(h)
	var once sync.Once
	return func() {
		once.Do(func() {
			f.unsubscribes.Add(1)
			unsub()
		})
	}
}

func (f *FakeIdentityProvider) SignInWithPassword(ctx context.Context, email, password string) (*domainauth.Session, error) {
	f.signIns.Add(1)
	if f.SignInFunc != nil {
		return f.SignInFunc(ctx, email, password)
	}
	if password != f.Password {
		return nil, ErrInvalidCredentials
	}
	sess := NewSession("user-"+email, email)
	f.SetCurrent(sess)
	f.Emit(domainauth.EventSignedIn, sess)
	return sess, nil
}

func (f *FakeIdentityProvider) SignOut(ctx context.Context) error {
	f.signOuts.Add(1)
	if f.SignOutFunc != nil {
		return f.SignOutFunc(ctx)
	}
	f.SetCurrent(nil)
	f.Emit(domainauth.EventSignedOut, nil)
	return nil
}

// SetCurrent replaces the session returned by the default CurrentSession.
func (f *FakeIdentityProvider) SetCurrent(sess *domainauth.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sess == nil {
		f.current = nil
		return
	}
	cp := *sess
	f.current = &cp
}

// Emit publishes an event to subscribers.
func (f *FakeIdentityProvider) Emit(kind domainauth.EventKind, sess *domainauth.Session) {
	f.hub.Publish(domainauth.SessionEvent{Kind: kind, Session: sess})
}

// Subscribers returns the number of active subscriptions.
func (f *FakeIdentityProvider) Subscribers() int { return f.hub.Len() }

// SubscribeCalls returns how many times Subscribe was called.
func (f *FakeIdentityProvider) SubscribeCalls() int { return int(f.subscribes.Load()) }

// UnsubscribeCalls returns how many subscriptions were released.
func (f *FakeIdentityProvider) UnsubscribeCalls() int { return int(f.unsubscribes.Load()) }

// SignInCalls returns how many times SignInWithPassword was called.
func (f *FakeIdentityProvider) SignInCalls() int { return int(f.signIns.Load()) }

// SignOutCalls returns how many times SignOut was called.
func (f *FakeIdentityProvider) SignOutCalls() int { return int(f.signOuts.Load()) }

// MemoryProfileStore is an in-memory ProfileStore for unit tests.
type MemoryProfileStore struct {
	// Optional failure injection.
	GetErr    error
	UpsertErr error
	// Optional artificial latency applied before each call; honours ctx.
	Delay time.Duration

	mu       sync.Mutex
	profiles map[string]domainauth.Profile
	gets     int
	upserts  int
}

// NewMemoryProfileStore creates a store seeded with profiles.
func NewMemoryProfileStore(seed ...domainauth.Profile) *MemoryProfileStore {
	m := &MemoryProfileStore{profiles: make(map[string]domainauth.Profile)}
	for _, p := range seed {
		m.profiles[p.ID] = p
	}
	return m
}

func (m *MemoryProfileStore) GetByID(ctx context.Context, id string) (*domainauth.Profile, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	p, ok := m.profiles[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *MemoryProfileStore) UpsertDefault(ctx context.Context, in ports.DefaultProfileInput) (*domainauth.Profile, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if m.UpsertErr != nil {
		return nil, m.UpsertErr
	}
	if p, ok := m.profiles[in.ID]; ok {
		return &p, nil
	}
	now := time.Now().UTC()
	p := domainauth.Profile{ID: in.ID, FullName: in.DisplayName, Role: in.Role, UpdatedAt: &now}
	m.profiles[in.ID] = p
	return &p, nil
}

// Put stores p, replacing any existing profile with the same id.
func (m *MemoryProfileStore) Put(p domainauth.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ID] = p
}

// GetCalls returns how many lookups were made.
func (m *MemoryProfileStore) GetCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gets
}

// UpsertCalls returns how many upserts were made.
func (m *MemoryProfileStore) UpsertCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upserts
}

func (m *MemoryProfileStore) wait(ctx context.Context) error {
	if m.Delay <= 0 {
		return nil
	}
	t := time.NewTimer(m.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// MemorySessionPersistence keeps one session in memory.
type MemorySessionPersistence struct {
	mu   sync.Mutex
	sess *domainauth.Session
}

// NewMemorySessionPersistence creates an empty persistence.
func NewMemorySessionPersistence() *MemorySessionPersistence {
	return &MemorySessionPersistence{}
}

func (m *MemorySessionPersistence) Load(_ context.Context) (*domainauth.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil || m.sess.Expired(time.Now()) {
		return nil, nil
	}
	cp := *m.sess
	return &cp, nil
}

func (m *MemorySessionPersistence) Save(_ context.Context, sess domainauth.Session) error {
	if sess.UserID == "" {
		return errors.New("session user id cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = &sess
	return nil
}

func (m *MemorySessionPersistence) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = nil
	return nil
}
