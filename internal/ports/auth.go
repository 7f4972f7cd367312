package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters and internal/data; orchestration in internal/service.

import (
	"context"

	domainauth "github.com/target/catalog-admin/internal/domain/auth"
)

// Unsubscribe releases a change-stream subscription. Calling it more than once is a no-op.
type Unsubscribe func()

// SessionHandler receives session change events pushed by an IdentityProvider.
type SessionHandler func(domainauth.SessionEvent)

// IdentityProvider is the external session/identity service.
type IdentityProvider interface {
	// CurrentSession returns the active session, or nil when signed out.
	CurrentSession(ctx context.Context) (*domainauth.Session, error)

	// Subscribe registers h for session change events until the returned Unsubscribe is called.
	Subscribe(h SessionHandler) Unsubscribe

	// SignInWithPassword exchanges credentials for a new session.
	SignInWithPassword(ctx context.Context, email, password string) (*domainauth.Session, error)

	// SignOut invalidates the active session.
	SignOut(ctx context.Context) error
}

// DefaultProfileInput carries the values for a profile created on first sign-in.
type DefaultProfileInput struct {
	ID          string
	DisplayName string
	Role        domainauth.Role
}

// ProfileStore looks up and lazily creates user profiles.
type ProfileStore interface {
	// GetByID returns the profile for id, or nil when no profile exists.
	GetByID(ctx context.Context, id string) (*domainauth.Profile, error)

	// UpsertDefault creates the profile when absent and returns the stored row.
	UpsertDefault(ctx context.Context, in DefaultProfileInput) (*domainauth.Profile, error)
}

// SessionPersistence stores the provider's current session between process restarts.
type SessionPersistence interface {
	Load(ctx context.Context) (*domainauth.Session, error)
	Save(ctx context.Context, sess domainauth.Session) error
	Clear(ctx context.Context) error
}
