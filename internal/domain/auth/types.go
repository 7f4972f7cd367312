package auth

// Package auth contains domain-level types for sessions, profiles and the
// reconciled auth state. It is pure and free of framework/adapter concerns.

import (
	"fmt"
	"strings"
	"time"
)

// Role represents an application's authorization tier.
// The zero value RoleNone means "no role resolved" and grants nothing.
type Role string

const (
	RoleNone     Role = ""
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
)

// DefaultRole is assigned to profiles created on first sign-in.
const DefaultRole = RoleEmployee

// ParseRole validates a raw role value against the closed set of roles.
func ParseRole(raw string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(raw))); r {
	case RoleAdmin, RoleEmployee:
		return r, nil
	default:
		return RoleNone, fmt.Errorf("unknown role %q", raw)
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool { return r == RoleAdmin || r == RoleEmployee }

// IsAdmin reports whether r grants elevated privileges.
func (r Role) IsAdmin() bool { return r == RoleAdmin }

// Session is the provider-issued proof of authentication for a subject.
// The store only ever holds a read-only copy.
type Session struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Identity derives the minimal identity record carried by the session.
func (s Session) Identity() Identity {
	return Identity{UserID: s.UserID, Email: s.Email}
}

// Identity is the minimal identity record derived from a Session.
type Identity struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
}

// Profile extends a subject with display metadata and a role.
type Profile struct {
	ID        string     `json:"id"`
	FullName  string     `json:"full_name"`
	Role      Role       `json:"role"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// EventKind names the reason a session change was pushed by the provider.
type EventKind string

const (
	EventInitialSession EventKind = "initial_session"
	EventSignedIn       EventKind = "signed_in"
	EventSignedOut      EventKind = "signed_out"
	EventTokenRefreshed EventKind = "token_refreshed"
	EventUserUpdated    EventKind = "user_updated"
)

// SessionEvent is one entry of the provider's change stream.
// Session is nil when the event carries no session.
type SessionEvent struct {
	Kind    EventKind `json:"kind"`
	Session *Session  `json:"session,omitempty"`
}

// State is the externally visible snapshot of the session store.
// Profile and Role are only set while Session is set.
type State struct {
	Session  *Session  `json:"session"`
	Identity *Identity `json:"user"`
	Profile  *Profile  `json:"profile"`
	Role     Role      `json:"role"`
	Loading  bool      `json:"loading"`
}

// Authenticated reports whether a session is present.
func (s State) Authenticated() bool { return s.Session != nil }

// Clone returns a deep copy so callers cannot mutate the store's snapshot.
func (s State) Clone() State {
	out := State{Role: s.Role, Loading: s.Loading}
	if s.Session != nil {
		sess := *s.Session
		out.Session = &sess
	}
	if s.Identity != nil {
		id := *s.Identity
		out.Identity = &id
	}
	if s.Profile != nil {
		p := *s.Profile
		if p.UpdatedAt != nil {
			ts := *p.UpdatedAt
			p.UpdatedAt = &ts
		}
		out.Profile = &p
	}
	return out
}
