package devauth

// Package devauth provides a simple, config-driven IdentityProvider for local development.

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/target/catalog-admin/internal/adapters/sessionhub"
	domainauth "github.com/target/catalog-admin/internal/domain/auth"
	apperrors "github.com/target/catalog-admin/internal/errors"
	"github.com/target/catalog-admin/internal/ports"
)

// Config controls the dev auth provider behavior.
// All fields are required except SessionDuration, Persistence and Now.
type Config struct {
	UserID          string
	Email           string
	Password        string
	SessionDuration time.Duration // default 8h when zero
	Persistence     ports.SessionPersistence
	Now             func() time.Time
}

// Provider implements ports.IdentityProvider for a single configured account.
// Tokens are random uuids and carry no claims.
type Provider struct {
	userID          string
	email           string
	password        []byte
	sessionDuration time.Duration
	now             func() time.Time

	tracker *sessionhub.Tracker
}

var _ ports.IdentityProvider = (*Provider)(nil)

// NewProvider constructs a dev auth provider from Config.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.UserID == "" {
		return nil, errors.New("dev auth: UserID is required")
	}
	if cfg.Email == "" {
		return nil, errors.New("dev auth: Email is required")
	}
	if cfg.Password == "" {
		return nil, errors.New("dev auth: Password is required")
	}
	dur := cfg.SessionDuration
	if dur == 0 {
		dur = 8 * time.Hour
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Provider{
		userID:          cfg.UserID,
		email:           cfg.Email,
		password:        []byte(cfg.Password),
		sessionDuration: dur,
		now:             now,
		tracker:         sessionhub.NewTracker(cfg.Persistence, now),
	}, nil
}

// CurrentSession returns the active dev session, or nil.
func (p *Provider) CurrentSession(ctx context.Context) (*domainauth.Session, error) {
	sess, err := p.tracker.Current(ctx)
	if err != nil {
		return nil, apperrors.ProviderError(err, "load dev session")
	}
	return sess, nil
}

// Subscribe registers h for session changes.
func (p *Provider) Subscribe(h ports.SessionHandler) ports.Unsubscribe {
	return p.tracker.Subscribe(h)
}

// Observe applies a session change made by another process sharing the persistence.
func (p *Provider) Observe(ev domainauth.SessionEvent) {
	p.tracker.Observe(ev)
}

// SignInWithPassword accepts only the configured account. Email matching is case-insensitive.
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*domainauth.Session, error) {
	emailOK := strings.EqualFold(strings.TrimSpace(email), p.email)
	passOK := subtle.ConstantTimeCompare([]byte(password), p.password) == 1
	if !emailOK || !passOK {
		return nil, apperrors.AuthError(nil, "invalid_grant", "invalid login credentials")
	}

	sess := domainauth.Session{
		UserID:       p.userID,
		Email:        p.email,
		AccessToken:  uuid.NewString(),
		RefreshToken: uuid.NewString(),
		ExpiresAt:    p.now().Add(p.sessionDuration),
	}
	if err := p.tracker.Set(ctx, domainauth.EventSignedIn, sess); err != nil {
		return nil, apperrors.AuthError(err, "", "persist dev session")
	}
	out := sess
	return &out, nil
}

// SignOut clears the dev session.
func (p *Provider) SignOut(ctx context.Context) error {
	if err := p.tracker.Clear(ctx); err != nil {
		return apperrors.AuthError(err, "", "clear dev session")
	}
	return nil
}
