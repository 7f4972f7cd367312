package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// AuthMode represents the identity provider the application signs users in with.
type AuthMode string

const (
	// AuthModeOIDC uses an OIDC issuer and the OAuth2 password grant.
	AuthModeOIDC AuthMode = "oidc"
	// AuthModeMock uses a single configured dev account (for development only).
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "oidc", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: oidc, mock)", v)
	}
}

// OIDCConfig contains OIDC issuer and client configuration.
type OIDCConfig struct {
	ClientID     string `env:"CLIENT_ID"     envDefault:"catalog-admin"`
	ClientSecret string `env:"CLIENT_SECRET"`
	Scope        string `env:"SCOPE"         envDefault:"openid email offline_access"`
	DiscoveryURL string `env:"DISCOVERY_URL"`
	// EmailClaim is a JMESPath expression evaluated against the ID token claims.
	EmailClaim string `env:"EMAIL_CLAIM" envDefault:"email"`
	// RefreshSkew is how long before expiry the refresher renews tokens.
	RefreshSkew time.Duration `env:"REFRESH_SKEW" envDefault:"1m"`
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`
}

// DevAuthConfig controls the dev account used when AUTH_MODE=mock.
type DevAuthConfig struct {
	UserID          string        `env:"USER_ID"          envDefault:"dev-user"`
	Email           string        `env:"EMAIL"            envDefault:"dev@example.com"`
	Password        string        `env:"PASSWORD"         envDefault:"dev"`
	SessionDuration time.Duration `env:"SESSION_DURATION" envDefault:"8h"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which identity provider to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"oidc"`

	// OIDC configuration (used when Mode=oidc).
	OIDC OIDCConfig `envPrefix:"OIDC_"`

	// DevAuth configuration (used when Mode=mock).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`
}

// Sanitize trims values and restores defaults for non-positive durations.
func (a *AuthConfig) Sanitize() {
	a.OIDC.DiscoveryURL = strings.TrimSpace(a.OIDC.DiscoveryURL)
	a.OIDC.EmailClaim = strings.TrimSpace(a.OIDC.EmailClaim)
	if a.OIDC.EmailClaim == "" {
		a.OIDC.EmailClaim = "email"
	}
	if a.OIDC.RefreshSkew <= 0 {
		a.OIDC.RefreshSkew = time.Minute
	}
	if a.OIDC.HTTPTimeout <= 0 {
		a.OIDC.HTTPTimeout = 30 * time.Second
	}
	if a.DevAuth.SessionDuration <= 0 {
		a.DevAuth.SessionDuration = 8 * time.Hour
	}
}

// Validate checks the settings required by the selected mode. The mock provider
// is refused outside dev mode.
func (a *AuthConfig) Validate(isDev bool) error {
	switch a.Mode {
	case AuthModeOIDC:
		if a.OIDC.DiscoveryURL == "" {
			return errors.New("OIDC_DISCOVERY_URL is required when AUTH_MODE=oidc")
		}
		if a.OIDC.ClientID == "" {
			return errors.New("OIDC_CLIENT_ID is required when AUTH_MODE=oidc")
		}
	case AuthModeMock:
		if !isDev {
			return errors.New("AUTH_MODE=mock requires DEV=true")
		}
	default:
		return fmt.Errorf("unsupported AUTH_MODE %q", a.Mode)
	}
	return nil
}
