package oidc

// Package oidc provides an OIDC/OAuth2 identity provider using the resource-owner
// password grant for credential sign-in.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	jmespath "github.com/jmespath-community/go-jmespath"
	"github.com/target/catalog-admin/internal/adapters/sessionhub"
	domainauth "github.com/target/catalog-admin/internal/domain/auth"
	apperrors "github.com/target/catalog-admin/internal/errors"
	"github.com/target/catalog-admin/internal/ports"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/oauth2"
)

const (
	defaultEmailClaim  = "email"
	defaultRefreshSkew = time.Minute
	idlePollInterval   = time.Minute
)

var _ ports.IdentityProvider = (*Provider)(nil)

// Provider implements ports.IdentityProvider against an OIDC issuer.
type Provider struct {
	config      *oauth2.Config
	httpClient  *http.Client
	verifier    *gooidc.IDTokenVerifier
	emailClaim  string
	refreshSkew time.Duration
	now         func() time.Time
	logger      *slog.Logger

	tracker *sessionhub.Tracker
}

// ProviderConfig holds configuration for the OIDC provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	Scope        string
	DiscoveryURL string
	// EmailClaim is a JMESPath expression evaluated against the ID token claims.
	EmailClaim  string
	RefreshSkew time.Duration
	HTTPClient  *http.Client // Optional, defaults to NewHTTPClient
	Persistence ports.SessionPersistence
	Logger      *slog.Logger
	Now         func() time.Time
}

// DiscoveryDocument represents the OIDC discovery document.
type DiscoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
	JwksURI               string `json:"jwks_uri"`
}

// NewHTTPClient returns a client with a cookie jar scoped by the public suffix
// list, for issuers that pin sessions with cookies.
func NewHTTPClient(timeout time.Duration) *http.Client {
	client := &http.Client{Timeout: timeout}
	if jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List}); err == nil {
		client.Jar = jar
	}
	return client
}

// NewProvider performs discovery and creates a Provider.
func NewProvider(ctx context.Context, config ProviderConfig) (*Provider, error) {
	if config.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if config.DiscoveryURL == "" {
		return nil, errors.New("discovery URL is required")
	}
	emailClaim := strings.TrimSpace(config.EmailClaim)
	if emailClaim == "" {
		emailClaim = defaultEmailClaim
	}
	if _, err := jmespath.Compile(emailClaim); err != nil {
		return nil, fmt.Errorf("invalid email claim expression: %w", err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = NewHTTPClient(30 * time.Second)
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}
	skew := config.RefreshSkew
	if skew <= 0 {
		skew = defaultRefreshSkew
	}

	issuer := strings.TrimSuffix(config.DiscoveryURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	op, err := gooidc.NewProvider(gooidc.ClientContext(ctx, httpClient), issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}

	scopes := strings.Fields(config.Scope)
	if len(scopes) == 0 {
		scopes = []string{gooidc.ScopeOpenID, "email", gooidc.ScopeOfflineAccess}
	}

	return &Provider{
		config: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Scopes:       scopes,
			Endpoint:     op.Endpoint(),
		},
		httpClient:  httpClient,
		verifier:    op.Verifier(&gooidc.Config{ClientID: config.ClientID, Now: now}),
		emailClaim:  emailClaim,
		refreshSkew: skew,
		now:         now,
		logger:      logger.With("component", "oidc_provider"),
		tracker:     sessionhub.NewTracker(config.Persistence, now),
	}, nil
}

// CurrentSession returns the persisted session, or nil when signed out or expired.
func (p *Provider) CurrentSession(ctx context.Context) (*domainauth.Session, error) {
	return p.tracker.Current(ctx)
}

// Subscribe registers h for session changes.
func (p *Provider) Subscribe(h ports.SessionHandler) ports.Unsubscribe {
	return p.tracker.Subscribe(h)
}

// Observe applies a session change made by another process sharing the persistence.
func (p *Provider) Observe(ev domainauth.SessionEvent) {
	p.tracker.Observe(ev)
}

// SignInWithPassword exchanges credentials for tokens using the password grant.
// Token endpoint rejections become AuthErrors carrying the OAuth2 error code as reason.
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*domainauth.Session, error) {
	tok, err := p.config.PasswordCredentialsToken(p.clientContext(ctx), email, password)
	if err != nil {
		return nil, tokenError(err, "sign in rejected")
	}

	sess, err := p.sessionFromToken(ctx, tok, "")
	if err != nil {
		return nil, apperrors.AuthError(err, "invalid_token", "sign in returned an unusable token")
	}
	if err := p.tracker.Set(ctx, domainauth.EventSignedIn, *sess); err != nil {
		return nil, apperrors.AuthError(err, "", "persist session")
	}
	p.logger.InfoContext(ctx, "signed in", "user_id", sess.UserID)
	return sess, nil
}

// SignOut forgets the local session and notifies subscribers.
func (p *Provider) SignOut(ctx context.Context) error {
	if err := p.tracker.Clear(ctx); err != nil {
		return apperrors.AuthError(err, "", "clear session")
	}
	return nil
}

// Refresh exchanges the refresh token for new tokens and emits token_refreshed.
// When the issuer rejects the refresh token the session is cleared.
func (p *Provider) Refresh(ctx context.Context) error {
	cur, err := p.tracker.Current(ctx)
	if err != nil {
		return apperrors.ProviderError(err, "load session")
	}
	if cur == nil || cur.RefreshToken == "" {
		return nil
	}

	src := p.config.TokenSource(p.clientContext(ctx), &oauth2.Token{
		RefreshToken: cur.RefreshToken,
		Expiry:       p.now().Add(-time.Second),
	})
	tok, err := src.Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			p.logger.WarnContext(ctx, "refresh rejected, signing out", "user_id", cur.UserID, "reason", re.ErrorCode)
			if clearErr := p.tracker.Clear(ctx); clearErr != nil {
				return errors.Join(tokenError(err, "refresh rejected"), clearErr)
			}
		}
		return tokenError(err, "refresh failed")
	}

	sess, err := p.sessionFromToken(ctx, tok, cur.RefreshToken)
	if err != nil {
		return apperrors.AuthError(err, "invalid_token", "refresh returned an unusable token")
	}
	if sess.UserID != cur.UserID {
		return apperrors.AuthError(nil, "subject_changed", "refresh returned a different subject")
	}
	return p.tracker.Set(ctx, domainauth.EventTokenRefreshed, *sess)
}

// RunRefresher refreshes the session ahead of expiry until ctx is done.
func (p *Provider) RunRefresher(ctx context.Context) error {
	for {
		wait := idlePollInterval
		if cur, err := p.tracker.Current(ctx); err == nil && cur != nil && cur.RefreshToken != "" {
			wait = cur.ExpiresAt.Add(-p.refreshSkew).Sub(p.now())
		}
		if wait < time.Second {
			wait = time.Second
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		if err := p.Refresh(ctx); err != nil {
			p.logger.WarnContext(ctx, "token refresh failed", "error", err, "reason", apperrors.GetReason(err))
		}
	}
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

// sessionFromToken verifies the ID token and maps its claims. fallbackRefresh is
// kept when the issuer does not rotate refresh tokens.
func (p *Provider) sessionFromToken(ctx context.Context, tok *oauth2.Token, fallbackRefresh string) (*domainauth.Session, error) {
	rawID, err := getIDTokenFromToken(tok)
	if err != nil {
		return nil, err
	}
	idTok, err := p.verifier.Verify(gooidc.ClientContext(ctx, p.httpClient), rawID)
	if err != nil {
		return nil, fmt.Errorf("verify id_token: %w", err)
	}

	var claims map[string]any
	if claimsErr := idTok.Claims(&claims); claimsErr != nil {
		return nil, fmt.Errorf("parse id_token claims: %w", claimsErr)
	}
	email, err := claimString(p.emailClaim, claims)
	if err != nil {
		return nil, err
	}

	expiresAt := tok.Expiry
	if expiresAt.IsZero() {
		expiresAt = idTok.Expiry
	}
	refresh := tok.RefreshToken
	if refresh == "" {
		refresh = fallbackRefresh
	}

	return &domainauth.Session{
		UserID:       idTok.Subject,
		Email:        email,
		AccessToken:  tok.AccessToken,
		RefreshToken: refresh,
		IDToken:      rawID,
		ExpiresAt:    expiresAt,
	}, nil
}

// claimString evaluates expr against claims and requires a string result.
func claimString(expr string, claims map[string]any) (string, error) {
	v, err := jmespath.Search(expr, claims)
	if err != nil {
		return "", fmt.Errorf("evaluate claim %q: %w", expr, err)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("claim %q missing or not a string", expr)
	}
	return s, nil
}

// tokenError converts a token endpoint failure into an AuthError.
func tokenError(err error, message string) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		reason := re.ErrorCode
		if reason == "" {
			reason = "token_endpoint_error"
		}
		return apperrors.AuthError(err, reason, message)
	}
	return apperrors.AuthError(apperrors.FromContext(err), "", message)
}

// getIDTokenFromToken extracts the id_token from oauth2.Token.
func getIDTokenFromToken(tok *oauth2.Token) (string, error) {
	if tok == nil {
		return "", errors.New("nil token")
	}
	raw := tok.Extra("id_token")
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", errors.New("missing id_token in token response")
	}
	return s, nil
}
