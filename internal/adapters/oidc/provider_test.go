package oidc

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/target/catalog-admin/internal/domain/auth"
	apperrors "github.com/target/catalog-admin/internal/errors"
	mocks "github.com/target/catalog-admin/internal/mocks/auth"
)

const (
	testClientID = "test-client"
	testPassword = "secret"
)

// fakeIssuer serves discovery, JWKS and a token endpoint supporting the password
// and refresh_token grants.
type fakeIssuer struct {
	t      *testing.T
	server *httptest.Server
	key    *rsa.PrivateKey

	mu        sync.Mutex
	claims    map[string]any
	refreshes int
	reject    bool
}

func newFakeIssuer(t *testing.T) *fakeIssuer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	fi := &fakeIssuer{t: t, key: key, claims: map[string]any{"email": "ada@example.com"}}
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", fi.discovery)
	mux.HandleFunc("/jwks", fi.jwks)
	mux.HandleFunc("/token", fi.token)
	fi.server = httptest.NewServer(mux)
	t.Cleanup(fi.server.Close)
	return fi
}

func (fi *fakeIssuer) discovery(w http.ResponseWriter, _ *http.Request) {
	_ = json.NewEncoder(w).Encode(DiscoveryDocument{
		Issuer:                fi.server.URL,
		AuthorizationEndpoint: fi.server.URL + "/auth",
		TokenEndpoint:         fi.server.URL + "/token",
		JwksURI:               fi.server.URL + "/jwks",
	})
}

func (fi *fakeIssuer) jwks(w http.ResponseWriter, _ *http.Request) {
	set := jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
		Key:       &fi.key.PublicKey,
		KeyID:     "k1",
		Algorithm: string(jose.RS256),
		Use:       "sig",
	}}}
	_ = json.NewEncoder(w).Encode(set)
}

func (fi *fakeIssuer) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	fi.mu.Lock()
	reject := fi.reject
	fi.mu.Unlock()

	switch r.PostForm.Get("grant_type") {
	case "password":
		if reject || r.PostForm.Get("password") != testPassword {
			fi.fail(w, "invalid_grant")
			return
		}
		fi.issue(w, "at-1", "rt-1")
	case "refresh_token":
		if reject || r.PostForm.Get("refresh_token") != "rt-1" {
			fi.fail(w, "invalid_grant")
			return
		}
		fi.mu.Lock()
		fi.refreshes++
		n := fi.refreshes
		fi.mu.Unlock()
		fi.issue(w, "at-refreshed-"+strconv.Itoa(n), "")
	default:
		fi.fail(w, "unsupported_grant_type")
	}
}

func (fi *fakeIssuer) fail(w http.ResponseWriter, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
}

func (fi *fakeIssuer) issue(w http.ResponseWriter, access, refresh string) {
	now := time.Now()
	claims := map[string]any{
		"iss": fi.server.URL,
		"aud": testClientID,
		"sub": "sub-1",
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
	fi.mu.Lock()
	for k, v := range fi.claims {
		claims[k] = v
	}
	fi.mu.Unlock()

	body := map[string]any{
		"access_token": access,
		"token_type":   "Bearer",
		"expires_in":   3600,
		"id_token":     fi.sign(claims),
	}
	if refresh != "" {
		body["refresh_token"] = refresh
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func (fi *fakeIssuer) sign(claims map[string]any) string {
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: fi.key},
		(&jose.SignerOptions{}).WithType("JWT").WithHeader("kid", "k1"),
	)
	require.NoError(fi.t, err)
	payload, err := json.Marshal(claims)
	require.NoError(fi.t, err)
	jws, err := signer.Sign(payload)
	require.NoError(fi.t, err)
	raw, err := jws.CompactSerialize()
	require.NoError(fi.t, err)
	return raw
}

func (fi *fakeIssuer) setClaims(claims map[string]any) {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	fi.claims = claims
}

// rejectGrants makes every later token request fail with invalid_grant.
func (fi *fakeIssuer) rejectGrants() {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	fi.reject = true
}

func newTestProvider(t *testing.T, fi *fakeIssuer, mutate func(*ProviderConfig)) (*Provider, *mocks.MemorySessionPersistence) {
	t.Helper()
	persistence := mocks.NewMemorySessionPersistence()
	cfg := ProviderConfig{
		ClientID:     testClientID,
		ClientSecret: "client-secret",
		DiscoveryURL: fi.server.URL + "/.well-known/openid-configuration",
		HTTPClient:   fi.server.Client(),
		Persistence:  persistence,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	p, err := NewProvider(context.Background(), cfg)
	require.NoError(t, err)
	return p, persistence
}

func recordEvents(p *Provider) (func() []domainauth.EventKind, func()) {
	var mu sync.Mutex
	var kinds []domainauth.EventKind
	unsub := p.Subscribe(func(ev domainauth.SessionEvent) {
		mu.Lock()
		defer mu.Unlock()
		kinds = append(kinds, ev.Kind)
	})
	return func() []domainauth.EventKind {
		mu.Lock()
		defer mu.Unlock()
		return append([]domainauth.EventKind(nil), kinds...)
	}, unsub
}

func TestNewProvider_Discovery(t *testing.T) {
	fi := newFakeIssuer(t)
	p, _ := newTestProvider(t, fi, nil)

	assert.Equal(t, fi.server.URL+"/token", p.config.Endpoint.TokenURL)
	assert.Equal(t, fi.server.URL+"/auth", p.config.Endpoint.AuthURL)
	assert.Contains(t, p.config.Scopes, "openid")
	assert.Equal(t, defaultEmailClaim, p.emailClaim)
	assert.Equal(t, defaultRefreshSkew, p.refreshSkew)
}

func TestNewProvider_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		config ProviderConfig
		errMsg string
	}{
		{
			name:   "missing client ID",
			config: ProviderConfig{DiscoveryURL: "http://example.com"},
			errMsg: "client ID is required",
		},
		{
			name:   "missing discovery URL",
			config: ProviderConfig{ClientID: "client"},
			errMsg: "discovery URL is required",
		},
		{
			name:   "bad email claim expression",
			config: ProviderConfig{ClientID: "client", DiscoveryURL: "http://example.com", EmailClaim: "a.["},
			errMsg: "invalid email claim expression",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProvider(context.Background(), tt.config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestProvider_SignInWithPassword(t *testing.T) {
	fi := newFakeIssuer(t)
	p, persistence := newTestProvider(t, fi, nil)
	events, unsub := recordEvents(p)
	defer unsub()

	sess, err := p.SignInWithPassword(context.Background(), "ada@example.com", testPassword)
	require.NoError(t, err)
	assert.Equal(t, "sub-1", sess.UserID)
	assert.Equal(t, "ada@example.com", sess.Email)
	assert.Equal(t, "at-1", sess.AccessToken)
	assert.Equal(t, "rt-1", sess.RefreshToken)
	assert.NotEmpty(t, sess.IDToken)
	assert.True(t, sess.ExpiresAt.After(time.Now()))

	stored, err := persistence.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "sub-1", stored.UserID)

	cur, err := p.CurrentSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, []domainauth.EventKind{domainauth.EventSignedIn}, events())
}

func TestProvider_SignInWithPassword_Rejected(t *testing.T) {
	fi := newFakeIssuer(t)
	p, _ := newTestProvider(t, fi, nil)
	events, unsub := recordEvents(p)
	defer unsub()

	_, err := p.SignInWithPassword(context.Background(), "ada@example.com", "wrong")
	require.Error(t, err)
	assert.True(t, apperrors.IsAuth(err))
	assert.Equal(t, "invalid_grant", apperrors.GetReason(err))
	assert.Empty(t, events())

	cur, err := p.CurrentSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, cur)
}

func TestProvider_EmailClaimExpression(t *testing.T) {
	fi := newFakeIssuer(t)
	fi.setClaims(map[string]any{"profile": map[string]any{"mail": "nested@example.com"}})
	p, _ := newTestProvider(t, fi, func(c *ProviderConfig) { c.EmailClaim = "profile.mail" })

	sess, err := p.SignInWithPassword(context.Background(), "nested@example.com", testPassword)
	require.NoError(t, err)
	assert.Equal(t, "nested@example.com", sess.Email)
}

func TestProvider_MissingEmailClaim(t *testing.T) {
	fi := newFakeIssuer(t)
	fi.setClaims(map[string]any{})
	p, _ := newTestProvider(t, fi, nil)

	_, err := p.SignInWithPassword(context.Background(), "ada@example.com", testPassword)
	require.Error(t, err)
	assert.True(t, apperrors.IsAuth(err))
	assert.Equal(t, "invalid_token", apperrors.GetReason(err))
}

func TestProvider_RefreshEmitsTokenRefreshed(t *testing.T) {
	fi := newFakeIssuer(t)
	p, _ := newTestProvider(t, fi, nil)
	_, err := p.SignInWithPassword(context.Background(), "ada@example.com", testPassword)
	require.NoError(t, err)
	events, unsub := recordEvents(p)
	defer unsub()

	require.NoError(t, p.Refresh(context.Background()))

	cur, err := p.CurrentSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, "at-refreshed-1", cur.AccessToken)
	assert.Equal(t, "rt-1", cur.RefreshToken, "refresh token is kept when not rotated")
	assert.Equal(t, []domainauth.EventKind{domainauth.EventTokenRefreshed}, events())
}

func TestProvider_RefreshRejectedSignsOut(t *testing.T) {
	fi := newFakeIssuer(t)
	p, persistence := newTestProvider(t, fi, nil)
	_, err := p.SignInWithPassword(context.Background(), "ada@example.com", testPassword)
	require.NoError(t, err)
	events, unsub := recordEvents(p)
	defer unsub()

	fi.rejectGrants()
	err = p.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, "invalid_grant", apperrors.GetReason(err))

	cur, err := p.CurrentSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, cur)
	stored, err := persistence.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, stored)
	assert.Equal(t, []domainauth.EventKind{domainauth.EventSignedOut}, events())
}

func TestProvider_RefreshWithoutSessionIsNoop(t *testing.T) {
	fi := newFakeIssuer(t)
	p, _ := newTestProvider(t, fi, nil)
	events, unsub := recordEvents(p)
	defer unsub()

	require.NoError(t, p.Refresh(context.Background()))
	assert.Empty(t, events())
}

func TestProvider_SignOut(t *testing.T) {
	fi := newFakeIssuer(t)
	p, persistence := newTestProvider(t, fi, nil)
	_, err := p.SignInWithPassword(context.Background(), "ada@example.com", testPassword)
	require.NoError(t, err)

	require.NoError(t, p.SignOut(context.Background()))

	cur, err := p.CurrentSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, cur)
	stored, err := persistence.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestProvider_RehydratesFromPersistence(t *testing.T) {
	fi := newFakeIssuer(t)
	persisted := domainauth.Session{UserID: "sub-9", Email: "x@example.com", ExpiresAt: time.Now().Add(time.Hour)}
	p, persistence := newTestProvider(t, fi, nil)
	require.NoError(t, persistence.Save(context.Background(), persisted))

	cur, err := p.CurrentSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, "sub-9", cur.UserID)
}

func TestProvider_ObserveRepublishes(t *testing.T) {
	fi := newFakeIssuer(t)
	p, _ := newTestProvider(t, fi, nil)
	events, unsub := recordEvents(p)
	defer unsub()

	p.Observe(domainauth.SessionEvent{
		Kind:    domainauth.EventSignedIn,
		Session: &domainauth.Session{UserID: "remote", ExpiresAt: time.Now().Add(time.Hour)},
	})

	cur, err := p.CurrentSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, "remote", cur.UserID)
	assert.Equal(t, []domainauth.EventKind{domainauth.EventSignedIn}, events())
}

func TestProvider_RunRefresherStopsOnCancel(t *testing.T) {
	fi := newFakeIssuer(t)
	p, _ := newTestProvider(t, fi, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.RunRefresher(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("refresher did not stop")
	}
}

func TestClaimString(t *testing.T) {
	claims := map[string]any{"email": "a@b.c", "n": 3.0}

	got, err := claimString("email", claims)
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", got)

	_, err = claimString("n", claims)
	require.Error(t, err)

	_, err = claimString("missing", claims)
	require.Error(t, err)
}
