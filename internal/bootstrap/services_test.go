package bootstrap

import (
	"database/sql"
	"net/http"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/catalog-admin/config"
	"github.com/target/catalog-admin/internal/data"
	authmocks "github.com/target/catalog-admin/internal/mocks/auth"
)

func TestBuildProfileStore(t *testing.T) {
	db := &sql.DB{}
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { _ = client.Close() })

	tests := []struct {
		name   string
		client redis.UniversalClient
		ttl    time.Duration
		want   any
	}{
		{name: "no redis", ttl: time.Minute, want: &data.ProfileRepo{}},
		{name: "cache disabled", client: client, want: &data.ProfileRepo{}},
		{name: "cached", client: client, ttl: time.Minute, want: &data.CachedProfileStore{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := BuildProfileStore(db, tt.client, config.SessionConfig{ProfileCacheTTL: tt.ttl}, discardLogger())
			assert.IsType(t, tt.want, store)
		})
	}
}

func TestCreateServices(t *testing.T) {
	var cfg config.AppConfig
	cfg.Session.CallTimeout = time.Second
	cfg.Catalog.QueryTimeout = time.Second

	svcs := CreateServices(ServiceConfig{
		DB:       &sql.DB{},
		Identity: authmocks.NewFakeIdentityProvider(nil),
		Config:   cfg,
		Logger:   discardLogger(),
	})
	require.NotNil(t, svcs.Sessions)
	require.NotNil(t, svcs.Catalog)
	assert.False(t, svcs.Sessions.State().Authenticated())
}

func TestNewHTTPServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { _ = client.Close() })

	srv := NewHTTPServer(HTTPServerConfig{
		HTTP:        config.HTTPConfig{ReadHeaderTimeout: 3 * time.Second},
		DB:          &sql.DB{},
		RedisClient: client,
		Logger:      discardLogger(),
	})

	assert.Equal(t, ":8080", srv.Addr)
	assert.Equal(t, 3*time.Second, srv.ReadHeaderTimeout)
	assert.Zero(t, srv.WriteTimeout)
	assert.Implements(t, (*http.Handler)(nil), srv.Handler)
	assert.Len(t, healthChecks(&sql.DB{}, client), 2)
	assert.Empty(t, healthChecks(nil, nil))
}

func TestNeedsRedis(t *testing.T) {
	var cfg config.AppConfig
	assert.False(t, needsRedis(cfg))

	cfg.Session.ProfileCacheTTL = time.Minute
	assert.True(t, needsRedis(cfg))

	cfg.Session = config.SessionConfig{Persist: true}
	assert.True(t, needsRedis(cfg))
}
