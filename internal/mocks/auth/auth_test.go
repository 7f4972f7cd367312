package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/target/catalog-admin/internal/domain/auth"
	"github.com/target/catalog-admin/internal/ports"
)

func TestFakeIdentityProvider_SignInEmitsEvent(t *testing.T) {
	p := NewFakeIdentityProvider(nil)
	var events []domainauth.SessionEvent
	unsub := p.Subscribe(func(ev domainauth.SessionEvent) { events = append(events, ev) })

	sess, err := p.SignInWithPassword(context.Background(), "a@example.com", "secret")
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "a@example.com", sess.Email)

	require.Len(t, events, 1)
	assert.Equal(t, domainauth.EventSignedIn, events[0].Kind)

	current, err := p.CurrentSession(context.Background())
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, sess.UserID, current.UserID)

	unsub()
	unsub()
	assert.Equal(t, 1, p.UnsubscribeCalls())
	assert.Equal(t, 0, p.Subscribers())
}

func TestFakeIdentityProvider_BadPassword(t *testing.T) {
	p := NewFakeIdentityProvider(nil)
	_, err := p.SignInWithPassword(context.Background(), "a@example.com", "nope")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, 1, p.SignInCalls())
}

func TestMemoryProfileStore_UpsertKeepsExisting(t *testing.T) {
	store := NewMemoryProfileStore(domainauth.Profile{ID: "u1", FullName: "Ada", Role: domainauth.RoleAdmin})

	p, err := store.UpsertDefault(context.Background(), ports.DefaultProfileInput{
		ID: "u1", DisplayName: "ada@example.com", Role: domainauth.RoleEmployee,
	})
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleAdmin, p.Role)
	assert.Equal(t, 1, store.UpsertCalls())

	missing, err := store.GetByID(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryProfileStore_DelayHonoursContext(t *testing.T) {
	store := NewMemoryProfileStore()
	store.Delay = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := store.GetByID(ctx, "u1")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestMemorySessionPersistence_ExpiredLoadsAsAbsent(t *testing.T) {
	m := NewMemorySessionPersistence()
	require.NoError(t, m.Save(context.Background(), domainauth.Session{
		UserID: "u1", ExpiresAt: time.Now().Add(-time.Minute),
	}))

	got, err := m.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.Error(t, m.Save(context.Background(), domainauth.Session{}))
}
