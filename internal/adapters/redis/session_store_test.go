package redis

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/target/catalog-admin/internal/domain/auth"
	"github.com/target/catalog-admin/internal/testutil"
)

func testSession(userID string, ttl time.Duration) domainauth.Session {
	return domainauth.Session{
		UserID:      userID,
		Email:       userID + "@example.com",
		AccessToken: "access-" + userID,
		ExpiresAt:   time.Now().Add(ttl),
	}
}

func TestSessionPersistence_SaveLoadClear(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store := NewSessionPersistence(client, "test:session", nil)
	ctx := context.Background()

	empty, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, empty)

	sess := testSession("u1", 30*time.Minute)
	require.NoError(t, store.Save(ctx, sess))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sess.UserID, got.UserID)
	assert.Equal(t, sess.AccessToken, got.AccessToken)
	assert.WithinDuration(t, sess.ExpiresAt, got.ExpiresAt, time.Second)

	ttl := client.TTL(ctx, "test:session").Val()
	assert.True(t, ttl > 29*time.Minute && ttl <= 30*time.Minute)

	require.NoError(t, store.Clear(ctx))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

// failPublish makes every PUBLISH sent through the client fail.
type failPublish struct{ err error }

func (h failPublish) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h failPublish) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if cmd.Name() == "publish" {
			cmd.SetErr(h.err)
			return h.err
		}
		return next(ctx, cmd)
	}
}

func (h failPublish) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestSessionPersistence_PublishFailureKeepsWrite(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	client.AddHook(failPublish{err: errors.New("publish refused")})
	store := NewSessionPersistence(client, "test:session", nil)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testSession("u1", time.Minute)))
	got, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.UserID)

	require.NoError(t, store.Clear(ctx))
	assert.Equal(t, int64(0), client.Exists(ctx, "test:session").Val())
}

func TestSessionPersistence_RejectsInvalid(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store := NewSessionPersistence(client, "test:session", nil)
	ctx := context.Background()

	assert.Error(t, store.Save(ctx, domainauth.Session{}))
	assert.Error(t, store.Save(ctx, testSession("u1", -time.Minute)))
}

func TestSessionPersistence_ExpiredValueLoadsAsAbsent(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	store := NewSessionPersistence(client, "test:session", nil)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testSession("u1", time.Minute)))
	store.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, int64(0), client.Exists(ctx, "test:session").Val())
}

func TestSessionPersistence_ListenSeesOtherProcess(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	local := NewSessionPersistence(client, "test:shared", nil)
	remote := NewSessionPersistence(client, "test:shared", nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan domainauth.SessionEvent, 8)
	done := make(chan error, 1)
	go func() {
		done <- local.Listen(ctx, func(ev domainauth.SessionEvent) { events <- ev })
	}()

	// Own writes are not echoed back; give the subscription time to be confirmed first.
	require.Eventually(t, func() bool {
		return client.PubSubNumSub(ctx, local.Channel()).Val()[local.Channel()] > 0
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, local.Save(ctx, testSession("self", time.Minute)))

	next := func() domainauth.SessionEvent {
		t.Helper()
		select {
		case ev := <-events:
			return ev
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for session event")
			return domainauth.SessionEvent{}
		}
	}

	require.NoError(t, remote.Save(ctx, testSession("u1", time.Minute)))
	ev := next()
	assert.Equal(t, domainauth.EventSignedIn, ev.Kind)
	require.NotNil(t, ev.Session)
	assert.Equal(t, "u1", ev.Session.UserID)

	require.NoError(t, remote.Save(ctx, testSession("u1", time.Minute)))
	assert.Equal(t, domainauth.EventTokenRefreshed, next().Kind)

	require.NoError(t, remote.Clear(ctx))
	ev = next()
	assert.Equal(t, domainauth.EventSignedOut, ev.Kind)
	assert.Nil(t, ev.Session)

	cancel()
	assert.NoError(t, <-done)
}
