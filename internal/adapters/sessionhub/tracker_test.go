package sessionhub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/target/catalog-admin/internal/domain/auth"
)

// memoryPersistence avoids importing the shared fakes, which depend on this package.
type memoryPersistence struct {
	sess  *domainauth.Session
	loads int
}

func (m *memoryPersistence) Load(context.Context) (*domainauth.Session, error) {
	m.loads++
	return m.sess, nil
}

func (m *memoryPersistence) Save(_ context.Context, sess domainauth.Session) error {
	m.sess = &sess
	return nil
}

func (m *memoryPersistence) Clear(context.Context) error {
	m.sess = nil
	return nil
}

func TestTracker_RehydratesOnce(t *testing.T) {
	stored := domainauth.Session{UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}
	p := &memoryPersistence{sess: &stored}
	tr := NewTracker(p, nil)

	got, err := tr.Current(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.UserID)

	_, err = tr.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, p.loads)
}

func TestTracker_ExpiredIsAbsent(t *testing.T) {
	now := time.Now()
	stored := domainauth.Session{UserID: "u1", ExpiresAt: now.Add(time.Minute)}
	tr := NewTracker(&memoryPersistence{sess: &stored}, func() time.Time { return now.Add(time.Hour) })

	got, err := tr.Current(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTracker_SetAndClearPublish(t *testing.T) {
	p := &memoryPersistence{}
	tr := NewTracker(p, nil)
	var kinds []domainauth.EventKind
	unsub := tr.Subscribe(func(ev domainauth.SessionEvent) { kinds = append(kinds, ev.Kind) })
	defer unsub()

	sess := domainauth.Session{UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, tr.Set(context.Background(), domainauth.EventSignedIn, sess))
	require.NotNil(t, p.sess)

	require.NoError(t, tr.Clear(context.Background()))
	assert.Nil(t, p.sess)

	got, err := tr.Current(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, []domainauth.EventKind{domainauth.EventSignedIn, domainauth.EventSignedOut}, kinds)
}

func TestTracker_ObserveUpdatesWithoutPersisting(t *testing.T) {
	p := &memoryPersistence{}
	tr := NewTracker(p, nil)
	var received []domainauth.SessionEvent
	unsub := tr.Subscribe(func(ev domainauth.SessionEvent) { received = append(received, ev) })
	defer unsub()

	sess := &domainauth.Session{UserID: "u2", ExpiresAt: time.Now().Add(time.Hour)}
	tr.Observe(domainauth.SessionEvent{Kind: domainauth.EventSignedIn, Session: sess})

	got, err := tr.Current(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "u2", got.UserID)
	assert.Nil(t, p.sess)
	require.Len(t, received, 1)
}
