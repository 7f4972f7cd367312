package devauth

import (
	"context"
	"testing"
	"time"

	domainauth "github.com/target/catalog-admin/internal/domain/auth"
	apperrors "github.com/target/catalog-admin/internal/errors"
	mocks "github.com/target/catalog-admin/internal/mocks/auth"
)

func newTestProvider(t *testing.T, persistence *mocks.MemorySessionPersistence) *Provider {
	t.Helper()
	prov, err := NewProvider(Config{
		UserID:      "dev-user",
		Email:       "dev@example.com",
		Password:    "dev-password",
		Persistence: persistence,
	})
	if err != nil {
		t.Fatalf("NewProvider error: %v", err)
	}
	return prov
}

func TestProvider_SignInAndOut(t *testing.T) {
	persistence := mocks.NewMemorySessionPersistence()
	prov := newTestProvider(t, persistence)

	var kinds []domainauth.EventKind
	unsub := prov.Subscribe(func(ev domainauth.SessionEvent) { kinds = append(kinds, ev.Kind) })
	defer unsub()

	sess, err := prov.SignInWithPassword(context.Background(), " DEV@example.com ", "dev-password")
	if err != nil {
		t.Fatalf("SignInWithPassword error: %v", err)
	}
	if sess.UserID != "dev-user" || sess.Email != "dev@example.com" {
		t.Fatalf("unexpected session: %+v", sess)
	}
	if sess.AccessToken == "" || sess.AccessToken == sess.RefreshToken {
		t.Fatalf("expected distinct generated tokens, got %q / %q", sess.AccessToken, sess.RefreshToken)
	}
	if time.Until(sess.ExpiresAt) < 7*time.Hour {
		t.Fatalf("expected default 8h session, expires at %v", sess.ExpiresAt)
	}

	stored, _ := persistence.Load(context.Background())
	if stored == nil || stored.AccessToken != sess.AccessToken {
		t.Fatalf("session not persisted: %+v", stored)
	}

	if err := prov.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut error: %v", err)
	}
	cur, err := prov.CurrentSession(context.Background())
	if err != nil || cur != nil {
		t.Fatalf("expected no session after sign out, got %+v (err %v)", cur, err)
	}

	want := []domainauth.EventKind{domainauth.EventSignedIn, domainauth.EventSignedOut}
	if len(kinds) != len(want) || kinds[0] != want[0] || kinds[1] != want[1] {
		t.Fatalf("events = %v, want %v", kinds, want)
	}
}

func TestProvider_WrongPassword(t *testing.T) {
	prov := newTestProvider(t, mocks.NewMemorySessionPersistence())

	_, err := prov.SignInWithPassword(context.Background(), "dev@example.com", "nope")
	if !apperrors.IsAuth(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if got := apperrors.GetReason(err); got != "invalid_grant" {
		t.Fatalf("reason = %q, want invalid_grant", got)
	}
}

func TestProvider_RehydratesPersistedSession(t *testing.T) {
	persistence := mocks.NewMemorySessionPersistence()
	_ = persistence.Save(context.Background(), domainauth.Session{
		UserID:    "dev-user",
		ExpiresAt: time.Now().Add(time.Hour),
	})
	prov := newTestProvider(t, persistence)

	cur, err := prov.CurrentSession(context.Background())
	if err != nil || cur == nil || cur.UserID != "dev-user" {
		t.Fatalf("expected rehydrated session, got %+v (err %v)", cur, err)
	}
}

func TestNewProvider_RequiresFields(t *testing.T) {
	cases := []Config{
		{Email: "a@b.c", Password: "p"},
		{UserID: "u", Password: "p"},
		{UserID: "u", Email: "a@b.c"},
	}
	for _, cfg := range cases {
		if _, err := NewProvider(cfg); err == nil {
			t.Fatalf("expected error for %+v", cfg)
		}
	}
}
