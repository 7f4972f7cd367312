package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	domainauth "github.com/target/catalog-admin/internal/domain/auth"
	apperrors "github.com/target/catalog-admin/internal/errors"
	"github.com/target/catalog-admin/internal/ports"
)

var (
	errStoreStarted = errors.New("session store already started")
	errStoreClosed  = errors.New("session store closed")
)

// SessionStoreOptions groups dependencies for SessionStore.
type SessionStoreOptions struct {
	Identity    ports.IdentityProvider
	Profiles    ports.ProfileStore
	Logger      *slog.Logger
	CallTimeout time.Duration    // bounds every provider and profile call; zero disables
	Now         func() time.Time // optional clock for session expiry checks
}

// SessionStore reconciles the identity provider's session with the cached user
// profile and exposes the result as a single AuthState snapshot.
//
// Every reconciliation pass takes a sequence number when it is triggered. A pass
// writes state only at its checkpoints and only while its sequence is not older
// than the last committed one, so a slow pass can never overwrite the result of a
// pass that was triggered after it. Loading stays true while any pass is in flight.
type SessionStore struct {
	identity ports.IdentityProvider
	resolver *ProfileResolver
	logger   *slog.Logger
	timeout  time.Duration
	now      func() time.Time

	mu           sync.Mutex
	state        domainauth.State
	inflight     int
	nextSeq      uint64
	committedSeq uint64
	watchers     map[uint64]chan domainauth.State
	nextWatcher  uint64
	started      bool
	closed       bool
	unsubscribe  ports.Unsubscribe
	lifetime     context.Context

	passes    sync.WaitGroup
	closeOnce sync.Once
}

// pass is one reconciliation run.
type pass struct {
	seq     uint64
	trigger string
}

// NewSessionStore constructs a SessionStore. Call Start to subscribe and run the startup pass.
func NewSessionStore(opts SessionStoreOptions) *SessionStore {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &SessionStore{
		identity: opts.Identity,
		resolver: NewProfileResolver(ProfileResolverOptions{
			Profiles:    opts.Profiles,
			Logger:      logger,
			CallTimeout: opts.CallTimeout,
		}),
		logger:   logger.With("component", "session_store"),
		timeout:  opts.CallTimeout,
		now:      now,
		watchers: make(map[uint64]chan domainauth.State),
		lifetime: context.Background(),
	}
}

// Start subscribes to the provider's change stream and runs the startup pass.
// It blocks until the startup pass resolves. Provider failures are logged and leave
// the store signed out; they are not returned.
func (s *SessionStore) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errStoreClosed
	}
	if s.started {
		s.mu.Unlock()
		return errStoreStarted
	}
	s.started = true
	s.lifetime = context.WithoutCancel(ctx)
	p := s.beginLocked("startup")
	s.mu.Unlock()
	defer s.end(p)

	unsubscribe := s.identity.Subscribe(s.handleEvent)
	s.mu.Lock()
	if s.closed {
		// Close ran while we were subscribing and found nothing to release.
		s.mu.Unlock()
		unsubscribe()
	} else {
		s.unsubscribe = unsubscribe
		s.mu.Unlock()
	}

	sess, err := s.currentSession(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "fetch current session failed, treating as signed out",
			"seq", p.seq, "error", err)
		s.commit(p, clearState)
		return nil
	}
	s.reconcile(ctx, p, sess)
	return nil
}

// Close releases the change-stream subscription exactly once, waits for in-flight
// event passes and closes all watcher channels. It is safe to call more than once.
func (s *SessionStore) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		unsubscribe := s.unsubscribe
		s.unsubscribe = nil
		s.mu.Unlock()

		if unsubscribe != nil {
			unsubscribe()
		}
		s.passes.Wait()

		s.mu.Lock()
		for id, ch := range s.watchers {
			delete(s.watchers, id)
			close(ch)
		}
		s.mu.Unlock()
	})
}

// State returns the latest reconciled snapshot.
func (s *SessionStore) State() domainauth.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Watch returns a channel that always holds the most recent snapshot and a cancel
// func. The current snapshot is delivered immediately. Slow readers skip
// intermediate snapshots but never miss the latest one.
func (s *SessionStore) Watch() (<-chan domainauth.State, func()) {
	ch := make(chan domainauth.State, 1)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		ch <- s.snapshotLocked()
		close(ch)
		return ch, func() {}
	}
	id := s.nextWatcher
	s.nextWatcher++
	s.watchers[id] = ch
	ch <- s.snapshotLocked()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.watchers[id]; ok {
				delete(s.watchers, id)
				close(c)
			}
		})
	}
}

// Reconcile runs a change-stream pass for ev synchronously.
func (s *SessionStore) Reconcile(ctx context.Context, ev domainauth.SessionEvent) {
	p := s.begin(string(ev.Kind))
	defer s.end(p)
	s.reconcile(ctx, p, ev.Session)
}

// SignIn signs in with credentials. On success the new session is stored without
// waiting for the provider's change event and the profile is resolved before
// returning. On failure the previous state is left untouched and an AuthError is returned.
func (s *SessionStore) SignIn(ctx context.Context, email, password string) error {
	if email == "" {
		return apperrors.ValidationField("email", "email is required")
	}
	if password == "" {
		return apperrors.ValidationField("password", "password is required")
	}

	p := s.begin("sign_in")
	defer s.end(p)

	callCtx, cancel := withCallTimeout(ctx, s.timeout)
	sess, err := s.identity.SignInWithPassword(callCtx, email, password)
	cancel()
	if err != nil {
		authErr := asAuthError(err, "sign in failed")
		s.logger.WarnContext(ctx, "sign in failed", "seq", p.seq, "reason", apperrors.GetReason(authErr), "error", err)
		return authErr
	}
	if sess == nil {
		return apperrors.AuthError(nil, "", "sign in returned no session")
	}
	if sess.Expired(s.now()) {
		s.logger.WarnContext(ctx, "sign in returned an expired session", "seq", p.seq, "user_id", sess.UserID)
		return apperrors.AuthError(nil, "expired_session", "sign in returned an expired session")
	}

	s.reconcile(ctx, p, sess)
	return nil
}

// SignOut signs out with the provider and clears the state in one update.
// On failure the previous state is left untouched and an AuthError is returned.
func (s *SessionStore) SignOut(ctx context.Context) error {
	p := s.begin("sign_out")
	defer s.end(p)

	callCtx, cancel := withCallTimeout(ctx, s.timeout)
	err := s.identity.SignOut(callCtx)
	cancel()
	if err != nil {
		s.logger.WarnContext(ctx, "sign out failed", "seq", p.seq, "error", err)
		return asAuthError(err, "sign out failed")
	}

	// A confirmed sign-out supersedes every pass still carrying the old session.
	s.mu.Lock()
	s.nextSeq++
	p.seq = s.nextSeq
	s.mu.Unlock()

	s.commit(p, clearState)
	return nil
}

func (s *SessionStore) handleEvent(ev domainauth.SessionEvent) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	p := s.beginLocked(string(ev.Kind))
	s.passes.Add(1)
	ctx := s.lifetime
	s.mu.Unlock()

	go func() {
		defer s.passes.Done()
		defer s.end(p)
		s.reconcile(ctx, p, ev.Session)
	}()
}

// reconcile stores sess and resolves its profile, writing at two checkpoints.
func (s *SessionStore) reconcile(ctx context.Context, p *pass, sess *domainauth.Session) {
	if sess != nil && sess.Expired(s.now()) {
		s.logger.InfoContext(ctx, "ignoring expired session", "seq", p.seq, "user_id", sess.UserID)
		sess = nil
	}
	if sess == nil {
		s.commit(p, clearState)
		return
	}

	cp := *sess
	identity := cp.Identity()
	if !s.commit(p, func(st *domainauth.State) {
		keepProfile := st.Profile != nil && st.Profile.ID == identity.UserID
		st.Session = &cp
		st.Identity = &identity
		if !keepProfile {
			st.Profile = nil
			st.Role = domainauth.RoleNone
		}
	}) {
		return
	}

	profile, err := s.resolver.Resolve(ctx, identity)
	if err != nil {
		s.logger.WarnContext(ctx, "profile unavailable, continuing without role",
			"seq", p.seq, "trigger", p.trigger, "user_id", identity.UserID, "error", err)
	}

	s.commit(p, func(st *domainauth.State) {
		st.Profile = profile
		st.Role = domainauth.RoleNone
		if profile != nil {
			st.Role = profile.Role
		}
	})
}

func (s *SessionStore) currentSession(ctx context.Context) (*domainauth.Session, error) {
	callCtx, cancel := withCallTimeout(ctx, s.timeout)
	defer cancel()

	sess, err := s.identity.CurrentSession(callCtx)
	if err != nil {
		return nil, apperrors.ProviderError(apperrors.FromContext(err), "get current session")
	}
	return sess, nil
}

func (s *SessionStore) begin(trigger string) *pass {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.beginLocked(trigger)
}

func (s *SessionStore) beginLocked(trigger string) *pass {
	s.nextSeq++
	s.inflight++
	p := &pass{seq: s.nextSeq, trigger: trigger}
	s.publishLocked()
	return p
}

func (s *SessionStore) end(_ *pass) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	s.publishLocked()
}

// commit applies fn when p is not older than the last committed pass.
func (s *SessionStore) commit(p *pass, fn func(*domainauth.State)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.seq < s.committedSeq {
		s.logger.Debug("discarding stale reconciliation result",
			"seq", p.seq, "committed_seq", s.committedSeq, "trigger", p.trigger)
		return false
	}
	s.committedSeq = p.seq
	fn(&s.state)
	s.publishLocked()
	return true
}

func (s *SessionStore) snapshotLocked() domainauth.State {
	st := s.state.Clone()
	st.Loading = s.inflight > 0
	return st
}

// publishLocked replaces whatever each watcher has not read yet with the latest snapshot.
func (s *SessionStore) publishLocked() {
	if len(s.watchers) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for _, ch := range s.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- snap.Clone()
	}
}

func clearState(st *domainauth.State) {
	*st = domainauth.State{}
}

func asAuthError(err error, message string) error {
	if apperrors.IsAuth(err) {
		return err
	}
	return apperrors.AuthError(apperrors.FromContext(err), apperrors.GetReason(err), message)
}
