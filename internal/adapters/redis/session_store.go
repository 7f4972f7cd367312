// Package redis provides Redis-based adapters for session persistence.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	domainauth "github.com/target/catalog-admin/internal/domain/auth"
	"github.com/target/catalog-admin/internal/ports"
)

// DefaultKey is the key holding the persisted session when none is configured.
const DefaultKey = "catalog-admin:session"

var _ ports.SessionPersistence = (*SessionPersistence)(nil)

// changeNotice is published on <key>:events after every write.
type changeNotice struct {
	Origin string               `json:"origin"`
	Kind   domainauth.EventKind `json:"kind"`
}

// SessionPersistence keeps the current provider session under one Redis key with
// TTL matching the session expiry, and announces changes to other processes.
type SessionPersistence struct {
	client redis.UniversalClient
	key    string
	origin string
	now    func() time.Time
	logger *slog.Logger
}

// NewSessionPersistence creates a Redis-backed persistence. An empty key uses DefaultKey.
func NewSessionPersistence(client redis.UniversalClient, key string, logger *slog.Logger) *SessionPersistence {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	origin := uuid.NewString()
	return &SessionPersistence{
		client: client,
		key:    key,
		origin: origin,
		now:    time.Now,
		logger: logger.With("component", "redis_session", "origin", origin),
	}
}

// Channel returns the pub/sub channel carrying change notices.
func (s *SessionPersistence) Channel() string { return s.key + ":events" }

// Load returns the stored session, or nil when none is stored or it has expired.
func (s *SessionPersistence) Load(ctx context.Context) (*domainauth.Session, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var sess domainauth.Session
	if unmarshalErr := json.Unmarshal(data, &sess); unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal session: %w", unmarshalErr)
	}
	if sess.Expired(s.now()) {
		// TTL normally evicts first; clock skew between hosts can leave a stale value behind.
		if delErr := s.client.Del(ctx, s.key).Err(); delErr != nil {
			return nil, fmt.Errorf("cleanup expired session: %w", delErr)
		}
		return nil, nil
	}
	return &sess, nil
}

// Save stores sess and publishes signed_in, or token_refreshed when the same user was already stored.
// Once the value is stored a failed publish is logged and Save still succeeds.
func (s *SessionPersistence) Save(ctx context.Context, sess domainauth.Session) error {
	if sess.UserID == "" {
		return errors.New("session user id cannot be empty")
	}
	ttl := sess.ExpiresAt.Sub(s.now())
	if sess.ExpiresAt.IsZero() {
		ttl = 0
	} else if ttl <= 0 {
		return errors.New("session is expired")
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	kind := domainauth.EventSignedIn
	prev, err := s.client.SetArgs(ctx, s.key, data, redis.SetArgs{TTL: ttl, Get: true}).Result()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return fmt.Errorf("redis set: %w", err)
	default:
		var old domainauth.Session
		if json.Unmarshal([]byte(prev), &old) == nil && old.UserID == sess.UserID {
			kind = domainauth.EventTokenRefreshed
		}
	}
	s.notify(ctx, kind)
	return nil
}

// Clear deletes the stored session and publishes signed_out.
func (s *SessionPersistence) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	s.notify(ctx, domainauth.EventSignedOut)
	return nil
}

// notify announces a write that has already landed. A lost notice only delays
// other processes until their next reload, so it is logged instead of failing the write.
func (s *SessionPersistence) notify(ctx context.Context, kind domainauth.EventKind) {
	if err := s.publish(ctx, kind); err != nil {
		s.logger.WarnContext(ctx, "session change notice not published", "kind", kind, "error", err)
	}
}

func (s *SessionPersistence) publish(ctx context.Context, kind domainauth.EventKind) error {
	msg, err := json.Marshal(changeNotice{Origin: s.origin, Kind: kind})
	if err != nil {
		return fmt.Errorf("marshal notice: %w", err)
	}
	if err := s.client.Publish(ctx, s.Channel(), msg).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Listen delivers changes written by other processes sharing the key until ctx is done.
// Notices from this instance are skipped; the session is reloaded for every notice
// so handlers always see the stored value.
func (s *SessionPersistence) Listen(ctx context.Context, h ports.SessionHandler) error {
	sub := s.client.Subscribe(ctx, s.Channel())
	defer func() {
		if err := sub.Close(); err != nil {
			s.logger.Debug("redis subscription close failed", "error", err)
		}
	}()
	// Wait for the subscription to be confirmed so no notice published after Listen starts is lost.
	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("redis subscribe: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			s.dispatch(ctx, msg.Payload, h)
		}
	}
}

func (s *SessionPersistence) dispatch(ctx context.Context, payload string, h ports.SessionHandler) {
	var notice changeNotice
	if err := json.Unmarshal([]byte(payload), &notice); err != nil {
		s.logger.WarnContext(ctx, "ignoring malformed session notice", "error", err)
		return
	}
	if notice.Origin == s.origin {
		return
	}

	sess, err := s.Load(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "reload session after notice failed", "kind", notice.Kind, "error", err)
		return
	}
	kind := notice.Kind
	if sess == nil {
		kind = domainauth.EventSignedOut
	}
	h(domainauth.SessionEvent{Kind: kind, Session: sess})
}
