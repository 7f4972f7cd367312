package data

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	domainauth "github.com/target/catalog-admin/internal/domain/auth"
	"github.com/target/catalog-admin/internal/ports"
)

const defaultProfileCachePrefix = "profile:"

// CachedProfileStoreOptions configures CachedProfileStore.
type CachedProfileStoreOptions struct {
	Inner  ports.ProfileStore
	Cache  Cache
	TTL    time.Duration
	Prefix string
	Logger *slog.Logger
}

var _ ports.ProfileStore = (*CachedProfileStore)(nil)

// CachedProfileStore is a read-through cache in front of a ProfileStore.
// Cache failures are logged and never fail the call. Absent profiles are not cached.
type CachedProfileStore struct {
	inner  ports.ProfileStore
	cache  Cache
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

// NewCachedProfileStore constructs a CachedProfileStore.
func NewCachedProfileStore(opts CachedProfileStoreOptions) *CachedProfileStore {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = defaultProfileCachePrefix
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedProfileStore{
		inner:  opts.Inner,
		cache:  opts.Cache,
		ttl:    ttl,
		prefix: prefix,
		logger: logger.With("component", "profile_cache"),
	}
}

func (c *CachedProfileStore) GetByID(ctx context.Context, id string) (*domainauth.Profile, error) {
	if p, ok := c.lookup(ctx, id); ok {
		return p, nil
	}
	p, err := c.inner.GetByID(ctx, id)
	if err != nil || p == nil {
		return p, err
	}
	c.store(ctx, p)
	return p, nil
}

func (c *CachedProfileStore) UpsertDefault(ctx context.Context, in ports.DefaultProfileInput) (*domainauth.Profile, error) {
	p, err := c.inner.UpsertDefault(ctx, in)
	if err != nil || p == nil {
		return p, err
	}
	c.store(ctx, p)
	return p, nil
}

// Invalidate drops the cached profile for id, e.g. after a role change.
func (c *CachedProfileStore) Invalidate(ctx context.Context, id string) {
	if _, err := c.cache.Delete(ctx, c.prefix+id); err != nil {
		c.logger.WarnContext(ctx, "profile cache invalidate failed", "user_id", id, "error", err)
	}
}

func (c *CachedProfileStore) lookup(ctx context.Context, id string) (*domainauth.Profile, bool) {
	raw, err := c.cache.Get(ctx, c.prefix+id)
	if err != nil {
		c.logger.WarnContext(ctx, "profile cache read failed", "user_id", id, "error", err)
		return nil, false
	}
	if raw == nil {
		return nil, false
	}
	var p domainauth.Profile
	if err := json.Unmarshal(raw, &p); err != nil || !p.Role.Valid() || p.ID != id {
		c.logger.WarnContext(ctx, "discarding malformed cached profile", "user_id", id, "error", err)
		c.Invalidate(ctx, id)
		return nil, false
	}
	return &p, true
}

func (c *CachedProfileStore) store(ctx context.Context, p *domainauth.Profile) {
	raw, err := json.Marshal(p)
	if err != nil {
		c.logger.WarnContext(ctx, "profile cache encode failed", "user_id", p.ID, "error", err)
		return
	}
	if err := c.cache.Set(ctx, c.prefix+p.ID, raw, c.ttl); err != nil {
		c.logger.WarnContext(ctx, "profile cache write failed", "user_id", p.ID, "error", err)
	}
}
