package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	domainauth "github.com/target/catalog-admin/internal/domain/auth"
	apperrors "github.com/target/catalog-admin/internal/errors"
	"github.com/target/catalog-admin/internal/ports"
	"golang.org/x/sync/singleflight"
)

// ProfileResolverOptions groups dependencies for ProfileResolver.
type ProfileResolverOptions struct {
	Profiles    ports.ProfileStore
	Logger      *slog.Logger
	CallTimeout time.Duration // per-call timeout; zero disables
}

// ProfileResolver finds the profile for an identity, creating a default one when absent.
// Concurrent resolutions for the same user share a single lookup/upsert.
type ProfileResolver struct {
	profiles ports.ProfileStore
	logger   *slog.Logger
	timeout  time.Duration
	group    singleflight.Group
}

// NewProfileResolver constructs a ProfileResolver.
func NewProfileResolver(opts ProfileResolverOptions) *ProfileResolver {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileResolver{
		profiles: opts.Profiles,
		logger:   logger.With("component", "profile_resolver"),
		timeout:  opts.CallTimeout,
	}
}

// Resolve returns the profile for id. When the lookup misses or fails it upserts a
// default profile (display name = email, role = employee). If that fails too the
// returned error is a QueryError and the caller must treat the user as unprivileged.
// Cancelling ctx abandons the wait but not a lookup other callers are sharing.
func (r *ProfileResolver) Resolve(ctx context.Context, id domainauth.Identity) (*domainauth.Profile, error) {
	if id.UserID == "" {
		return nil, apperrors.ValidationField("id", "user id is required")
	}

	// The shared call must not inherit one caller's cancellation: another pass
	// may have joined it. Each caller still stops waiting when its own ctx ends.
	shared := context.WithoutCancel(ctx)
	ch := r.group.DoChan(id.UserID, func() (any, error) {
		return r.resolve(shared, id)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, apperrors.QueryError(apperrors.FromContext(ctx.Err()), "resolve profile")
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	p, ok := res.Val.(*domainauth.Profile)
	if !ok || p == nil {
		return nil, apperrors.QueryError(nil, "profile store returned no profile")
	}
	out := *p
	return &out, nil
}

func (r *ProfileResolver) resolve(ctx context.Context, id domainauth.Identity) (*domainauth.Profile, error) {
	found, lookupErr := r.lookup(ctx, id.UserID)
	if lookupErr == nil && found != nil {
		return found, nil
	}

	if lookupErr != nil {
		r.logger.WarnContext(ctx, "profile lookup failed, creating default",
			"user_id", id.UserID, "error", lookupErr)
	} else {
		r.logger.InfoContext(ctx, "profile missing, creating default", "user_id", id.UserID)
	}

	created, upsertErr := r.upsertDefault(ctx, id)
	if upsertErr != nil {
		r.logger.ErrorContext(ctx, "default profile upsert failed",
			"user_id", id.UserID, "error", upsertErr)
		return nil, apperrors.QueryError(errors.Join(lookupErr, upsertErr), "resolve profile")
	}
	return created, nil
}

func (r *ProfileResolver) lookup(ctx context.Context, userID string) (*domainauth.Profile, error) {
	callCtx, cancel := withCallTimeout(ctx, r.timeout)
	defer cancel()

	p, err := r.profiles.GetByID(callCtx, userID)
	if err != nil {
		return nil, apperrors.QueryError(apperrors.FromContext(err), "lookup profile")
	}
	if p != nil && !p.Role.Valid() {
		return nil, apperrors.QueryError(nil, "profile has unknown role "+string(p.Role))
	}
	return p, nil
}

func (r *ProfileResolver) upsertDefault(ctx context.Context, id domainauth.Identity) (*domainauth.Profile, error) {
	callCtx, cancel := withCallTimeout(ctx, r.timeout)
	defer cancel()

	p, err := r.profiles.UpsertDefault(callCtx, ports.DefaultProfileInput{
		ID:          id.UserID,
		DisplayName: id.Email,
		Role:        domainauth.DefaultRole,
	})
	if err != nil {
		return nil, apperrors.QueryError(apperrors.FromContext(err), "upsert default profile")
	}
	if p == nil {
		return nil, apperrors.QueryError(nil, "upsert returned no profile")
	}
	if !p.Role.Valid() {
		return nil, apperrors.QueryError(nil, "upserted profile has unknown role "+string(p.Role))
	}
	return p, nil
}

// withCallTimeout bounds one external call. A zero timeout only adds a cancel func.
func withCallTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
