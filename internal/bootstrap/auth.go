package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/target/catalog-admin/config"
	"github.com/target/catalog-admin/internal/adapters/devauth"
	"github.com/target/catalog-admin/internal/adapters/oidc"
	redisadapter "github.com/target/catalog-admin/internal/adapters/redis"
	domainauth "github.com/target/catalog-admin/internal/domain/auth"
	"github.com/target/catalog-admin/internal/ports"
)

// IdentityConfig contains configuration for the identity provider.
type IdentityConfig struct {
	Auth        config.AuthConfig
	Session     config.SessionConfig
	IsDev       bool
	RedisClient redis.UniversalClient // optional; required for session persistence
	Logger      *slog.Logger
}

// Identity bundles the configured provider with the background work it needs.
type Identity struct {
	Provider ports.IdentityProvider
	// Observe applies a session change made by another process.
	Observe ports.SessionHandler
	// Refresh keeps the session's tokens fresh until ctx is done. Nil when the
	// provider issues tokens that never need refreshing.
	Refresh func(ctx context.Context) error
	// Persistence is set when the session is shared through Redis.
	Persistence *redisadapter.SessionPersistence
}

// BuildIdentity creates the identity provider for the configured auth mode.
func BuildIdentity(ctx context.Context, cfg IdentityConfig) (*Identity, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var persistence *redisadapter.SessionPersistence
	if cfg.Session.Persist {
		if cfg.RedisClient == nil {
			return nil, errors.New("session persistence enabled but redis client not configured")
		}
		persistence = redisadapter.NewSessionPersistence(cfg.RedisClient, cfg.Session.RedisKey, logger)
	}

	switch cfg.Auth.Mode {
	case config.AuthModeMock:
		if !cfg.IsDev {
			return nil, errors.New("mock auth requires dev mode")
		}
		return buildDevAuth(cfg, persistence, logger)
	case config.AuthModeOIDC:
		return buildOIDC(ctx, cfg, persistence, logger)
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.Auth.Mode)
	}
}

func buildDevAuth(cfg IdentityConfig, persistence *redisadapter.SessionPersistence, logger *slog.Logger) (*Identity, error) {
	prov, err := devauth.NewProvider(devauth.Config{
		UserID:          cfg.Auth.DevAuth.UserID,
		Email:           cfg.Auth.DevAuth.Email,
		Password:        cfg.Auth.DevAuth.Password,
		SessionDuration: cfg.Auth.DevAuth.SessionDuration,
		Persistence:     sessionPersistence(persistence),
	})
	if err != nil {
		return nil, fmt.Errorf("create dev auth provider: %w", err)
	}
	logger.Warn("dev auth enabled; do not use in production", "user_id", cfg.Auth.DevAuth.UserID)
	return &Identity{
		Provider:    prov,
		Observe:     prov.Observe,
		Persistence: persistence,
	}, nil
}

func buildOIDC(
	ctx context.Context,
	cfg IdentityConfig,
	persistence *redisadapter.SessionPersistence,
	logger *slog.Logger,
) (*Identity, error) {
	oc := cfg.Auth.OIDC
	prov, err := oidc.NewProvider(ctx, oidc.ProviderConfig{
		ClientID:     oc.ClientID,
		ClientSecret: oc.ClientSecret,
		Scope:        oc.Scope,
		DiscoveryURL: oc.DiscoveryURL,
		EmailClaim:   oc.EmailClaim,
		RefreshSkew:  oc.RefreshSkew,
		HTTPClient:   oidc.NewHTTPClient(oc.HTTPTimeout),
		Persistence:  sessionPersistence(persistence),
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create OIDC provider: %w", err)
	}
	return &Identity{
		Provider:    prov,
		Observe:     prov.Observe,
		Refresh:     prov.RunRefresher,
		Persistence: persistence,
	}, nil
}

// sessionPersistence avoids handing providers a typed nil interface.
//
//nolint:ireturn // providers accept the port, not the redis adapter.
func sessionPersistence(p *redisadapter.SessionPersistence) ports.SessionPersistence {
	if p == nil {
		return nil
	}
	return p
}

// observeEvent adapts a SessionHandler so remote events are logged before being applied.
func observeEvent(logger *slog.Logger, h ports.SessionHandler) ports.SessionHandler {
	return func(ev domainauth.SessionEvent) {
		logger.Debug("remote session event", "kind", ev.Kind)
		h(ev)
	}
}
