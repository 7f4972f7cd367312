package bootstrap

import (
	"database/sql"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/target/catalog-admin/config"
	"github.com/target/catalog-admin/internal/data"
	"github.com/target/catalog-admin/internal/ports"
	"github.com/target/catalog-admin/internal/service"
)

// ProfileCachePrefix namespaces cached profiles in Redis.
const ProfileCachePrefix = "catalog-admin:profile:"

// ServiceContainer holds the application services.
type ServiceContainer struct {
	Sessions *service.SessionStore
	Catalog  *service.CatalogService
}

// ServiceConfig contains configuration for service creation.
type ServiceConfig struct {
	DB          *sql.DB
	RedisClient redis.UniversalClient // optional; enables the profile cache
	Identity    ports.IdentityProvider
	Config      config.AppConfig
	Logger      *slog.Logger
}

// CreateServices builds the session store and catalog service. The session store
// is not started.
func CreateServices(cfg ServiceConfig) ServiceContainer {
	return ServiceContainer{
		Sessions: service.NewSessionStore(service.SessionStoreOptions{
			Identity:    cfg.Identity,
			Profiles:    BuildProfileStore(cfg.DB, cfg.RedisClient, cfg.Config.Session, cfg.Logger),
			Logger:      cfg.Logger,
			CallTimeout: cfg.Config.Session.CallTimeout,
		}),
		Catalog: service.NewCatalogService(service.CatalogServiceOptions{
			Repo:         data.NewProductRepo(cfg.DB),
			Logger:       cfg.Logger,
			QueryTimeout: cfg.Config.Catalog.QueryTimeout,
		}),
	}
}

// BuildProfileStore returns the Postgres profile store, wrapped in a Redis
// read-through cache when a client is available and the TTL is positive.
//
//nolint:ireturn // callers choose between the cached and uncached store at runtime.
func BuildProfileStore(
	db *sql.DB,
	client redis.UniversalClient,
	cfg config.SessionConfig,
	logger *slog.Logger,
) ports.ProfileStore {
	repo := data.NewProfileRepo(db)
	if client == nil || cfg.ProfileCacheTTL <= 0 {
		return repo
	}
	return data.NewCachedProfileStore(data.CachedProfileStoreOptions{
		Inner:  repo,
		Cache:  data.NewRedisCacheRepo(client),
		TTL:    cfg.ProfileCacheTTL,
		Prefix: ProfileCachePrefix,
		Logger: logger,
	})
}
