package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/target/catalog-admin/config"
	"golang.org/x/sync/errgroup"
)

// Run wires the application from cfg and serves until ctx is canceled or the
// process receives SIGINT or SIGTERM.
func Run(ctx context.Context, cfg config.AppConfig, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, redisClient, err := initInfrastructure(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeInfrastructure(db, redisClient, logger)

	identity, err := BuildIdentity(ctx, IdentityConfig{
		Auth:        cfg.Auth,
		Session:     cfg.Session,
		IsDev:       cfg.IsDev,
		RedisClient: redisClient,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	services := CreateServices(ServiceConfig{
		DB:          db,
		RedisClient: redisClient,
		Identity:    identity.Provider,
		Config:      cfg,
		Logger:      logger,
	})
	if err := services.Sessions.Start(ctx); err != nil {
		return fmt.Errorf("start session store: %w", err)
	}
	defer services.Sessions.Close()

	server := NewHTTPServer(HTTPServerConfig{
		HTTP:        cfg.HTTP,
		Services:    services,
		DB:          db,
		RedisClient: redisClient,
		Logger:      logger,
	})
	// Closing the store ends the event streams so Shutdown is not held open by them.
	server.RegisterOnShutdown(services.Sessions.Close)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return serveHTTP(server, logger) })
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return ShutdownHTTPServer(shutdownCtx, server, logger)
	})
	if identity.Refresh != nil {
		g.Go(func() error { return ignoreCanceled(identity.Refresh(gctx)) })
	}
	if identity.Persistence != nil {
		g.Go(func() error {
			return ignoreCanceled(identity.Persistence.Listen(gctx, observeEvent(logger, identity.Observe)))
		})
	}

	logger.Info("catalog admin started", "auth_mode", cfg.Auth.Mode, "addr", server.Addr)
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("catalog admin stopped")
	return nil
}

func initInfrastructure(ctx context.Context, cfg config.AppConfig, logger *slog.Logger) (*sql.DB, redis.UniversalClient, error) {
	dbCfg := DatabaseConfig{DBConfig: cfg.Postgres, RedisConfig: cfg.Redis, Logger: logger}

	db, err := ConnectDB(ctx, dbCfg)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Postgres.RunMigrationsOnStart {
		if err := RunMigrations(ctx, db, logger); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
	}

	if !needsRedis(cfg) {
		return db, nil, nil
	}
	client, err := ConnectRedis(ctx, dbCfg)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, client, nil
}

func needsRedis(cfg config.AppConfig) bool {
	return cfg.Session.Persist || cfg.Session.ProfileCacheTTL > 0
}

func closeInfrastructure(db *sql.DB, client redis.UniversalClient, logger *slog.Logger) {
	if client != nil {
		if err := client.Close(); err != nil {
			logger.Error("failed to close redis client", "error", err)
		}
	}
	if db != nil {
		if err := db.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
