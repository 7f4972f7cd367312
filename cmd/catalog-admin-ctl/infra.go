package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/target/catalog-admin/internal/bootstrap"
)

type infra struct {
	DB    *sql.DB
	Redis redis.UniversalClient
}

func (i *infra) Close() error {
	var closeErr error
	if i.DB != nil {
		if err := i.DB.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close db: %w", err))
		}
	}
	if i.Redis != nil {
		if err := i.Redis.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close redis: %w", err))
		}
	}
	return closeErr
}

type connectOptions struct {
	WantDB    bool
	WantRedis bool
	// OptionalRedis tolerates an unreachable Redis; the command runs without it.
	OptionalRedis bool
}

func withDatabase(cmdCtx *commandContext, timeout time.Duration, f func(context.Context, *infra) error) error {
	return withInfra(cmdCtx, timeout, connectOptions{WantDB: true}, f)
}

func withRedis(cmdCtx *commandContext, timeout time.Duration, f func(context.Context, *infra) error) error {
	return withInfra(cmdCtx, timeout, connectOptions{WantRedis: true}, f)
}

func withInfra(
	cmdCtx *commandContext,
	timeout time.Duration,
	opts connectOptions,
	f func(context.Context, *infra) error,
) error {
	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conns, err := connect(ctx, cmdCtx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := conns.Close(); cerr != nil {
			cmdCtx.Logger.Warn("close connections failed", "error", cerr)
		}
	}()

	return f(ctx, conns)
}

func connect(ctx context.Context, cmdCtx *commandContext, opts connectOptions) (*infra, error) {
	cfg := bootstrap.DatabaseConfig{
		DBConfig:    cmdCtx.Config.Postgres,
		RedisConfig: cmdCtx.Config.Redis,
		Logger:      cmdCtx.Logger,
	}
	conns := &infra{}

	if opts.WantDB {
		db, err := bootstrap.ConnectDB(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect db: %w", err)
		}
		conns.DB = db
	}

	if opts.WantRedis || opts.OptionalRedis {
		client, err := bootstrap.ConnectRedis(ctx, cfg)
		switch {
		case err == nil:
			conns.Redis = client
		case opts.OptionalRedis && !opts.WantRedis:
			cmdCtx.Logger.Warn("redis unavailable; continuing without it", "error", err)
		default:
			_ = conns.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
	}

	return conns, nil
}
