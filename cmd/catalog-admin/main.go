package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/target/catalog-admin/config"
	"github.com/target/catalog-admin/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}

	logger = bootstrap.NewLogger(cfg.LogLevel, cfg.IsDev)
	logStartupInfo(ctx, logger, &cfg)

	return bootstrap.Run(ctx, cfg, logger)
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	logger.InfoContext(ctx, "catalog admin starting",
		"dev", cfg.IsDev,
		"auth_mode", cfg.Auth.Mode,
		"session_persist", cfg.Session.Persist,
		"profile_cache_ttl", cfg.Session.ProfileCacheTTL,
		"http_addr", cfg.HTTP.Addr,
	)
}
