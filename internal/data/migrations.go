package data

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/target/catalog-admin/internal/migrate"
)

// RunMigrations sets up the profiles and catalog schema by delegating to the migrate package.
func RunMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	return migrate.Run(ctx, db, logger)
}
