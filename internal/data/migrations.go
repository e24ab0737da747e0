package data

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/schoolcrm/enrichment/internal/migrate"
)

// RunMigrations applies pending schema migrations and returns the versions it applied.
func RunMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) ([]string, error) {
	return migrate.Apply(ctx, db, migrate.Options{Logger: logger})
}

// PendingMigrations lists schema versions that RunMigrations would apply.
func PendingMigrations(ctx context.Context, db *sql.DB) ([]string, error) {
	return migrate.Pending(ctx, db)
}
