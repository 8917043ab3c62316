package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/sqlite3/*.sql migrations/postgres/*.sql
var masterMigrations embed.FS

// Migrate applies all pending master registry migrations.
func (d *DB) Migrate(ctx context.Context) error {
	sub, err := fs.Sub(masterMigrations, "migrations/"+string(d.dialect))
	if err != nil {
		return fmt.Errorf("locating %s migrations: %w", d.dialect, err)
	}
	return RunMigrations(ctx, d.db.DB, d.dialect, sub)
}

// RunMigrations applies every pending goose migration found at the root of
// fsys. Each call uses its own provider so stores can migrate concurrently.
func RunMigrations(ctx context.Context, db *sql.DB, dialect Dialect, fsys fs.FS) error {
	gooseDialect := goose.DialectSQLite3
	if dialect == DialectPostgres {
		gooseDialect = goose.DialectPostgres
	}

	provider, err := goose.NewProvider(gooseDialect, db, fsys)
	if err != nil {
		return fmt.Errorf("creating migration provider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}
