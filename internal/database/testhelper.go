package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

// OpenTestMaster opens a migrated master registry for tests and registers
// cleanup. When TEST_DATABASE_URL is set the registry lives in PostgreSQL;
// otherwise it is a SQLite file in t.TempDir().
func OpenTestMaster(t *testing.T) *DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		dsn = filepath.Join(t.TempDir(), "master.db")
	}

	ctx := context.Background()
	db, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open test master: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if db.Dialect() == DialectPostgres {
		if _, err := db.SQL().ExecContext(ctx,
			"DROP TABLE IF EXISTS super_admins, users, companies, goose_db_version CASCADE"); err != nil {
			t.Fatalf("reset test master: %v", err)
		}
	}

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrate test master: %v", err)
	}

	return db
}
