// Package database owns the master registry connection: dialect selection,
// query building and migrations for companies, users and super-admins.
package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
)

// Dialect identifies the SQL engine behind the master registry.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "postgres"
)

// masterMaxOpen bounds the master SQLite pool. Writes still serialize on the
// database lock; the busy timeout absorbs contention.
const masterMaxOpen = 8

// DB wraps the master registry connection pool.
type DB struct {
	db      *sqlx.DB
	dialect Dialect
	path    string
}

// Open connects to the master registry. A postgres:// or postgresql:// DSN
// selects PostgreSQL; anything else is treated as a SQLite file path.
func Open(ctx context.Context, dsn string) (*DB, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		db, err := sqlx.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("opening postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("pinging database: %w", err)
		}
		return &DB{db: db, dialect: DialectPostgres}, nil
	}

	db, err := OpenSQLite(ctx, dsn, ModeWrite, masterMaxOpen)
	if err != nil {
		return nil, err
	}
	return &DB{db: db, dialect: DialectSQLite, path: dsn}, nil
}

// New wraps an existing pool.
func New(db *sqlx.DB, dialect Dialect) *DB {
	return &DB{db: db, dialect: dialect}
}

// Close closes the connection pool.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping verifies the database connection is alive.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// SQL returns the underlying pool for repository use.
func (d *DB) SQL() *sqlx.DB {
	return d.db
}

// Dialect reports the engine in use.
func (d *DB) Dialect() Dialect {
	return d.dialect
}

// Path returns the SQLite file path, or "" for PostgreSQL.
func (d *DB) Path() string {
	return d.path
}

// Size reports the on-disk size of the registry: the database file plus its
// WAL for SQLite, pg_database_size for PostgreSQL.
func (d *DB) Size(ctx context.Context) (int64, error) {
	if d.dialect == DialectPostgres {
		var n int64
		if err := d.db.GetContext(ctx, &n, "SELECT pg_database_size(current_database())"); err != nil {
			return 0, fmt.Errorf("querying database size: %w", err)
		}
		return n, nil
	}

	var total int64
	for _, p := range []string{d.path, d.path + "-wal"} {
		info, err := os.Stat(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("stat %s: %w", p, err)
		}
		total += info.Size()
	}
	return total, nil
}

// VacuumInto writes a transactionally consistent copy of a SQLite database to
// dest. dest must not exist.
func VacuumInto(ctx context.Context, db *sqlx.DB, dest string) error {
	if _, err := db.ExecContext(ctx, "VACUUM INTO ?", dest); err != nil {
		return fmt.Errorf("vacuum into %s: %w", dest, err)
	}
	return nil
}

// Builder returns a squirrel statement builder with the dialect's placeholders.
func (d *DB) Builder() sq.StatementBuilderType {
	return BuilderFor(d.dialect)
}

// BuilderFor returns a squirrel statement builder for dialect.
func BuilderFor(dialect Dialect) sq.StatementBuilderType {
	if dialect == DialectPostgres {
		return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

// WithTx runs fn inside a transaction, committing when fn returns nil and
// rolling back otherwise.
func WithTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
