package database

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// SQLite DSN parameters shared by the master store and every tenant store.
const (
	busyTimeoutMillis = "30000"
	synchronousMode   = "NORMAL"
	journalMode       = "WAL"
)

// Mode selects how a SQLite pool is configured.
type Mode string

const (
	// ModeWrite opens a pool whose transactions take the write lock up front
	// (_txlock=immediate). maxOpen defaults to 1.
	ModeWrite Mode = "write"
	// ModeRead opens a pool for concurrent readers. maxOpen defaults to 4.
	ModeRead Mode = "read"
)

// OpenSQLite opens a pool for the SQLite file at path. Every mode sets WAL
// journaling, a 30s busy timeout, synchronous=NORMAL and foreign keys on.
func OpenSQLite(ctx context.Context, path string, mode Mode, maxOpen int) (*sqlx.DB, error) {
	switch mode {
	case ModeWrite:
		if maxOpen <= 0 {
			maxOpen = 1
		}
	case ModeRead:
		if maxOpen <= 0 {
			maxOpen = 4
		}
	default:
		return nil, fmt.Errorf("invalid SQLite mode %q", mode)
	}

	db, err := sqlx.Open("sqlite3", buildDSN(path, mode))
	if err != nil {
		return nil, fmt.Errorf("opening sqlite (%s): %w", mode, err)
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sqlite (%s): %w", mode, err)
	}

	return db, nil
}

// OpenSQLitePair opens a single-connection write pool and a read pool for the
// same file.
func OpenSQLitePair(ctx context.Context, path string, readMaxOpen int) (writeDB, readDB *sqlx.DB, err error) {
	writeDB, err = OpenSQLite(ctx, path, ModeWrite, 1)
	if err != nil {
		return nil, nil, err
	}

	readDB, err = OpenSQLite(ctx, path, ModeRead, readMaxOpen)
	if err != nil {
		_ = writeDB.Close()
		return nil, nil, err
	}

	return writeDB, readDB, nil
}

func buildDSN(path string, mode Mode) string {
	params := url.Values{}
	params.Set("_journal_mode", journalMode)
	params.Set("_busy_timeout", busyTimeoutMillis)
	params.Set("_synchronous", synchronousMode)
	params.Set("_foreign_keys", "on")

	if mode == ModeWrite {
		params.Set("_txlock", "immediate")
	}

	return path + "?" + params.Encode()
}
