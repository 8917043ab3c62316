package tenant

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/jmoiron/sqlx"
)

// ErrHandleClosed is returned when a handle is used after eviction. Seeing it
// means a caller held on to a handle across a Drop or Evict.
var ErrHandleClosed = errors.New("tenant handle is closed")

// Handle is the open connection pair for one tenant store. Writes go through a
// single-connection pool whose transactions start IMMEDIATE; reads use a
// separate pool.
type Handle struct {
	companyID int64
	path      string
	write     *sqlx.DB
	read      *sqlx.DB
	closed    atomic.Bool
}

// CompanyID returns the owning company's id.
func (h *Handle) CompanyID() int64 {
	return h.companyID
}

// Path returns the store file path.
func (h *Handle) Path() string {
	return h.path
}

// Reader returns the read pool.
func (h *Handle) Reader() *sqlx.DB {
	return h.read
}

// WithTx runs fn in a write transaction that commits when fn returns nil and
// rolls back on every other exit, including panics.
func (h *Handle) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	if h.closed.Load() {
		return ErrHandleClosed
	}

	tx, err := h.write.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning tenant transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing tenant transaction: %w", err)
	}
	return nil
}

// View runs fn against the read pool.
func (h *Handle) View(ctx context.Context, fn func(db *sqlx.DB) error) error {
	if h.closed.Load() {
		return ErrHandleClosed
	}
	return fn(h.read)
}

// checkpoint folds the write-ahead log into the main file without blocking
// readers or writers.
func (h *Handle) checkpoint(ctx context.Context) error {
	_, err := h.write.ExecContext(ctx, "PRAGMA wal_checkpoint(PASSIVE)")
	return err
}

func (h *Handle) close() error {
	if h.closed.Swap(true) {
		return nil
	}
	return errors.Join(h.read.Close(), h.write.Close())
}
