// Package tenant manages the per-company SQLite stores: opening and caching
// handles, provisioning schema and seed data, dropping stores and taking
// backups.
package tenant

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ecmcloud/ecm/internal/database"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// ErrProvisioning is returned when the data directory cannot be created.
var ErrProvisioning = errors.New("tenant store could not be provisioned")

// ErrTenantUnavailable is returned when a store exists but cannot be opened
// or migrated, for example because the file is corrupt.
var ErrTenantUnavailable = errors.New("tenant store is unavailable")

// ErrStoreNotFound is returned when an operation needs an existing store file.
var ErrStoreNotFound = errors.New("tenant store not found")

const readPoolSize = 4

// Manager owns every open tenant handle in the process. At most one handle
// exists per company id.
type Manager struct {
	dataDir   string
	backupDir string
	logger    *zap.Logger

	mu      sync.Mutex
	handles map[int64]*Handle

	// opens collapses concurrent first access to the same store.
	opens singleflight.Group
	// keyLocks serializes opening, dropping and backing up a single store.
	keyLocks sync.Map
}

// NewManager creates a Manager storing tenant files under dataDir and backups
// under backupDir.
func NewManager(dataDir, backupDir string, logger *zap.Logger) *Manager {
	return &Manager{
		dataDir:   dataDir,
		backupDir: backupDir,
		logger:    logger,
		handles:   make(map[int64]*Handle),
	}
}

// StorePath returns the file path of a company's store.
func (m *Manager) StorePath(companyID int64) string {
	return filepath.Join(m.dataDir, fmt.Sprintf("company_%d.db", companyID))
}

// DataDir returns the directory holding tenant stores.
func (m *Manager) DataDir() string {
	return m.dataDir
}

func (m *Manager) lockFor(companyID int64) *sync.Mutex {
	v, _ := m.keyLocks.LoadOrStore(companyID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func (m *Manager) cached(companyID int64) (*Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.handles[companyID]
	return h, ok
}

// Get returns the handle for a company's store, creating, migrating and
// seeding the store on first access.
func (m *Manager) Get(ctx context.Context, companyID int64) (*Handle, error) {
	if h, ok := m.cached(companyID); ok {
		cacheHits.Inc()
		return h, nil
	}

	v, err, _ := m.opens.Do(strconv.FormatInt(companyID, 10), func() (any, error) {
		lock := m.lockFor(companyID)
		lock.Lock()
		defer lock.Unlock()

		if h, ok := m.cached(companyID); ok {
			return h, nil
		}

		cacheMisses.Inc()
		h, err := m.open(context.WithoutCancel(ctx), companyID)
		if err != nil {
			provisionFailures.Inc()
			return nil, err
		}

		m.mu.Lock()
		m.handles[companyID] = h
		m.mu.Unlock()
		openHandles.Inc()

		return h, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Handle), nil
}

// Provision creates and seeds a company's store without returning the handle.
func (m *Manager) Provision(ctx context.Context, companyID int64) error {
	_, err := m.Get(ctx, companyID)
	return err
}

func (m *Manager) open(ctx context.Context, companyID int64) (*Handle, error) {
	if err := os.MkdirAll(m.dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating data directory: %w", ErrProvisioning, err)
	}

	path := m.StorePath(companyID)
	write, read, err := database.OpenSQLitePair(ctx, path, readPoolSize)
	if err != nil {
		return nil, fmt.Errorf("%w: company %d: %w", ErrTenantUnavailable, companyID, err)
	}

	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		_ = read.Close()
		_ = write.Close()
		return nil, fmt.Errorf("locating tenant migrations: %w", err)
	}

	if err := database.RunMigrations(ctx, write.DB, database.DialectSQLite, sub); err != nil {
		_ = read.Close()
		_ = write.Close()
		return nil, fmt.Errorf("%w: company %d: %w", ErrTenantUnavailable, companyID, err)
	}

	m.logger.Debug("tenant store opened", zap.Int64("companyId", companyID), zap.String("path", path))
	return &Handle{companyID: companyID, path: path, write: write, read: read}, nil
}

// Evict removes a company's handle from the cache and closes it. Evicting an
// uncached company is a no-op.
func (m *Manager) Evict(companyID int64) error {
	m.mu.Lock()
	h, ok := m.handles[companyID]
	delete(m.handles, companyID)
	m.mu.Unlock()

	if !ok {
		return nil
	}
	openHandles.Dec()
	if err := h.close(); err != nil {
		return fmt.Errorf("closing tenant store %d: %w", companyID, err)
	}
	return nil
}

// Drop evicts the company's handle, then deletes its store file, its WAL and
// shared-memory files and its backup directory. Missing files are ignored.
func (m *Manager) Drop(ctx context.Context, companyID int64) error {
	lock := m.lockFor(companyID)
	lock.Lock()
	defer lock.Unlock()

	if err := m.Evict(companyID); err != nil {
		m.logger.Warn("closing tenant store before drop", zap.Int64("companyId", companyID), zap.Error(err))
	}

	path := m.StorePath(companyID)
	var errs []error
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if err := os.RemoveAll(m.companyBackupDir(companyID)); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("dropping tenant store %d: %w", companyID, err)
	}

	m.logger.Info("tenant store dropped", zap.Int64("companyId", companyID))
	return nil
}

// StoreExists reports whether the company's store file is on disk.
func (m *Manager) StoreExists(companyID int64) bool {
	_, err := os.Stat(m.StorePath(companyID))
	return err == nil
}

// StoreSize returns the on-disk size of the store including its WAL. A
// missing store has size zero.
func (m *Manager) StoreSize(companyID int64) (int64, error) {
	var total int64
	path := m.StorePath(companyID)
	for _, p := range []string{path, path + "-wal"} {
		info, err := os.Stat(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("sizing tenant store %d: %w", companyID, err)
		}
		total += info.Size()
	}
	return total, nil
}

// CheckpointAll folds every open store's WAL into its main file. Errors are
// logged; a busy store is simply left for the next checkpoint.
func (m *Manager) CheckpointAll(ctx context.Context) {
	m.mu.Lock()
	handles := make([]*Handle, 0, len(m.handles))
	for _, h := range m.handles {
		handles = append(handles, h)
	}
	m.mu.Unlock()

	for _, h := range handles {
		if err := h.checkpoint(ctx); err != nil {
			m.logger.Warn("tenant checkpoint failed", zap.Int64("companyId", h.companyID), zap.Error(err))
		}
	}
}

// Len returns the number of open handles.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handles)
}

// Close closes every open handle.
func (m *Manager) Close() error {
	m.mu.Lock()
	handles := m.handles
	m.handles = make(map[int64]*Handle)
	m.mu.Unlock()

	var errs []error
	for id, h := range handles {
		openHandles.Dec()
		if err := h.close(); err != nil {
			errs = append(errs, fmt.Errorf("closing tenant store %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
