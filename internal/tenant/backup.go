package tenant

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ecmcloud/ecm/internal/database"
)

// ErrBackupNotFound is returned when a named backup does not exist.
var ErrBackupNotFound = errors.New("backup not found")

// ErrInvalidBackupName is returned for file names that are not backups or that
// try to escape the company's backup directory.
var ErrInvalidBackupName = errors.New("invalid backup file name")

const backupTimeLayout = "20060102_150405"

var backupNamePattern = regexp.MustCompile(`^backup_\d{8}_\d{6}(_\d+)?\.db$`)
var companyDirPattern = regexp.MustCompile(`^company_(\d+)$`)

// Backup describes a single backup file on disk.
type Backup struct {
	CompanyID int64     `json:"companyId"`
	Filename  string    `json:"filename"`
	Path      string    `json:"-"`
	SizeBytes int64     `json:"sizeBytes"`
	CreatedAt time.Time `json:"createdAt"`
}

func (m *Manager) companyBackupDir(companyID int64) string {
	return filepath.Join(m.backupDir, fmt.Sprintf("company_%d", companyID))
}

// Backup writes a consistent copy of a company's store to
// backups/company_{id}/backup_{timestamp}.db. The store must already exist.
func (m *Manager) Backup(ctx context.Context, companyID int64) (*Backup, error) {
	if !m.StoreExists(companyID) {
		return nil, ErrStoreNotFound
	}

	if _, err := m.Get(ctx, companyID); err != nil {
		backupsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	lock := m.lockFor(companyID)
	lock.Lock()
	defer lock.Unlock()

	// A Drop may have run between Get and taking the lock.
	h, ok := m.cached(companyID)
	if !ok {
		return nil, ErrStoreNotFound
	}

	dir := m.companyBackupDir(companyID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		backupsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("creating backup directory: %w", err)
	}

	now := time.Now()
	dest := uniqueBackupPath(dir, now)

	err := h.View(ctx, func(db *sqlx.DB) error {
		return database.VacuumInto(ctx, db, dest)
	})
	if err != nil {
		backupsTotal.WithLabelValues("error").Inc()
		_ = os.Remove(dest)
		return nil, fmt.Errorf("backing up company %d: %w", companyID, err)
	}

	info, err := os.Stat(dest)
	if err != nil {
		backupsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("reading backup file: %w", err)
	}

	backupsTotal.WithLabelValues("success").Inc()
	m.logger.Info("tenant backup created",
		zap.Int64("companyId", companyID),
		zap.String("file", filepath.Base(dest)),
		zap.Int64("bytes", info.Size()),
	)

	return &Backup{
		CompanyID: companyID,
		Filename:  filepath.Base(dest),
		Path:      dest,
		SizeBytes: info.Size(),
		CreatedAt: info.ModTime(),
	}, nil
}

func uniqueBackupPath(dir string, now time.Time) string {
	base := "backup_" + now.Format(backupTimeLayout)
	p := filepath.Join(dir, base+".db")
	for i := 1; ; i++ {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			return p
		}
		p = filepath.Join(dir, base+"_"+strconv.Itoa(i)+".db")
	}
}

// ListBackups returns every backup under the backup root, newest first.
// Backups of deleted companies are included.
func (m *Manager) ListBackups() ([]Backup, error) {
	entries, err := os.ReadDir(m.backupDir)
	if errors.Is(err, fs.ErrNotExist) {
		return []Backup{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading backup root: %w", err)
	}

	backups := []Backup{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		match := companyDirPattern.FindStringSubmatch(e.Name())
		if match == nil {
			continue
		}
		id, err := strconv.ParseInt(match[1], 10, 64)
		if err != nil {
			continue
		}
		list, err := m.ListCompanyBackups(id)
		if err != nil {
			return nil, err
		}
		backups = append(backups, list...)
	}

	sortNewestFirst(backups)
	return backups, nil
}

// ListCompanyBackups returns a single company's backups, newest first.
func (m *Manager) ListCompanyBackups(companyID int64) ([]Backup, error) {
	dir := m.companyBackupDir(companyID)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []Backup{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading backups for company %d: %w", companyID, err)
	}

	backups := []Backup{}
	for _, e := range entries {
		if e.IsDir() || !backupNamePattern.MatchString(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		backups = append(backups, Backup{
			CompanyID: companyID,
			Filename:  e.Name(),
			Path:      filepath.Join(dir, e.Name()),
			SizeBytes: info.Size(),
			CreatedAt: info.ModTime(),
		})
	}

	sortNewestFirst(backups)
	return backups, nil
}

func sortNewestFirst(backups []Backup) {
	sort.SliceStable(backups, func(i, j int) bool {
		if backups[i].CreatedAt.Equal(backups[j].CreatedAt) {
			return backups[i].Filename > backups[j].Filename
		}
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
}

// DeleteBackup removes one backup file. The company's backup directory is
// removed when it becomes empty.
func (m *Manager) DeleteBackup(companyID int64, filename string) error {
	if strings.ContainsAny(filename, `/\`) || !backupNamePattern.MatchString(filename) {
		return ErrInvalidBackupName
	}

	dir := m.companyBackupDir(companyID)
	if err := os.Remove(filepath.Join(dir, filename)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrBackupNotFound
		}
		return fmt.Errorf("deleting backup: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if err == nil && len(entries) == 0 {
		_ = os.Remove(dir)
	}

	m.logger.Info("tenant backup deleted", zap.Int64("companyId", companyID), zap.String("file", filename))
	return nil
}
