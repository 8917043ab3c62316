// Package backup takes, prunes and restores system snapshots: a consistent
// copy of the master registry and every tenant store under one timestamped
// directory.
package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/ecmcloud/ecm/internal/database"
	"github.com/ecmcloud/ecm/internal/notify"
)

// ErrBackupDirMissing is returned when the snapshot root does not exist.
// The root is usually a mounted volume, so it is never created implicitly.
var ErrBackupDirMissing = errors.New("backup directory does not exist")

// ErrSnapshotNotFound is returned when a named snapshot does not exist.
var ErrSnapshotNotFound = errors.New("snapshot not found")

const (
	snapshotPrefix = "backup_"
	snapshotLayout = "20060102_150405"
	masterFile     = "master.db"
	dataDirName    = "data"
)

// Options locates the files a snapshot covers.
type Options struct {
	// MasterPath is the SQLite master file. Empty when the registry lives in
	// PostgreSQL, in which case only tenant stores are copied.
	MasterPath    string
	DataDir       string
	BackupDir     string
	RetentionDays int
}

// Uploader copies a finished snapshot file off-site.
type Uploader interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64) error
}

// Snapshot describes one system backup directory.
type Snapshot struct {
	Name      string
	Path      string
	SizeBytes int64
	CreatedAt time.Time
}

// Service manages system snapshots.
type Service struct {
	opts     Options
	uploader Uploader
	notifier notify.Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a backup Service. uploader may be nil.
func NewService(opts Options, uploader Uploader, notifier notify.Notifier, logger *zap.Logger) *Service {
	return &Service{
		opts:     opts,
		uploader: uploader,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Run takes a snapshot, prunes expired ones and uploads the new one when an
// uploader is configured. Failures are reported through the notifier.
func (s *Service) Run(ctx context.Context) (*Snapshot, error) {
	snap, err := s.take(ctx)
	if err != nil {
		s.alert(ctx, "Backup failed", fmt.Sprintf("System backup failed.\n\nError:\n%v", err))
		return nil, err
	}

	if _, err := s.Prune(); err != nil {
		s.logger.Warn("failed to prune old snapshots", zap.Error(err))
	}

	if s.uploader != nil {
		if err := s.upload(ctx, snap); err != nil {
			s.alert(ctx, "Backup upload failed", fmt.Sprintf("Snapshot %s was written locally but could not be uploaded.\n\nError:\n%v", snap.Name, err))
			return snap, err
		}
	}
	return snap, nil
}

func (s *Service) take(ctx context.Context) (*Snapshot, error) {
	if _, err := os.Stat(s.opts.BackupDir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrBackupDirMissing, s.opts.BackupDir)
		}
		return nil, fmt.Errorf("checking backup directory: %w", err)
	}

	now := s.now()
	name := snapshotPrefix + now.Format(snapshotLayout)
	dest := filepath.Join(s.opts.BackupDir, name)
	if err := os.MkdirAll(filepath.Join(dest, dataDirName), 0o755); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}
	s.logger.Info("system backup started", zap.String("snapshot", name))

	if err := s.copyAll(ctx, dest); err != nil {
		_ = os.RemoveAll(dest)
		return nil, err
	}

	size, err := dirSize(dest)
	if err != nil {
		return nil, err
	}
	s.logger.Info("system backup complete",
		zap.String("snapshot", name),
		zap.String("size", humanize.Bytes(uint64(size))),
	)
	return &Snapshot{Name: name, Path: dest, SizeBytes: size, CreatedAt: now}, nil
}

func (s *Service) copyAll(ctx context.Context, dest string) error {
	if s.opts.MasterPath != "" {
		if err := vacuumFile(ctx, s.opts.MasterPath, filepath.Join(dest, masterFile)); err != nil {
			return fmt.Errorf("copying master registry: %w", err)
		}
	} else {
		s.logger.Info("master registry is not a SQLite file, skipping it")
	}

	entries, err := os.ReadDir(s.opts.DataDir)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("data directory not found, no tenant stores copied", zap.String("dir", s.opts.DataDir))
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading data directory: %w", err)
	}

	copied := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".db") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		src := filepath.Join(s.opts.DataDir, e.Name())
		if err := vacuumFile(ctx, src, filepath.Join(dest, dataDirName, e.Name())); err != nil {
			return fmt.Errorf("copying %s: %w", e.Name(), err)
		}
		copied++
	}
	s.logger.Debug("tenant stores copied", zap.Int("count", copied))
	return nil
}

// vacuumFile writes a consistent copy of the SQLite file src to dest while
// other connections may be writing to it.
func vacuumFile(ctx context.Context, src, dest string) error {
	if _, err := os.Stat(src); err != nil {
		return err
	}
	db, err := database.OpenSQLite(ctx, src, database.ModeRead, 1)
	if err != nil {
		return err
	}
	defer db.Close()
	return database.VacuumInto(ctx, db, dest)
}

// List returns the snapshots under the backup directory, newest first.
func (s *Service) List() ([]Snapshot, error) {
	entries, err := os.ReadDir(s.opts.BackupDir)
	if errors.Is(err, fs.ErrNotExist) {
		return []Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	out := []Snapshot{}
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), snapshotPrefix) {
			continue
		}
		created, err := s.createdAt(e)
		if err != nil {
			return nil, err
		}
		path := filepath.Join(s.opts.BackupDir, e.Name())
		size, err := dirSize(path)
		if err != nil {
			return nil, err
		}
		out = append(out, Snapshot{Name: e.Name(), Path: path, SizeBytes: size, CreatedAt: created})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Name > out[j].Name
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// createdAt reads the timestamp from the snapshot name, falling back to the
// directory's modification time for renamed snapshots.
func (s *Service) createdAt(e fs.DirEntry) (time.Time, error) {
	stamp := strings.TrimPrefix(e.Name(), snapshotPrefix)
	if t, err := time.ParseInLocation(snapshotLayout, stamp, time.Local); err == nil {
		return t, nil
	}
	info, err := e.Info()
	if err != nil {
		return time.Time{}, fmt.Errorf("stat %s: %w", e.Name(), err)
	}
	return info.ModTime(), nil
}

// Latest returns the newest snapshot.
func (s *Service) Latest() (*Snapshot, error) {
	snaps, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, ErrSnapshotNotFound
	}
	return &snaps[0], nil
}

// Prune removes snapshots older than the retention period and returns how
// many were removed. A non-positive retention keeps everything.
func (s *Service) Prune() (int, error) {
	if s.opts.RetentionDays <= 0 {
		return 0, nil
	}
	snaps, err := s.List()
	if err != nil {
		return 0, err
	}

	cutoff := s.now().AddDate(0, 0, -s.opts.RetentionDays)
	removed := 0
	var errs []error
	for _, snap := range snaps {
		if !snap.CreatedAt.Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(snap.Path); err != nil {
			errs = append(errs, fmt.Errorf("removing %s: %w", snap.Name, err))
			continue
		}
		s.logger.Info("expired snapshot removed", zap.String("snapshot", snap.Name))
		removed++
	}
	s.logger.Info("snapshot pruning done", zap.Int("removed", removed), zap.Int("remaining", len(snaps)-removed))
	return removed, errors.Join(errs...)
}

// Restore replaces the master registry and the data directory with the
// contents of the named snapshot. The server must be stopped.
//
// Both are copied into staging paths next to their targets first. The live
// files are only swapped out once every copy has succeeded, and the previous
// data directory is kept until its replacement is in place.
func (s *Service) Restore(ctx context.Context, name string) error {
	if name == "" || filepath.Base(name) != name || !strings.HasPrefix(name, snapshotPrefix) {
		return fmt.Errorf("%w: %q", ErrSnapshotNotFound, name)
	}
	src := filepath.Join(s.opts.BackupDir, name)
	if info, err := os.Stat(src); err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %q", ErrSnapshotNotFound, name)
	}

	stamp := s.now().Format(snapshotLayout)

	var stagedData string
	data := filepath.Join(src, dataDirName)
	if _, err := os.Stat(data); err == nil {
		stagedData = s.opts.DataDir + ".restore-" + stamp
		if err := os.RemoveAll(stagedData); err != nil {
			return fmt.Errorf("clearing staging directory: %w", err)
		}
		if err := copyTree(ctx, data, stagedData); err != nil {
			_ = os.RemoveAll(stagedData)
			return fmt.Errorf("staging data directory: %w", err)
		}
	} else {
		s.logger.Warn("snapshot has no data directory", zap.String("snapshot", name))
	}

	var stagedMaster string
	if s.opts.MasterPath != "" {
		master := filepath.Join(src, masterFile)
		if _, err := os.Stat(master); err != nil {
			s.discard(stagedData)
			return fmt.Errorf("snapshot %s has no master registry: %w", name, err)
		}
		stagedMaster = s.opts.MasterPath + ".restore-" + stamp
		if err := copyFile(master, stagedMaster); err != nil {
			s.discard(stagedData)
			_ = os.Remove(stagedMaster)
			return fmt.Errorf("staging master registry: %w", err)
		}
	}

	if err := ctx.Err(); err != nil {
		s.discard(stagedData)
		if stagedMaster != "" {
			_ = os.Remove(stagedMaster)
		}
		return err
	}

	if stagedData != "" {
		old := s.opts.DataDir + ".old-" + stamp
		if err := swapDir(stagedData, s.opts.DataDir, old); err != nil {
			s.discard(stagedData)
			if stagedMaster != "" {
				_ = os.Remove(stagedMaster)
			}
			return fmt.Errorf("replacing data directory: %w", err)
		}
		s.discard(old)
		s.logger.Info("data directory restored", zap.String("snapshot", name))
	}

	if stagedMaster != "" {
		for _, suffix := range []string{"-wal", "-shm"} {
			if err := os.Remove(s.opts.MasterPath + suffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
				_ = os.Remove(stagedMaster)
				return fmt.Errorf("removing stale master %s: %w", suffix, err)
			}
		}
		if err := os.Rename(stagedMaster, s.opts.MasterPath); err != nil {
			_ = os.Remove(stagedMaster)
			return fmt.Errorf("replacing master registry: %w", err)
		}
		s.logger.Info("master registry restored", zap.String("snapshot", name))
	}
	return nil
}

// swapDir moves staged into place at target. An existing target is renamed to
// old first and put back if the swap fails.
func swapDir(staged, target, old string) error {
	hadTarget := true
	if err := os.Rename(target, old); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		hadTarget = false
	}
	if err := os.Rename(staged, target); err != nil {
		if hadTarget {
			if rerr := os.Rename(old, target); rerr != nil {
				return fmt.Errorf("%w (previous directory left at %s: %v)", err, old, rerr)
			}
		}
		return err
	}
	return nil
}

func (s *Service) discard(dir string) {
	if dir == "" {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		s.logger.Warn("failed to remove staging directory", zap.String("dir", dir), zap.Error(err))
	}
}

func (s *Service) upload(ctx context.Context, snap *Snapshot) error {
	return filepath.WalkDir(snap.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(s.opts.BackupDir, path)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			return err
		}
		return s.uploader.Upload(ctx, filepath.ToSlash(rel), f, info.Size())
	})
}

func (s *Service) alert(ctx context.Context, subject, body string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(context.WithoutCancel(ctx), notify.Message{Subject: subject, Body: body}); err != nil {
		s.logger.Error("failed to send backup alert", zap.Error(err))
	}
}

func dirSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("sizing %s: %w", root, err)
	}
	return total, nil
}

func copyTree(ctx context.Context, src, dest string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
