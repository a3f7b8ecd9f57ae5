package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/aussiebroadwan/clinic/internal/clinic/store"
	"github.com/aussiebroadwan/clinic/pkg/slogx"
)

// Backup describes one database snapshot on disk.
type Backup struct {
	Path      string    `json:"path"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// BackupService writes timestamped snapshots of the database into Dir.
type BackupService struct {
	Store store.Store
	Dir   string
	Now   func() time.Time
}

func (s *BackupService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// nextPath picks clinic_backup_YYYYMMDD_HHMMSS.db, suffixed when a snapshot
// from the same second already exists.
func (s *BackupService) nextPath(at time.Time) (string, error) {
	base := "clinic_backup_" + at.Format("20060102_150405")
	for i := 0; i < 100; i++ {
		name := base
		if i > 0 {
			name += "_" + strconv.Itoa(i)
		}
		path := filepath.Join(s.Dir, name+".db")
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return path, nil
		} else if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("too many backups at %s", at.Format(time.RFC3339))
}

// Backup snapshots the database. ErrBackupUnsupported on drivers that cannot
// copy themselves (postgres is backed up with its own tooling).
func (s *BackupService) Backup(ctx context.Context) (Backup, error) {
	if err := os.MkdirAll(s.Dir, 0750); err != nil {
		return Backup{}, fmt.Errorf("create backup dir: %w", err)
	}

	at := s.now()
	path, err := s.nextPath(at)
	if err != nil {
		return Backup{}, err
	}

	if err := s.Store.Backup(ctx, path); err != nil {
		if errors.Is(err, store.ErrUnsupported) {
			return Backup{}, ErrBackupUnsupported
		}
		return Backup{}, fmt.Errorf("backup database: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return Backup{}, err
	}

	b := Backup{Path: path, SizeBytes: info.Size(), CreatedAt: at}
	slogx.FromContext(ctx).Info("database backed up",
		slog.String("path", b.Path),
		slog.Int64("size_bytes", b.SizeBytes),
	)
	return b, nil
}
