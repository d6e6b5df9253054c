package services

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/srbio/internal/backup"
	"github.com/dmitrijs2005/srbio/internal/logging"
	"github.com/dmitrijs2005/srbio/internal/repositories/repomanager"
)

// SnapshotUploader ships a snapshot file to remote storage.
type SnapshotUploader interface {
	Upload(ctx context.Context, key, path string) (*backup.Result, error)
}

type DBService struct {
	repos    repomanager.RepositoryManager
	uploader SnapshotUploader
	logger   logging.Logger
	now      func() time.Time
}

func NewDBService(m repomanager.RepositoryManager, uploader SnapshotUploader, logger logging.Logger) *DBService {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &DBService{repos: m, uploader: uploader, logger: logger.With("module", "db"), now: time.Now}
}

func (s *DBService) Status(ctx context.Context) (*repomanager.StoreStatus, error) {
	return s.repos.Status(ctx)
}

func (s *DBService) Optimize(ctx context.Context) error {
	return s.repos.Optimize(context.WithoutCancel(ctx))
}

// Backup snapshots the store into a temporary file and uploads it.
func (s *DBService) Backup(ctx context.Context) (*backup.Result, error) {
	ctx = context.WithoutCancel(ctx)

	dir, err := os.MkdirTemp("", "srbio-backup-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "snapshot.db")
	if err := s.repos.Snapshot(ctx, path); err != nil {
		return nil, err
	}

	res, err := s.uploader.Upload(ctx, backup.SnapshotKey(s.now()), path)
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "store backed up", "bucket", res.Bucket, "key", res.Key, "size", res.Size)
	return res, nil
}
