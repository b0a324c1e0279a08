package gormstore

import (
	"context"

	"github.com/MahdiBaghbani/confsync-go/internal/store"
)

const defaultLogLimit = 100

// AppendImportLog inserts a log entry.
func (s *Store) AppendImportLog(ctx context.Context, e *store.ImportLog) error {
	return s.conn(ctx).Create(e).Error
}

// ListImportLogs returns matching entries, newest first.
func (s *Store) ListImportLogs(ctx context.Context, f store.ImportLogFilter) ([]store.ImportLog, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultLogLimit
	}

	q := s.conn(ctx).Order("added DESC").Order("id DESC").Limit(limit)
	if f.RequestID != "" {
		q = q.Where("request_id = ?", f.RequestID)
	}
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}

	var out []store.ImportLog
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
