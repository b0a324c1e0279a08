// Package sqlite implements the "sqlite" store driver using GORM.
package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/MahdiBaghbani/confsync-go/internal/platform/logutil"
	"github.com/MahdiBaghbani/confsync-go/internal/store"
	"github.com/MahdiBaghbani/confsync-go/internal/store/gormstore"
)

// FileName is the database file created under the data directory.
const FileName = "confsync.db"

func init() {
	store.Register("sqlite", Open)
}

// dsn enables WAL and takes the write lock when a transaction begins, so
// concurrent imports queue on busy_timeout instead of failing to upgrade.
func dsn(path string) string {
	return "file:" + path + "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on&_txlock=immediate"
}

// Open opens (creating if needed) the database under cfg.DataDir and runs
// migrations.
func Open(ctx context.Context, cfg *store.DriverConfig, log *slog.Logger) (store.Store, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data_dir is required for sqlite driver")
	}
	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	log = logutil.NoopIfNil(log)

	path := filepath.Join(cfg.DataDir, FileName)
	db, err := gorm.Open(sqlite.Open(dsn(path)), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	s := gormstore.New(db, "sqlite")
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}

	log.Info("store opened", "driver", "sqlite", "path", path)
	return s, nil
}
