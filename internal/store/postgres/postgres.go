// Package postgres implements the "postgres" store driver: GORM's postgres
// dialect over a pgx connection pool.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/MahdiBaghbani/confsync-go/internal/platform/logutil"
	"github.com/MahdiBaghbani/confsync-go/internal/store"
	"github.com/MahdiBaghbani/confsync-go/internal/store/gormstore"
)

func init() {
	store.Register("postgres", Open)
}

// Open connects with cfg.DSN, verifies the connection and runs migrations.
func Open(ctx context.Context, cfg *store.DriverConfig, log *slog.Logger) (store.Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("dsn is required for postgres driver")
	}
	log = logutil.NoopIfNil(log)

	sqlDB, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := gormstore.New(db, "postgres")
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}

	log.Info("store opened", "driver", "postgres")
	return s, nil
}
