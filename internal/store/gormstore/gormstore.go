// Package gormstore implements store.Store on GORM. The sqlite and postgres
// drivers only differ in how they open the connection.
package gormstore

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MahdiBaghbani/confsync-go/internal/store"
)

// Store implements store.Store over a *gorm.DB.
type Store struct {
	db   *gorm.DB
	name string
	tx   bool
}

// New wraps an open database. Migrate must be called before use.
func New(db *gorm.DB, name string) *Store {
	return &Store{db: db, name: name}
}

// Migrate creates or updates the schema for every model.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(store.Models()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Name returns the driver name.
func (s *Store) Name() string {
	return s.name
}

// DB exposes the underlying handle for driver tests.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close closes the connection pool. Closing a transaction-bound store is a
// no-op.
func (s *Store) Close() error {
	if s.tx || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithTx runs fn inside a transaction. Called on a transaction-bound store
// it opens a savepoint.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, name: s.name, tx: true})
	})
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// notFound maps gorm's sentinel to store.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	return err
}

// duplicate maps unique constraint violations to store.ErrAlreadyExists.
// Requires TranslateError in the gorm config.
func duplicate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return store.ErrAlreadyExists
	}
	return err
}

func first[T any](db *gorm.DB, query any, args ...any) (*T, error) {
	var v T
	if err := db.Where(query, args...).First(&v).Error; err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

var forUpdate = clause.Locking{Strength: "UPDATE"}

func onConflictDoNothing(columns ...string) clause.OnConflict {
	cols := make([]clause.Column, len(columns))
	for i, c := range columns {
		cols[i] = clause.Column{Name: c}
	}
	return clause.OnConflict{Columns: cols, DoNothing: true}
}

var _ store.Store = (*Store)(nil)
