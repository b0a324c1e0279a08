package gormstore

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/MahdiBaghbani/confsync-go/internal/store"
)

// GetUser returns a user by local id.
func (s *Store) GetUser(ctx context.Context, id uint) (*store.User, error) {
	return first[store.User](s.conn(ctx), "id = ?", id)
}

// GetUserByRegistryID returns the user linked to a registry person id.
func (s *Store) GetUserByRegistryID(ctx context.Context, registryID int64) (*store.User, error) {
	return first[store.User](s.conn(ctx), "registry_id = ?", registryID)
}

// GetUserByUsername returns a user by username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	return first[store.User](s.conn(ctx), "username = ?", username)
}

// CreateUser inserts a new user.
func (s *Store) CreateUser(ctx context.Context, u *store.User) error {
	return duplicate(s.conn(ctx).Create(u).Error)
}

// SaveUser updates all fields of an existing user.
func (s *Store) SaveUser(ctx context.Context, u *store.User) error {
	return duplicate(s.conn(ctx).Save(u).Error)
}

// FindEmailAddress returns the user's row for email.
func (s *Store) FindEmailAddress(ctx context.Context, userID uint, email string) (*store.EmailAddress, error) {
	return first[store.EmailAddress](s.conn(ctx), "user_id = ? AND email = ?", userID, strings.ToLower(email))
}

// FindVerifiedEmail returns the lowest-id verified address matching email.
func (s *Store) FindVerifiedEmail(ctx context.Context, email string) (*store.EmailAddress, error) {
	var a store.EmailAddress
	err := s.conn(ctx).
		Where("email = ? AND verified = ?", strings.ToLower(email), true).
		Order("id").
		First(&a).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

// ListEmailAddresses returns the user's addresses ordered by id.
func (s *Store) ListEmailAddresses(ctx context.Context, userID uint) ([]store.EmailAddress, error) {
	var out []store.EmailAddress
	if err := s.conn(ctx).Where("user_id = ?", userID).Order("id").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// SaveEmailAddress inserts or updates an address.
func (s *Store) SaveEmailAddress(ctx context.Context, a *store.EmailAddress) error {
	a.Email = strings.ToLower(a.Email)
	return duplicate(s.conn(ctx).Save(a).Error)
}

// DeleteRegistryEmailsExcept removes registry-sourced addresses not in keep.
func (s *Store) DeleteRegistryEmailsExcept(ctx context.Context, userID uint, keep []uint) error {
	q := s.conn(ctx).Where("user_id = ? AND source = ?", userID, store.SourceRegistry)
	if len(keep) > 0 {
		q = q.Where("id NOT IN ?", keep)
	}
	return q.Delete(&store.EmailAddress{}).Error
}

// SetPrimaryEmail makes a the user's only primary address.
func (s *Store) SetPrimaryEmail(ctx context.Context, a *store.EmailAddress) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&store.EmailAddress{}).
			Where("user_id = ? AND id <> ?", a.UserID, a.ID).
			Update("is_primary", false).Error; err != nil {
			return err
		}
		if err := tx.Model(a).Update("is_primary", true).Error; err != nil {
			return err
		}
		a.Primary = true
		return tx.Model(&store.User{ID: a.UserID}).Update("email", a.Email).Error
	})
}

// AddContact records ownerID -> contactID once.
func (s *Store) AddContact(ctx context.Context, ownerID, contactID uint) error {
	return s.conn(ctx).
		Clauses(onConflictDoNothing("owner_id", "contact_id")).
		Create(&store.Contact{OwnerID: ownerID, ContactID: contactID}).Error
}

// ListContacts returns the contact ids of ownerID.
func (s *Store) ListContacts(ctx context.Context, ownerID uint) ([]uint, error) {
	var ids []uint
	err := s.conn(ctx).Model(&store.Contact{}).
		Where("owner_id = ?", ownerID).
		Order("contact_id").
		Pluck("contact_id", &ids).Error
	return ids, err
}
