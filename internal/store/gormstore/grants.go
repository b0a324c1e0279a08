package gormstore

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/MahdiBaghbani/confsync-go/internal/store"
)

// GetOrCreateInvite returns the invite for email or creates one with a
// fresh key.
func (s *Store) GetOrCreateInvite(ctx context.Context, email string, init func(*store.PendingInvite)) (*store.PendingInvite, bool, error) {
	email = strings.ToLower(email)
	if inv, err := first[store.PendingInvite](s.conn(ctx), "email = ?", email); err == nil {
		return inv, false, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	inv := &store.PendingInvite{Key: uuid.NewString(), Email: email}
	if init != nil {
		init(inv)
	}
	res := s.conn(ctx).Clauses(onConflictDoNothing("email")).Create(inv)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 0 {
		existing, err := first[store.PendingInvite](s.conn(ctx), "email = ?", email)
		return existing, false, err
	}
	return inv, true, nil
}

// ListInvitesByEmail returns the invites for any of emails.
func (s *Store) ListInvitesByEmail(ctx context.Context, emails []string) ([]store.PendingInvite, error) {
	if len(emails) == 0 {
		return nil, nil
	}
	lower := make([]string, len(emails))
	for i, e := range emails {
		lower[i] = strings.ToLower(e)
	}
	var out []store.PendingInvite
	if err := s.conn(ctx).Where("email IN ?", lower).Order("id").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteInvite removes an invite. Grants held by it must be moved or
// deleted first.
func (s *Store) DeleteInvite(ctx context.Context, id uint) error {
	return s.conn(ctx).Delete(&store.PendingInvite{}, id).Error
}

// GetOrCreateGrant returns the holder's grant on the document, creating it
// with rights when absent. Existing rights are kept.
func (s *Store) GetOrCreateGrant(ctx context.Context, documentID uint, holder store.Holder, rights string) (*store.AccessGrant, error) {
	g := &store.AccessGrant{DocumentID: documentID, Rights: rights}
	g.SetHolder(holder)
	err := s.conn(ctx).
		Clauses(onConflictDoNothing("document_id", "holder_kind", "holder_id")).
		Create(g).Error
	if err != nil {
		return nil, err
	}
	return s.FindGrant(ctx, documentID, holder)
}

// FindGrant returns the holder's grant on the document.
func (s *Store) FindGrant(ctx context.Context, documentID uint, holder store.Holder) (*store.AccessGrant, error) {
	return first[store.AccessGrant](s.conn(ctx),
		"document_id = ? AND holder_kind = ? AND holder_id = ?", documentID, holder.Kind, holder.ID)
}

// ListGrantsByDocument returns the grants on a document.
func (s *Store) ListGrantsByDocument(ctx context.Context, documentID uint) ([]store.AccessGrant, error) {
	var out []store.AccessGrant
	if err := s.conn(ctx).Where("document_id = ?", documentID).Order("id").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListGrantsByHolder returns the grants held by holder.
func (s *Store) ListGrantsByHolder(ctx context.Context, holder store.Holder) ([]store.AccessGrant, error) {
	var out []store.AccessGrant
	err := s.conn(ctx).
		Where("holder_kind = ? AND holder_id = ?", holder.Kind, holder.ID).
		Order("id").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SaveGrant updates a grant.
func (s *Store) SaveGrant(ctx context.Context, g *store.AccessGrant) error {
	return duplicate(s.conn(ctx).Save(g).Error)
}

// DeleteGrant removes a grant.
func (s *Store) DeleteGrant(ctx context.Context, id uint) error {
	return s.conn(ctx).Delete(&store.AccessGrant{}, id).Error
}

// DeleteGrantsByHolder removes every grant held by holder.
func (s *Store) DeleteGrantsByHolder(ctx context.Context, holder store.Holder) error {
	return s.conn(ctx).
		Where("holder_kind = ? AND holder_id = ?", holder.Kind, holder.ID).
		Delete(&store.AccessGrant{}).Error
}

// DeleteDocumentGrantsExcept removes the document's grants not in keep.
func (s *Store) DeleteDocumentGrantsExcept(ctx context.Context, documentID uint, keep []uint) error {
	q := s.conn(ctx).Where("document_id = ?", documentID)
	if len(keep) > 0 {
		q = q.Where("id NOT IN ?", keep)
	}
	return q.Delete(&store.AccessGrant{}).Error
}
