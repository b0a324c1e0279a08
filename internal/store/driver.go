// Package store defines the persisted records of the sync service and the
// driver-agnostic interfaces over them.
package store

import (
	"context"
	"errors"

	"github.com/MahdiBaghbani/confsync-go/internal/document"
)

// Common errors for store operations.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// Store is the full persistence surface. Implementations must be safe for
// concurrent use.
type Store interface {
	UserStore
	EmailStore
	ContactStore
	document.TemplateRepository
	DocumentStore
	InviteStore
	GrantStore
	ImportLogStore

	// WithTx runs fn in a transaction. The Store passed to fn is bound to
	// the transaction; fn returning an error rolls it back. Nested calls
	// use savepoints.
	WithTx(ctx context.Context, fn func(tx Store) error) error

	// Name returns the driver name.
	Name() string

	// Close releases resources held by the driver.
	Close() error
}

// UserStore persists local identities.
type UserStore interface {
	GetUser(ctx context.Context, id uint) (*User, error)
	GetUserByRegistryID(ctx context.Context, registryID int64) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	CreateUser(ctx context.Context, u *User) error
	SaveUser(ctx context.Context, u *User) error
}

// EmailStore persists email addresses.
type EmailStore interface {
	FindEmailAddress(ctx context.Context, userID uint, email string) (*EmailAddress, error)
	// FindVerifiedEmail returns a verified address with email, owned by any user.
	FindVerifiedEmail(ctx context.Context, email string) (*EmailAddress, error)
	ListEmailAddresses(ctx context.Context, userID uint) ([]EmailAddress, error)
	SaveEmailAddress(ctx context.Context, a *EmailAddress) error
	// DeleteRegistryEmailsExcept removes the user's registry-sourced
	// addresses whose id is not in keep.
	DeleteRegistryEmailsExcept(ctx context.Context, userID uint, keep []uint) error
	// SetPrimaryEmail marks a as the user's only primary address and
	// copies it to User.Email.
	SetPrimaryEmail(ctx context.Context, a *EmailAddress) error
}

// ContactStore persists the contact lists used for sharing.
type ContactStore interface {
	// AddContact is idempotent.
	AddContact(ctx context.Context, ownerID, contactID uint) error
	ListContacts(ctx context.Context, ownerID uint) ([]uint, error)
}

// DocumentStore persists documents.
type DocumentStore interface {
	GetDocument(ctx context.Context, id uint) (*Document, error)
	GetDocumentByPaperID(ctx context.Context, paperID int64) (*Document, error)
	// LockDocument re-reads the document holding a row lock until the
	// surrounding transaction ends.
	LockDocument(ctx context.Context, id uint) (*Document, error)
	CreateDocument(ctx context.Context, d *Document) error
	SaveDocument(ctx context.Context, d *Document) error
	ListDocumentsByOwner(ctx context.Context, ownerID uint) ([]Document, error)
}

// InviteStore persists pending invites.
type InviteStore interface {
	// GetOrCreateInvite returns the invite for email, creating it with init
	// applied when there is none.
	GetOrCreateInvite(ctx context.Context, email string, init func(*PendingInvite)) (inv *PendingInvite, created bool, err error)
	ListInvitesByEmail(ctx context.Context, emails []string) ([]PendingInvite, error)
	DeleteInvite(ctx context.Context, id uint) error
}

// GrantStore persists document access grants.
type GrantStore interface {
	GetOrCreateGrant(ctx context.Context, documentID uint, holder Holder, rights string) (*AccessGrant, error)
	FindGrant(ctx context.Context, documentID uint, holder Holder) (*AccessGrant, error)
	ListGrantsByDocument(ctx context.Context, documentID uint) ([]AccessGrant, error)
	ListGrantsByHolder(ctx context.Context, holder Holder) ([]AccessGrant, error)
	SaveGrant(ctx context.Context, g *AccessGrant) error
	DeleteGrant(ctx context.Context, id uint) error
	DeleteGrantsByHolder(ctx context.Context, holder Holder) error
	// DeleteDocumentGrantsExcept removes the document's grants whose id is
	// not in keep.
	DeleteDocumentGrantsExcept(ctx context.Context, documentID uint, keep []uint) error
}

// ImportLogStore appends and lists operation log entries. Entries are
// never updated.
type ImportLogStore interface {
	AppendImportLog(ctx context.Context, e *ImportLog) error
	ListImportLogs(ctx context.Context, f ImportLogFilter) ([]ImportLog, error)
}

// ImportLogFilter selects log entries, newest first.
type ImportLogFilter struct {
	RequestID string
	UserID    *uint
	// Limit caps the result; zero means 100.
	Limit int
}
