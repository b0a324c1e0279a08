package store

import (
	"time"

	"github.com/MahdiBaghbani/confsync-go/internal/document"
)

// User is a local identity. Users created from the registry carry its
// person id.
type User struct {
	ID           uint   `gorm:"primaryKey"`
	RegistryID   *int64 `gorm:"uniqueIndex"`
	Username     string `gorm:"uniqueIndex;size:150;not null"`
	FirstName    string `gorm:"size:150"`
	LastName     string `gorm:"size:150"`
	Email        string `gorm:"size:254"`
	Synchronized *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasRegistryIdentity reports whether the user is linked to a registry account.
func (u *User) HasRegistryIdentity() bool {
	return u != nil && u.RegistryID != nil
}

// Email address sources. Only registry-sourced addresses are replaced when
// the registry's view of a user is imported.
const (
	SourceRegistry = "registry"
	SourceLocal    = "local"
)

// EmailAddress is one address of a user, unique per user.
type EmailAddress struct {
	ID       uint   `gorm:"primaryKey"`
	UserID   uint   `gorm:"uniqueIndex:idx_email_user_address;not null"`
	Email    string `gorm:"uniqueIndex:idx_email_user_address;index;size:254;not null"`
	Verified bool
	Primary  bool   `gorm:"column:is_primary"`
	Source   string `gorm:"size:16;not null;default:local"`
}

// Contact records that OwnerID may share with ContactID.
type Contact struct {
	OwnerID   uint `gorm:"primaryKey;autoIncrement:false"`
	ContactID uint `gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time
}

// Template is the stored article template.
type Template = document.Template

// Document is an article imported from a registry paper.
type Document struct {
	ID              uint   `gorm:"primaryKey"`
	RegistryPaperID int64  `gorm:"uniqueIndex;not null"`
	Title           string `gorm:"size:255"`
	Path            string `gorm:"size:255"`
	OwnerID         *uint  `gorm:"index"`
	TemplateID      uint
	Content         document.Node `gorm:"serializer:json"`
	Synchronized    *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PendingInvite holds document access for an author who has no verified
// local account yet. It is claimed when a matching address is verified.
type PendingInvite struct {
	ID        uint   `gorm:"primaryKey"`
	Key       string `gorm:"uniqueIndex;size:36;not null"`
	Email     string `gorm:"uniqueIndex;size:254;not null"`
	Username  string `gorm:"size:254"`
	ByID      *uint
	CreatedAt time.Time
}

// HolderKind tags the variant of a Holder.
type HolderKind string

const (
	HolderUser   HolderKind = "user"
	HolderInvite HolderKind = "invite"
)

// Holder is who an access grant is for: a user or a pending invite.
type Holder struct {
	Kind HolderKind
	ID   uint
}

// UserHolder returns the holder for a user.
func UserHolder(id uint) Holder { return Holder{Kind: HolderUser, ID: id} }

// InviteHolder returns the holder for a pending invite.
func InviteHolder(id uint) Holder { return Holder{Kind: HolderInvite, ID: id} }

// Rights granted on documents.
const RightsWrite = "write"

// AccessGrant gives a holder rights on a document. A holder has at most one
// grant per document.
type AccessGrant struct {
	ID         uint       `gorm:"primaryKey"`
	DocumentID uint       `gorm:"uniqueIndex:idx_grant_holder,priority:1;not null"`
	HolderKind HolderKind `gorm:"uniqueIndex:idx_grant_holder,priority:2;index:idx_grant_by_holder,priority:1;size:8;not null"`
	HolderID   uint       `gorm:"uniqueIndex:idx_grant_holder,priority:3;index:idx_grant_by_holder,priority:2;not null"`
	Rights     string     `gorm:"size:16;not null"`
}

// Holder returns the grant's holder.
func (g *AccessGrant) Holder() Holder {
	return Holder{Kind: g.HolderKind, ID: g.HolderID}
}

// SetHolder moves the grant to h.
func (g *AccessGrant) SetHolder(h Holder) {
	g.HolderKind, g.HolderID = h.Kind, h.ID
}

// Error types of the operation log.
const (
	ErrorFetchLogin    = "FL"
	ErrorFetchUserdata = "FU"
	ErrorExportUser    = "EU"
	ErrorExportPapers  = "EP"
	ErrorImportUser    = "IU"
	ErrorImportEmails  = "IE"
	ErrorImportPaper   = "IP"
)

// ImportLog is one operation log entry.
type ImportLog struct {
	ID              uint   `gorm:"primaryKey"`
	RequestID       string `gorm:"size:8;index"`
	Path            string `gorm:"size:255"`
	Success         bool
	ErrorType       string `gorm:"size:2"`
	UserID          *uint  `gorm:"index"`
	Message         string `gorm:"type:text"`
	RegistryPaperID *int64
	Stacktrace      string    `gorm:"type:text"`
	Added           time.Time `gorm:"autoCreateTime;index"`
}

// Models lists every persisted type, for migrations.
func Models() []any {
	return []any{
		&User{},
		&EmailAddress{},
		&Contact{},
		&Template{},
		&Document{},
		&PendingInvite{},
		&AccessGrant{},
		&ImportLog{},
	}
}
