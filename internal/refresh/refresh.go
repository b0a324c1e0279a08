// Package refresh orchestrates registry calls and imports for the user
// facing operations: login, refreshing one's submissions and refreshing
// one's profile. Every unit is recorded in the operation log.
package refresh

import (
	"context"
	"errors"
	"log/slog"

	"github.com/MahdiBaghbani/confsync-go/internal/importer"
	"github.com/MahdiBaghbani/confsync-go/internal/oplog"
	"github.com/MahdiBaghbani/confsync-go/internal/platform/logutil"
	"github.com/MahdiBaghbani/confsync-go/internal/registry"
	"github.com/MahdiBaghbani/confsync-go/internal/store"
)

var (
	// ErrInvalidCredentials is returned when the registry rejects a login.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNoRegistryIdentity is returned for users not linked to the registry.
	ErrNoRegistryIdentity = errors.New("user has no registry identity")
)

// Registry is the part of the registry client the service uses.
type Registry interface {
	Login(ctx context.Context, username, password string) (*registry.LoginResult, error)
	UserInfo(ctx context.Context, username string) (*registry.UserInfo, error)
	ExportUser(ctx context.Context, id int64) (*registry.UserExport, error)
	ExportPapers(ctx context.Context, ids []int64) (*registry.Stream[registry.PaperExport], error)
}

// Status is the overall result of a refresh.
type Status string

const (
	StatusOK      Status = "ok"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// Messages shown to the user.
const (
	MessageNoPapers        = "No submissions to import"
	MessageImportedPapers  = "Imported submissions"
	MessageSomePapers      = "Some submissions could not be imported correctly"
	MessageExportPapers    = "Unable to retrieve submissions from conftool"
	MessageImportedProfile = "Imported user data"
	MessageProfileFailed   = "Could not retrieve or import all user data"
)

// Outcome reports a refresh to the caller.
type Outcome struct {
	Status    Status
	Message   string
	RequestID string
	// UnvalidatedEmails lists export addresses the registry has not
	// validated. Only set by a successful profile refresh.
	UnvalidatedEmails []string
	Imported          int
	Failures          int
}

// OK reports whether every unit succeeded.
func (o *Outcome) OK() bool {
	return o.Status == StatusOK
}

// Service runs refreshes.
type Service struct {
	registry Registry
	store    store.Store
	engine   *importer.Engine
	log      *oplog.Recorder
	logger   *slog.Logger
}

// New creates a service.
func New(reg Registry, s store.Store, engine *importer.Engine, rec *oplog.Recorder, logger *slog.Logger) *Service {
	return &Service{
		registry: reg,
		store:    s,
		engine:   engine,
		log:      rec,
		logger:   logutil.NoopIfNil(logger),
	}
}

func registryID(user *store.User) (int64, error) {
	if !user.HasRegistryIdentity() {
		return 0, ErrNoRegistryIdentity
	}
	return *user.RegistryID, nil
}
