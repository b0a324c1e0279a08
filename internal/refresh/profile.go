package refresh

import (
	"context"

	"github.com/MahdiBaghbani/confsync-go/internal/oplog"
	"github.com/MahdiBaghbani/confsync-go/internal/registry"
	"github.com/MahdiBaghbani/confsync-go/internal/store"
)

// RefreshProfile imports the user's addresses and account details.
func (s *Service) RefreshProfile(ctx context.Context, user *store.User) (*Outcome, error) {
	id, err := registryID(user)
	if err != nil {
		return nil, err
	}

	ok := true
	var info *registry.UserInfo

	export, err := s.registry.ExportUser(ctx, id)
	if err != nil {
		ok = false
		export = nil
		s.log.Failure(ctx, store.ErrorExportUser, err, nil)
	}
	if export != nil {
		username := export.Username
		if username == "" {
			username = user.Username
		}
		if info, err = s.registry.UserInfo(ctx, username); err != nil {
			ok = false
			info = nil
			s.log.Failure(ctx, store.ErrorFetchUserdata, err, nil)
		}
		if err := s.engine.ImportEmails(ctx, export); err != nil {
			ok = false
			s.log.Failure(ctx, store.ErrorImportEmails, err, nil)
		}
	}
	if info != nil {
		if err := s.engine.ImportUserProfile(ctx, user, info); err != nil {
			ok = false
			s.log.Failure(ctx, store.ErrorImportUser, err, nil)
		}
	}

	out := &Outcome{Status: StatusFailed, Message: MessageProfileFailed}
	if ok {
		s.log.Success(ctx)
		out.Status = StatusOK
		out.Message = MessageImportedProfile
		out.UnvalidatedEmails = unvalidated(export)
	}
	out.RequestID = oplog.RequestID(ctx)
	return out, nil
}

// SyncUser runs the profile and papers refresh for the local user linked
// to registryID.
func (s *Service) SyncUser(ctx context.Context, registryID int64) (profile, papers *Outcome, err error) {
	user, err := s.store.GetUserByRegistryID(ctx, registryID)
	if err != nil {
		return nil, nil, err
	}
	if profile, err = s.RefreshProfile(ctx, user); err != nil {
		return nil, nil, err
	}
	if papers, err = s.RefreshPapers(ctx, user); err != nil {
		return nil, nil, err
	}
	return profile, papers, nil
}

func unvalidated(export *registry.UserExport) []string {
	out := []string{}
	for _, a := range export.Addresses() {
		if !a.Validated {
			out = append(out, a.Email)
		}
	}
	return out
}
