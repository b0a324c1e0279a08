package refresh

import (
	"context"
	"errors"
	"fmt"

	"github.com/MahdiBaghbani/confsync-go/internal/registry"
	"github.com/MahdiBaghbani/confsync-go/internal/store"
)

// Authenticate checks credentials against the registry and returns the
// local user, creating it from the registry's account details on first
// login.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*store.User, error) {
	res, err := s.registry.Login(ctx, username, password)
	if errors.Is(err, registry.ErrLoginFailed) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		s.log.Failure(ctx, store.ErrorFetchLogin, err, nil)
		return nil, fmt.Errorf("registry login: %w", err)
	}
	if !res.Result {
		return nil, ErrInvalidCredentials
	}

	user, err := s.store.GetUserByRegistryID(ctx, res.ID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("find user for person %d: %w", res.ID, err)
	}

	info, err := s.registry.UserInfo(ctx, res.Username)
	if err != nil {
		s.log.Failure(ctx, store.ErrorFetchUserdata, err, nil)
		return nil, fmt.Errorf("fetch user info: %w", err)
	}

	user, err = s.engine.ImportNewUser(ctx, res.ID, info)
	if err != nil {
		s.log.Failure(ctx, store.ErrorImportUser, err, nil)
		return nil, err
	}
	s.logger.Info("user created from registry", "user_id", user.ID, "person_id", res.ID)
	return user, nil
}
