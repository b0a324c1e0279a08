package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MahdiBaghbani/confsync-go/internal/registry"
	"github.com/MahdiBaghbani/confsync-go/internal/store"
)

// ImportUserProfile copies the registry's account details onto user.
func (e *Engine) ImportUserProfile(ctx context.Context, user *store.User, info *registry.UserInfo) error {
	err := e.store.WithTx(ctx, func(tx store.Store) error {
		e.applyProfile(user, info)
		return tx.SaveUser(ctx, user)
	})
	if err != nil {
		return fmt.Errorf("import profile of user %d: %w", user.ID, err)
	}
	return nil
}

// ImportNewUser creates the local user for registryID with its profile in
// one transaction. Nothing is stored when any step fails.
func (e *Engine) ImportNewUser(ctx context.Context, registryID int64, info *registry.UserInfo) (*store.User, error) {
	id := registryID
	user := &store.User{RegistryID: &id}
	err := e.store.WithTx(ctx, func(tx store.Store) error {
		e.applyProfile(user, info)
		return tx.CreateUser(ctx, user)
	})
	if err != nil {
		return nil, fmt.Errorf("import new user for person %d: %w", registryID, err)
	}
	return user, nil
}

func (e *Engine) applyProfile(user *store.User, info *registry.UserInfo) {
	user.FirstName = info.FirstName
	user.LastName = info.Name
	user.Email = info.Email
	user.Username = info.Username
	user.Synchronized = e.stamp()
}

// ImportEmails replaces the registry-sourced addresses of the user linked
// to export.PersonID with the export's addresses. The first one becomes
// primary. Pending invites for verified addresses are claimed. Exports for
// people without a local user are ignored.
func (e *Engine) ImportEmails(ctx context.Context, export *registry.UserExport) error {
	user, err := e.store.GetUserByRegistryID(ctx, export.PersonID)
	if errors.Is(err, store.ErrNotFound) {
		e.logger.Debug("no local user for registry person", "person_id", export.PersonID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("find user for person %d: %w", export.PersonID, err)
	}

	err = e.store.WithTx(ctx, func(tx store.Store) error {
		addresses, err := e.registryAddresses(ctx, tx, user.ID, export)
		if err != nil {
			return err
		}

		keep := make([]uint, 0, len(addresses))
		var verified []string
		for _, a := range addresses {
			if err := tx.SaveEmailAddress(ctx, a); err != nil {
				return fmt.Errorf("save address: %w", err)
			}
			keep = append(keep, a.ID)
			if a.Verified {
				verified = append(verified, a.Email)
			}
		}
		if err := tx.DeleteRegistryEmailsExcept(ctx, user.ID, keep); err != nil {
			return fmt.Errorf("delete stale addresses: %w", err)
		}
		if len(addresses) > 0 {
			if err := tx.SetPrimaryEmail(ctx, addresses[0]); err != nil {
				return fmt.Errorf("set primary address: %w", err)
			}
		}
		return e.acceptInvites(ctx, tx, user, verified)
	})
	if err != nil {
		return fmt.Errorf("import emails of user %d: %w", user.ID, err)
	}
	return nil
}

// registryAddresses loads or prepares one row per distinct export address.
// Existing rows are adopted as registry addresses, so a later export that
// drops them removes them.
func (e *Engine) registryAddresses(ctx context.Context, tx store.Store, userID uint, export *registry.UserExport) ([]*store.EmailAddress, error) {
	var out []*store.EmailAddress
	seen := make(map[string]bool)
	for _, a := range export.Addresses() {
		email := strings.ToLower(strings.TrimSpace(a.Email))
		if email == "" || seen[email] {
			continue
		}
		seen[email] = true

		row, err := tx.FindEmailAddress(ctx, userID, email)
		switch {
		case errors.Is(err, store.ErrNotFound):
			row = &store.EmailAddress{UserID: userID, Email: email, Source: store.SourceRegistry}
		case err != nil:
			return nil, fmt.Errorf("find address: %w", err)
		}
		row.Source = store.SourceRegistry
		row.Verified = a.Validated
		row.Primary = false
		out = append(out, row)
	}
	return out, nil
}

// acceptInvites hands the grants of invites for the verified addresses to
// user and links user and inviter as contacts.
func (e *Engine) acceptInvites(ctx context.Context, tx store.Store, user *store.User, verified []string) error {
	invites, err := tx.ListInvitesByEmail(ctx, verified)
	if err != nil {
		return fmt.Errorf("list invites: %w", err)
	}
	to := store.UserHolder(user.ID)

	for _, inv := range invites {
		grants, err := tx.ListGrantsByHolder(ctx, store.InviteHolder(inv.ID))
		if err != nil {
			return fmt.Errorf("list invite grants: %w", err)
		}
		for i := range grants {
			g := &grants[i]
			_, err := tx.FindGrant(ctx, g.DocumentID, to)
			switch {
			case err == nil:
				// user already has access; keep one grant per holder
				if err := tx.DeleteGrant(ctx, g.ID); err != nil {
					return fmt.Errorf("drop duplicate grant: %w", err)
				}
				continue
			case !errors.Is(err, store.ErrNotFound):
				return fmt.Errorf("find grant: %w", err)
			}
			g.SetHolder(to)
			if err := tx.SaveGrant(ctx, g); err != nil {
				return fmt.Errorf("move grant: %w", err)
			}
		}

		if inv.ByID != nil && *inv.ByID != user.ID {
			if err := tx.AddContact(ctx, *inv.ByID, user.ID); err != nil {
				return fmt.Errorf("add contact: %w", err)
			}
			if err := tx.AddContact(ctx, user.ID, *inv.ByID); err != nil {
				return fmt.Errorf("add contact: %w", err)
			}
		}
		if err := tx.DeleteInvite(ctx, inv.ID); err != nil {
			return fmt.Errorf("delete invite: %w", err)
		}
		e.logger.Debug("invite accepted", "invite_id", inv.ID, "user_id", user.ID, "grants", len(grants), e.email(inv.Email))
	}
	return nil
}
