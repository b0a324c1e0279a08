package importer

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/MahdiBaghbani/confsync-go/internal/document"
	"github.com/MahdiBaghbani/confsync-go/internal/registry"
	"github.com/MahdiBaghbani/confsync-go/internal/store"
)

// ImportPaper creates or updates the document for a registry paper and
// reconciles its access grants with the paper's author emails.
func (e *Engine) ImportPaper(ctx context.Context, paper *registry.PaperExport) (*store.Document, error) {
	doc, err := e.store.GetDocumentByPaperID(ctx, paper.PaperID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		doc, err = e.createDocument(ctx, paper.PaperID)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("find document for paper %d: %w", paper.PaperID, err)
	}

	var ownerID *uint
	owner, err := e.store.GetUserByRegistryID(ctx, paper.SubmittingAuthorID)
	switch {
	case err == nil:
		ownerID = &owner.ID
	case errors.Is(err, store.ErrNotFound):
		e.logger.Warn("submitting author has no local user, document left without owner",
			"paper_id", paper.PaperID, "submitting_author_id", paper.SubmittingAuthorID)
	default:
		return nil, fmt.Errorf("find owner of paper %d: %w", paper.PaperID, err)
	}

	update := contentUpdate(paper)
	err = e.store.WithTx(ctx, func(tx store.Store) error {
		locked, err := tx.LockDocument(ctx, doc.ID)
		if err != nil {
			return fmt.Errorf("lock document: %w", err)
		}
		locked.Title = paper.Title
		locked.OwnerID = ownerID
		update.Apply(&locked.Content)
		locked.Synchronized = e.stamp()
		if err := tx.SaveDocument(ctx, locked); err != nil {
			return fmt.Errorf("save document: %w", err)
		}
		doc = locked
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("import paper %d: %w", paper.PaperID, err)
	}

	if err := e.reconcileGrants(ctx, doc, paper.AuthorEmails()); err != nil {
		return nil, fmt.Errorf("import paper %d: %w", paper.PaperID, err)
	}
	e.logger.Debug("paper imported", "paper_id", paper.PaperID, "document_id", doc.ID)
	return doc, nil
}

// createDocument inserts an empty document cloned from the template. When
// another import created it first, that document is returned.
func (e *Engine) createDocument(ctx context.Context, paperID int64) (*store.Document, error) {
	tpl, err := e.templates.Default(ctx)
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}
	doc := &store.Document{
		RegistryPaperID: paperID,
		TemplateID:      tpl.ID,
		Content:         *tpl.Content.Clone(),
		Path:            "",
	}
	err = e.store.CreateDocument(ctx, doc)
	if errors.Is(err, store.ErrAlreadyExists) {
		return e.store.GetDocumentByPaperID(ctx, paperID)
	}
	if err != nil {
		return nil, fmt.Errorf("create document for paper %d: %w", paperID, err)
	}
	e.logger.Info("document created", "paper_id", paperID, "document_id", doc.ID)
	return doc, nil
}

func contentUpdate(p *registry.PaperExport) *document.ContentUpdate {
	u := &document.ContentUpdate{
		Title:            p.Title,
		Abstract:         p.Abstract,
		ContributionType: p.ContributionType,
		Keywords:         p.Keywords,
		Topics:           p.Topics,
	}
	for _, a := range p.Authors {
		u.AddContributor(document.Contributor{
			FirstName:   a.FirstName(),
			LastName:    a.LastName(),
			Email:       a.Email,
			Institution: a.Organization,
			ORCID:       a.ORCID,
		})
	}
	return u
}

// reconcileGrants gives every author email write access to doc, through
// the verified account owning it or a pending invite, and removes every
// other grant on doc.
func (e *Engine) reconcileGrants(ctx context.Context, doc *store.Document, emails []string) error {
	err := e.store.WithTx(ctx, func(tx store.Store) error {
		var grantIDs, inviteIDs []uint
		var distinct []string
		for _, email := range emails {
			if slices.Contains(distinct, email) {
				continue
			}
			distinct = append(distinct, email)

			holder, invite, err := e.holderFor(ctx, tx, doc, email)
			if err != nil {
				return err
			}
			if invite {
				inviteIDs = append(inviteIDs, holder.ID)
			}
			g, err := tx.GetOrCreateGrant(ctx, doc.ID, holder, store.RightsWrite)
			if err != nil {
				return fmt.Errorf("grant access: %w", err)
			}
			grantIDs = append(grantIDs, g.ID)
		}

		// invites for these emails that were not used now belong to a
		// verified account
		invites, err := tx.ListInvitesByEmail(ctx, distinct)
		if err != nil {
			return fmt.Errorf("list invites: %w", err)
		}
		for _, inv := range invites {
			if slices.Contains(inviteIDs, inv.ID) {
				continue
			}
			if err := deleteInvite(ctx, tx, inv.ID); err != nil {
				return err
			}
		}

		return e.dropStaleGrants(ctx, tx, doc.ID, grantIDs)
	})
	if err != nil {
		return fmt.Errorf("reconcile access of document %d: %w", doc.ID, err)
	}
	return nil
}

// holderFor resolves email to a verified user or a pending invite. A
// resolved user becomes a contact of the document owner.
func (e *Engine) holderFor(ctx context.Context, tx store.Store, doc *store.Document, email string) (store.Holder, bool, error) {
	addr, err := tx.FindVerifiedEmail(ctx, email)
	switch {
	case err == nil:
		if doc.OwnerID != nil && *doc.OwnerID != addr.UserID {
			if err := tx.AddContact(ctx, *doc.OwnerID, addr.UserID); err != nil {
				return store.Holder{}, false, fmt.Errorf("add contact: %w", err)
			}
		}
		return store.UserHolder(addr.UserID), false, nil
	case !errors.Is(err, store.ErrNotFound):
		return store.Holder{}, false, fmt.Errorf("find verified address: %w", err)
	}

	inv, created, err := tx.GetOrCreateInvite(ctx, email, func(inv *store.PendingInvite) {
		inv.Username = email
		inv.ByID = doc.OwnerID
	})
	if err != nil {
		return store.Holder{}, false, fmt.Errorf("get or create invite: %w", err)
	}
	if created {
		e.logger.Debug("invite created", "invite_id", inv.ID, "document_id", doc.ID, e.email(email))
	}
	return store.InviteHolder(inv.ID), true, nil
}

// dropStaleGrants deletes the document's grants outside keep. Invites left
// without any grant are deleted as well.
func (e *Engine) dropStaleGrants(ctx context.Context, tx store.Store, documentID uint, keep []uint) error {
	current, err := tx.ListGrantsByDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("list grants: %w", err)
	}
	var orphans []uint
	for _, g := range current {
		if !slices.Contains(keep, g.ID) && g.HolderKind == store.HolderInvite {
			orphans = append(orphans, g.HolderID)
		}
	}

	if err := tx.DeleteDocumentGrantsExcept(ctx, documentID, keep); err != nil {
		return fmt.Errorf("delete stale grants: %w", err)
	}

	for _, id := range orphans {
		left, err := tx.ListGrantsByHolder(ctx, store.InviteHolder(id))
		if err != nil {
			return fmt.Errorf("list invite grants: %w", err)
		}
		if len(left) > 0 {
			continue
		}
		if err := tx.DeleteInvite(ctx, id); err != nil {
			return fmt.Errorf("delete unused invite: %w", err)
		}
	}
	return nil
}

func deleteInvite(ctx context.Context, tx store.Store, id uint) error {
	if err := tx.DeleteGrantsByHolder(ctx, store.InviteHolder(id)); err != nil {
		return fmt.Errorf("clear invite grants: %w", err)
	}
	if err := tx.DeleteInvite(ctx, id); err != nil {
		return fmt.Errorf("delete invite: %w", err)
	}
	return nil
}
