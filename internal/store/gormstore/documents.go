package gormstore

import (
	"context"
	"errors"

	"github.com/MahdiBaghbani/confsync-go/internal/document"
	"github.com/MahdiBaghbani/confsync-go/internal/store"
)

// GetOrCreateTemplate returns the template with importID, creating it
// through init when absent.
func (s *Store) GetOrCreateTemplate(ctx context.Context, importID string, init func(*document.Template) error) (*document.Template, bool, error) {
	if t, err := first[document.Template](s.conn(ctx), "import_id = ?", importID); err == nil {
		return t, false, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	t := &document.Template{ImportID: importID}
	if init != nil {
		if err := init(t); err != nil {
			return nil, false, err
		}
	}
	res := s.conn(ctx).Clauses(onConflictDoNothing("import_id")).Create(t)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 0 {
		// lost a race with another writer
		existing, err := first[document.Template](s.conn(ctx), "import_id = ?", importID)
		return existing, false, err
	}
	return t, true, nil
}

// SaveTemplate updates an existing template.
func (s *Store) SaveTemplate(ctx context.Context, t *document.Template) error {
	return duplicate(s.conn(ctx).Save(t).Error)
}

// GetDocument returns a document by id.
func (s *Store) GetDocument(ctx context.Context, id uint) (*store.Document, error) {
	return first[store.Document](s.conn(ctx), "id = ?", id)
}

// GetDocumentByPaperID returns the document imported from a registry paper.
func (s *Store) GetDocumentByPaperID(ctx context.Context, paperID int64) (*store.Document, error) {
	return first[store.Document](s.conn(ctx), "registry_paper_id = ?", paperID)
}

// LockDocument re-reads the document with FOR UPDATE. SQLite ignores the
// clause and relies on its single writer.
func (s *Store) LockDocument(ctx context.Context, id uint) (*store.Document, error) {
	return first[store.Document](s.conn(ctx).Clauses(forUpdate), "id = ?", id)
}

// CreateDocument inserts a document. A second document for the same paper
// fails with store.ErrAlreadyExists.
func (s *Store) CreateDocument(ctx context.Context, d *store.Document) error {
	return duplicate(s.conn(ctx).Create(d).Error)
}

// SaveDocument updates all fields of a document.
func (s *Store) SaveDocument(ctx context.Context, d *store.Document) error {
	return duplicate(s.conn(ctx).Save(d).Error)
}

// ListDocumentsByOwner returns the documents owned by a user.
func (s *Store) ListDocumentsByOwner(ctx context.Context, ownerID uint) ([]store.Document, error) {
	var out []store.Document
	if err := s.conn(ctx).Where("owner_id = ?", ownerID).Order("id").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
