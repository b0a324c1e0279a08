package refresh

import (
	"context"

	"github.com/MahdiBaghbani/confsync-go/internal/oplog"
	"github.com/MahdiBaghbani/confsync-go/internal/store"
)

// RefreshPapers imports every paper the user submitted.
func (s *Service) RefreshPapers(ctx context.Context, user *store.User) (*Outcome, error) {
	id, err := registryID(user)
	if err != nil {
		return nil, err
	}
	return s.ImportPapers(ctx, []int64{id}), nil
}

// ImportPapers exports the papers submitted by the given registry users
// and imports each one. A failed paper does not stop the others.
func (s *Service) ImportPapers(ctx context.Context, ids []int64) *Outcome {
	out := &Outcome{}
	exportFailed := false

	stream, err := s.registry.ExportPapers(ctx, ids)
	if err != nil {
		exportFailed = true
		s.log.Failure(ctx, store.ErrorExportPapers, err, nil)
	} else {
		defer stream.Close()
		for stream.Next() {
			paper := stream.Record()
			if _, err := s.engine.ImportPaper(ctx, &paper); err != nil {
				out.Failures++
				s.log.Failure(ctx, store.ErrorImportPaper, err, &paper.PaperID)
				continue
			}
			out.Imported++
		}
		if err := stream.Err(); err != nil {
			exportFailed = true
			s.log.Failure(ctx, store.ErrorExportPapers, err, nil)
		}
	}

	switch {
	case !exportFailed && out.Failures == 0:
		out.Status = StatusOK
		s.log.Success(ctx)
		if out.Imported > 0 {
			out.Message = MessageImportedPapers
		} else {
			out.Message = MessageNoPapers
		}
	case exportFailed:
		out.Status = StatusFailed
	default:
		out.Status = StatusPartial
	}
	if out.Status != StatusOK {
		if out.Failures == 0 {
			out.Message = MessageExportPapers
		} else {
			out.Message = MessageSomePapers
		}
	}

	out.RequestID = oplog.RequestID(ctx)
	return out
}
