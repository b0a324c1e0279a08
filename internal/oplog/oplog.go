// Package oplog records the outcome of every sync unit (login, exports,
// imports) as an append-only ImportLog row, correlated by a short request
// id that users can quote in support requests.
package oplog

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"runtime/debug"
	"strings"

	"github.com/MahdiBaghbani/confsync-go/internal/appctx"
	"github.com/MahdiBaghbani/confsync-go/internal/platform/logutil"
	"github.com/MahdiBaghbani/confsync-go/internal/store"
)

// Alphabet leaves out I and O so ids can be read over the phone.
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ0123456789"

// IDLength is the length of a request id.
const IDLength = 8

// NewRequestID returns a random request id.
func NewRequestID() (string, error) {
	max := big.NewInt(int64(len(Alphabet)))
	var b strings.Builder
	b.Grow(IDLength)
	for range IDLength {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate request id: %w", err)
		}
		b.WriteByte(Alphabet[n.Int64()])
	}
	return b.String(), nil
}

// Recorder appends log entries. Write failures are logged, never returned:
// the log is observational and must not fail the operation it describes.
type Recorder struct {
	store  store.ImportLogStore
	logger *slog.Logger
	stack  func() []byte
}

// New creates a recorder.
func New(s store.ImportLogStore, logger *slog.Logger) *Recorder {
	return &Recorder{store: s, logger: logutil.NoopIfNil(logger), stack: debug.Stack}
}

// RequestID returns the id of the request in ctx, assigning it on first
// use. Without request information in ctx a fresh id is returned.
func RequestID(ctx context.Context) string {
	info, ok := appctx.RequestFromContext(ctx)
	if ok && info.ID != "" {
		return info.ID
	}
	id, err := NewRequestID()
	if err != nil {
		// crypto/rand does not fail on supported platforms
		id = strings.Repeat("X", IDLength)
	}
	if ok {
		info.ID = id
	}
	return id
}

// Success records a successful unit and returns the request id.
func (r *Recorder) Success(ctx context.Context) string {
	e := r.entry(ctx, nil)
	e.Success = true
	r.append(ctx, e)
	return e.RequestID
}

// Failure records a failed unit of the given error type. paperID is set for
// per-paper failures.
func (r *Recorder) Failure(ctx context.Context, errorType string, err error, paperID *int64) string {
	e := r.entry(ctx, paperID)
	e.ErrorType = errorType
	if err != nil {
		e.Message = err.Error()
	}
	e.Stacktrace = r.stackText(err)
	r.append(ctx, e)
	return e.RequestID
}

// List returns entries for admin inspection, newest first.
func (r *Recorder) List(ctx context.Context, f store.ImportLogFilter) ([]store.ImportLog, error) {
	return r.store.ListImportLogs(ctx, f)
}

func (r *Recorder) entry(ctx context.Context, paperID *int64) *store.ImportLog {
	e := &store.ImportLog{RequestID: RequestID(ctx), RegistryPaperID: paperID}
	if info, ok := appctx.RequestFromContext(ctx); ok {
		e.Path = info.Path
		e.UserID = info.UserID
	}
	return e
}

func (r *Recorder) append(ctx context.Context, e *store.ImportLog) {
	attrs := []any{"request_id", e.RequestID, "path", e.Path}
	if e.UserID != nil {
		attrs = append(attrs, "user_id", *e.UserID)
	}
	if e.RegistryPaperID != nil {
		attrs = append(attrs, "paper_id", *e.RegistryPaperID)
	}

	log := appctx.GetLogger(ctx)
	if e.Success {
		log.Info("import succeeded", attrs...)
	} else {
		attrs = append(attrs, "error_type", e.ErrorType, "error", e.Message)
		log.Warn("import failed", attrs...)
	}

	if err := r.store.AppendImportLog(ctx, e); err != nil {
		r.logger.Error("failed to write import log", "request_id", e.RequestID, "error", err)
	}
}

// stackText lists the wrapped error chain, outermost first, followed by
// the stack of the recording goroutine.
func (r *Recorder) stackText(err error) string {
	var b strings.Builder
	for e := err; e != nil; e = errors.Unwrap(e) {
		fmt.Fprintf(&b, "%T: %+v\n", e, e)
	}
	b.WriteString("\n")
	b.Write(r.stack())
	return b.String()
}
