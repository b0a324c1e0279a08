// Package importer merges registry users, emails, papers and access grants
// into the local store. Every operation can be repeated: running it again
// with the same input leaves the store unchanged apart from sync stamps.
package importer

import (
	"log/slog"
	"time"

	"github.com/MahdiBaghbani/confsync-go/internal/document"
	"github.com/MahdiBaghbani/confsync-go/internal/platform/logutil"
	"github.com/MahdiBaghbani/confsync-go/internal/store"
)

// Engine runs imports against a store.
type Engine struct {
	store          store.Store
	templates      *document.TemplateProvider
	now            func() time.Time
	logger         *slog.Logger
	allowSensitive bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time used for sync stamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithSensitiveLogging allows email addresses in debug output.
func WithSensitiveLogging(allow bool) Option {
	return func(e *Engine) { e.allowSensitive = allow }
}

// New creates an engine. templates supplies the content new documents are
// cloned from.
func New(s store.Store, templates *document.TemplateProvider, opts ...Option) *Engine {
	e := &Engine{store: s, templates: templates, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logutil.NoopIfNil(e.logger)
	return e
}

func (e *Engine) stamp() *time.Time {
	t := e.now().UTC()
	return &t
}

func (e *Engine) email(value string) slog.Attr {
	return logutil.Sensitive("email", value, e.allowSensitive)
}
