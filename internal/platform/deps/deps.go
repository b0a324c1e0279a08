// Package deps builds the shared components both binaries run on: cache,
// store, template provider, import engine, operation log and, for commands
// that talk to the registry, the registry client and refresh service.
package deps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MahdiBaghbani/confsync-go/internal/document"
	"github.com/MahdiBaghbani/confsync-go/internal/importer"
	"github.com/MahdiBaghbani/confsync-go/internal/oplog"
	"github.com/MahdiBaghbani/confsync-go/internal/platform/cache"
	"github.com/MahdiBaghbani/confsync-go/internal/platform/config"
	"github.com/MahdiBaghbani/confsync-go/internal/platform/http/client"
	"github.com/MahdiBaghbani/confsync-go/internal/platform/logutil"
	"github.com/MahdiBaghbani/confsync-go/internal/refresh"
	"github.com/MahdiBaghbani/confsync-go/internal/registry"
	"github.com/MahdiBaghbani/confsync-go/internal/store"

	// Register cache and store drivers
	_ "github.com/MahdiBaghbani/confsync-go/internal/platform/cache/loader"
	_ "github.com/MahdiBaghbani/confsync-go/internal/store/postgres"
	_ "github.com/MahdiBaghbani/confsync-go/internal/store/sqlite"
)

// Deps holds the shared components.
type Deps struct {
	Config    *config.Config
	Logger    *slog.Logger
	Cache     cache.Store
	Store     store.Store
	Templates *document.TemplateProvider
	Engine    *importer.Engine
	Log       *oplog.Recorder

	// Set by WithRegistry.
	Registry *registry.Client
	Refresh  *refresh.Service
}

// Build opens the cache and the store and wires the components that need
// nothing else. The caller must Close the result.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Deps, error) {
	logger = logutil.NoopIfNil(logger)

	c, err := cache.NewFromConfig(cfg.Cache.Driver, cfg.Cache.Drivers, logger)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}

	s, err := store.Open(ctx, &store.DriverConfig{
		Driver:       cfg.Store.Driver,
		DataDir:      cfg.Store.DataDir,
		DSN:          cfg.Store.DSN,
		MaxOpenConns: cfg.Store.MaxOpenConns,
	}, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}

	templates := document.NewTemplateProvider(s, TemplateSpec(cfg.Template), logger)
	return &Deps{
		Config:    cfg,
		Logger:    logger,
		Cache:     c,
		Store:     s,
		Templates: templates,
		Engine:    importer.New(s, templates, importer.WithLogger(logger), importer.WithSensitiveLogging(cfg.Logging.AllowSensitive)),
		Log:       oplog.New(s, logger),
	}, nil
}

// WithRegistry adds the registry client and the refresh service. The
// registry section must be complete.
func (d *Deps) WithRegistry() error {
	if err := d.Config.RequireRegistry(); err != nil {
		return err
	}
	httpClient := client.New(&d.Config.OutboundHTTP)
	reg, err := registry.NewClient(registry.Config{
		BaseURL:          d.Config.Registry.BaseURL,
		Secret:           d.Config.Registry.Secret,
		UserAgent:        d.Config.Registry.UserAgent,
		MaxResponseBytes: d.Config.OutboundHTTP.MaxResponseBytes,
		AllowSensitive:   d.Config.Logging.AllowSensitive,
	}, httpClient.OneShot(), registry.NewSequenceNonces(d.Cache, d.Config.Registry.NonceKey), d.Logger)
	if err != nil {
		return err
	}
	d.Registry = reg
	d.Refresh = refresh.New(reg, d.Store, d.Engine, d.Log, d.Logger)
	return nil
}

// SessionTTL returns the configured session lifetime.
func (d *Deps) SessionTTL() time.Duration {
	return time.Duration(d.Config.Server.SessionTTLSeconds) * time.Second
}

// Close releases the store and the cache.
func (d *Deps) Close() error {
	return errors.Join(d.Store.Close(), d.Cache.Close())
}

// TemplateSpec converts the configured template shape.
func TemplateSpec(t config.TemplateConfig) document.TemplateSpec {
	return document.TemplateSpec{
		ImportID:         t.ImportID,
		Title:            t.Title,
		Attrs:            t.Attrs,
		AbstractElements: t.AbstractElements,
		AbstractMarks:    t.AbstractMarks,
		BodyElements:     t.BodyElements,
		BodyMarks:        t.BodyMarks,
	}
}
