// Package main is the entrypoint for the confsync-go server.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MahdiBaghbani/confsync-go/internal/api"
	"github.com/MahdiBaghbani/confsync-go/internal/platform/config"
	"github.com/MahdiBaghbani/confsync-go/internal/platform/deps"
	"github.com/MahdiBaghbani/confsync-go/internal/platform/logutil"
	"github.com/MahdiBaghbani/confsync-go/internal/platform/server"
	"github.com/MahdiBaghbani/confsync-go/internal/ratelimit"
)

func main() {
	configPath := flag.String("config", "", "Path to TOML config file (optional)")
	modeFlag := flag.String("mode", "", "Operating mode: strict or dev (overrides config)")
	listenAddr := flag.String("listen", "", "Listen address (overrides config)")
	registryURL := flag.String("registry-url", "", "Registry REST endpoint (overrides config)")
	storeDriver := flag.String("store-driver", "", "Store driver: sqlite or postgres (overrides config)")
	storeDataDir := flag.String("store-data-dir", "", "Data directory for the sqlite store (overrides config)")
	storeDSN := flag.String("store-dsn", "", "Postgres DSN (overrides config)")
	cacheDriver := flag.String("cache-driver", "", "Cache driver: memory or redis (overrides config)")
	ssrfMode := flag.String("ssrf-mode", "", "SSRF protection mode: strict or off (overrides config)")
	loggingLevel := flag.String("logging-level", "", "Log level: trace, debug, info, warn, error (overrides config)")
	loggingAllowSensitive := flag.String("logging-allow-sensitive", "", "Allow usernames and addresses in logs: true or false (overrides config)")
	flag.Parse()

	// Bootstrap logger for config loading errors
	bootstrapLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load(config.LoaderOptions{
		ConfigPath: *configPath,
		ModeFlag:   *modeFlag,
		FlagOverrides: config.FlagOverrides{
			ListenAddr:            listenAddr,
			RegistryBaseURL:       registryURL,
			StoreDriver:           storeDriver,
			StoreDataDir:          storeDataDir,
			StoreDSN:              storeDSN,
			CacheDriver:           cacheDriver,
			SSRFMode:              ssrfMode,
			LoggingLevel:          loggingLevel,
			LoggingAllowSensitive: loggingAllowSensitive,
		},
		Logger: bootstrapLogger,
	})
	if err != nil {
		bootstrapLogger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logutil.ParseLevel(cfg.Logging.Level)}))
	slog.SetDefault(logger)
	logger.Info("effective configuration", "config", cfg.Redacted())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := deps.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer d.Close()

	if err := d.WithRegistry(); err != nil {
		logger.Error("registry is not configured", "error", err)
		os.Exit(1)
	}
	if _, err := d.Templates.Default(ctx); err != nil {
		logger.Error("failed to prepare document template", "error", err)
		os.Exit(1)
	}

	handler := api.NewHandler(api.Deps{
		Refresh:        d.Refresh,
		Users:          d.Store,
		Log:            d.Log,
		Sessions:       api.NewSessions(d.Cache, d.SessionTTL()),
		LoginLimiter:   ratelimit.New(d.Cache, ratelimit.PerMinute("ratelimit:login:", cfg.Server.LoginRatePerMinute)),
		RefreshLimiter: ratelimit.New(d.Cache, ratelimit.PerMinute("ratelimit:refresh:", cfg.Server.RefreshRatePerMinute)),
		AdminTokenHash: cfg.Server.AdminTokenHash,
		SecureCookies:  cfg.Server.TLSCertFile != "" || cfg.Mode == string(config.ModeStrict),
	})

	srv, err := server.New(cfg, logger, handler.Routes())
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", "error", err)
			d.Close()
			os.Exit(1)
		}
		return
	case <-ctx.Done():
	}
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("server stopped")
}
