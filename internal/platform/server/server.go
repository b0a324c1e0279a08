// Package server provides HTTP server wiring and lifecycle management.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/MahdiBaghbani/confsync-go/internal/platform/config"
	"github.com/MahdiBaghbani/confsync-go/internal/platform/logutil"
)

// ErrPartialTLS is returned when only one of the certificate and key is set.
var ErrPartialTLS = errors.New("server.tls_cert_file and server.tls_key_file must be set together")

// Server wraps the HTTP server.
type Server struct {
	cfg        *config.Config
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a server that mounts api under the shared middleware stack.
func New(cfg *config.Config, logger *slog.Logger, api http.Handler) (*Server, error) {
	tls := cfg.Server.TLSCertFile != "" || cfg.Server.TLSKeyFile != ""
	if tls && (cfg.Server.TLSCertFile == "" || cfg.Server.TLSKeyFile == "") {
		return nil, ErrPartialTLS
	}
	logger = logutil.NoopIfNil(logger)

	s := &Server{cfg: cfg, logger: logger}
	s.httpServer = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      NewRouter(logger, api),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// NewRouter builds the root router. The request logger runs after RealIP so
// client_ip reflects the forwarding headers.
func NewRouter(logger *slog.Logger, api http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(RequestLoggerMiddleware(logger))
	r.Use(AccessLogMiddleware)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", healthHandler)
	if api != nil {
		r.Mount("/api", api)
	}
	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server. It blocks until the server is shut down and
// returns nil after a graceful shutdown.
func (s *Server) Start() error {
	var err error
	if s.cfg.Server.TLSCertFile != "" {
		s.logger.Info("starting server", "addr", s.cfg.ListenAddr, "tls", true)
		err = s.httpServer.ListenAndServeTLS(s.cfg.Server.TLSCertFile, s.cfg.Server.TLSKeyFile)
	} else {
		s.logger.Info("starting server", "addr", s.cfg.ListenAddr, "tls", false)
		err = s.httpServer.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.ListenAddr, err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	return s.httpServer.Shutdown(ctx)
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
