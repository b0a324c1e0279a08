package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MahdiBaghbani/confsync-go/internal/oplog"
	"github.com/MahdiBaghbani/confsync-go/internal/ratelimit"
	"github.com/MahdiBaghbani/confsync-go/internal/refresh"
	"github.com/MahdiBaghbani/confsync-go/internal/store"
)

// Deps holds the handler's collaborators.
type Deps struct {
	Refresh  *refresh.Service
	Users    store.UserStore
	Log      *oplog.Recorder
	Sessions *Sessions

	// LoginLimiter keys by client IP, RefreshLimiter by user. Nil disables.
	LoginLimiter   *ratelimit.Limiter
	RefreshLimiter *ratelimit.Limiter

	// AdminTokenHash is a bcrypt hash. Empty disables the admin endpoints.
	AdminTokenHash string

	// SecureCookies sets the Secure attribute on the session cookie.
	SecureCookies bool
}

// Handler serves the /api routes.
type Handler struct {
	refresh        *refresh.Service
	users          store.UserStore
	log            *oplog.Recorder
	sessions       *Sessions
	loginLimiter   *ratelimit.Limiter
	refreshLimiter *ratelimit.Limiter
	adminHash      []byte
	secureCookies  bool
}

// NewHandler creates a handler.
func NewHandler(d Deps) *Handler {
	return &Handler{
		refresh:        d.Refresh,
		users:          d.Users,
		log:            d.Log,
		sessions:       d.Sessions,
		loginLimiter:   d.LoginLimiter,
		refreshLimiter: d.RefreshLimiter,
		adminHash:      []byte(d.AdminTokenHash),
		secureCookies:  d.SecureCookies,
	}
}

// Routes returns the router to mount at /api.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(h.loginLimiter.Middleware(ratelimit.ClientIP, WriteTooManyRequests)).
		Post("/auth/login", h.Login)
	r.Post("/auth/logout", h.Logout)

	r.Group(func(r chi.Router) {
		r.Use(h.RequireSession)
		r.Use(h.refreshLimiter.Middleware(userKey, WriteTooManyRequests))
		r.Post("/registry/refresh/papers", h.RefreshPapers)
		r.Post("/registry/refresh/profile", h.RefreshProfile)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.RequireAdmin)
		r.Post("/admin/users/{registryID}/sync", h.SyncUser)
		r.Get("/admin/import-logs", h.ImportLogs)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		WriteNotFound(w, "no such endpoint")
	})
	return r
}
