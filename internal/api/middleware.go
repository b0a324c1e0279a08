package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	"github.com/MahdiBaghbani/confsync-go/internal/appctx"
	"github.com/MahdiBaghbani/confsync-go/internal/store"
)

type userKeyType struct{}

// UserFromContext returns the session user, if any.
func UserFromContext(ctx context.Context) *store.User {
	u, _ := ctx.Value(userKeyType{}).(*store.User)
	return u
}

// RequireSession resolves the session token to a user. The request is
// tagged for the operation log with its path and the user id.
func (h *Handler) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID, err := h.sessions.Lookup(ctx, sessionToken(r))
		if err != nil {
			if !errors.Is(err, ErrNoSession) {
				appctx.GetLogger(ctx).Error("session lookup failed", "error", err)
			}
			WriteUnauthorized(w, ReasonUnauthenticated, "authentication required")
			return
		}
		user, err := h.users.GetUser(ctx, userID)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				appctx.GetLogger(ctx).Error("session user lookup failed", "error", err)
			}
			WriteUnauthorized(w, ReasonUnauthenticated, "session user not found")
			return
		}

		ctx = context.WithValue(ctx, userKeyType{}, user)
		ctx, _ = appctx.WithRequest(ctx, r.URL.Path, &user.ID)
		ctx = appctx.WithLogger(ctx, appctx.GetLogger(ctx).With("user_id", user.ID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin checks the bearer token against the configured bcrypt hash.
func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(h.adminHash) == 0 {
			WriteNotFound(w, "admin endpoints are disabled")
			return
		}
		token := bearerToken(r)
		if token == "" {
			WriteUnauthorized(w, ReasonUnauthenticated, "admin token required")
			return
		}
		if err := bcrypt.CompareHashAndPassword(h.adminHash, []byte(token)); err != nil {
			appctx.GetLogger(r.Context()).Warn("admin token rejected")
			WriteUnauthorized(w, ReasonUnauthorized, "invalid admin token")
			return
		}
		ctx, _ := appctx.WithRequest(r.Context(), r.URL.Path, nil)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// userKey keys the refresh limiter by session user.
func userKey(r *http.Request) string {
	if u := UserFromContext(r.Context()); u != nil {
		return strconv.FormatUint(uint64(u.ID), 10)
	}
	return ""
}
