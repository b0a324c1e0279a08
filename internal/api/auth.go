package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/MahdiBaghbani/confsync-go/internal/appctx"
	"github.com/MahdiBaghbani/confsync-go/internal/refresh"
	"github.com/MahdiBaghbani/confsync-go/internal/store"
)

const maxLoginBody = 64 << 10

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	ID         uint   `json:"id"`
	RegistryID *int64 `json:"registry_id,omitempty"`
	Username   string `json:"username"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
}

type loginResponse struct {
	User  userResponse `json:"user"`
	Token string       `json:"token"`
}

func newUserResponse(u *store.User) userResponse {
	return userResponse{
		ID:         u.ID,
		RegistryID: u.RegistryID,
		Username:   u.Username,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Email:      u.Email,
	}
}

// Login authenticates against the registry and starts a session.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLoginBody)).Decode(&req); err != nil {
		WriteBadRequest(w, ReasonBadRequest, "invalid JSON body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		WriteBadRequest(w, ReasonInvalidField, "username and password are required")
		return
	}

	ctx, _ := appctx.WithRequest(r.Context(), r.URL.Path, nil)
	log := appctx.GetLogger(ctx)

	user, err := h.refresh.Authenticate(ctx, req.Username, req.Password)
	if errors.Is(err, refresh.ErrInvalidCredentials) {
		WriteUnauthorized(w, ReasonInvalidCredentials, "invalid username or password")
		return
	}
	if err != nil {
		log.Error("login failed", "error", err)
		WriteError(w, http.StatusBadGateway, ReasonRegistryError, "the registry could not be reached")
		return
	}

	token, err := h.sessions.Create(ctx, user.ID)
	if err != nil {
		log.Error("create session failed", "error", err)
		WriteInternalError(w, "could not create session")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.sessions.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	log.Info("user logged in", "user_id", user.ID)
	writeJSON(w, http.StatusOK, loginResponse{User: newUserResponse(user), Token: token})
}

// Logout ends the current session, if any.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(r.Context(), sessionToken(r)); err != nil {
		appctx.GetLogger(r.Context()).Warn("delete session failed", "error", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}
