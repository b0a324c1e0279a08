package api

import (
	"errors"
	"net/http"

	"github.com/MahdiBaghbani/confsync-go/internal/appctx"
	"github.com/MahdiBaghbani/confsync-go/internal/refresh"
)

type papersResponse struct {
	RequestID string `json:"requestId"`
	Message   string `json:"message"`
}

type profileResponse struct {
	RequestID         string   `json:"requestId"`
	Message           string   `json:"message"`
	UnvalidatedEmails []string `json:"unvalidatedEmails"`
}

// RefreshPapers imports the session user's submissions.
func (h *Handler) RefreshPapers(w http.ResponseWriter, r *http.Request) {
	out, err := h.refresh.RefreshPapers(r.Context(), UserFromContext(r.Context()))
	if err != nil {
		writeRefreshError(w, r, err)
		return
	}
	writeJSON(w, outcomeStatus(out), papersResponse{RequestID: out.RequestID, Message: out.Message})
}

// RefreshProfile imports the session user's addresses and account details.
func (h *Handler) RefreshProfile(w http.ResponseWriter, r *http.Request) {
	out, err := h.refresh.RefreshProfile(r.Context(), UserFromContext(r.Context()))
	if err != nil {
		writeRefreshError(w, r, err)
		return
	}
	emails := out.UnvalidatedEmails
	if emails == nil {
		emails = []string{}
	}
	writeJSON(w, outcomeStatus(out), profileResponse{
		RequestID:         out.RequestID,
		Message:           out.Message,
		UnvalidatedEmails: emails,
	})
}

func outcomeStatus(out *refresh.Outcome) int {
	if out.OK() {
		return http.StatusOK
	}
	return http.StatusInternalServerError
}

func writeRefreshError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, refresh.ErrNoRegistryIdentity) {
		WriteBadRequest(w, ReasonNoRegistryIdentity, "this account is not linked to the registry")
		return
	}
	appctx.GetLogger(r.Context()).Error("refresh failed", "error", err)
	WriteInternalError(w, "refresh failed")
}
