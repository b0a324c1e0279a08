package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MahdiBaghbani/confsync-go/internal/appctx"
	"github.com/MahdiBaghbani/confsync-go/internal/refresh"
	"github.com/MahdiBaghbani/confsync-go/internal/store"
)

// maxLogLimit caps the import-logs page size.
const maxLogLimit = 1000

type outcomeResponse struct {
	Status            refresh.Status `json:"status"`
	Message           string         `json:"message"`
	RequestID         string         `json:"requestId"`
	Imported          int            `json:"imported"`
	Failures          int            `json:"failures"`
	UnvalidatedEmails []string       `json:"unvalidatedEmails,omitempty"`
}

type syncResponse struct {
	Profile outcomeResponse `json:"profile"`
	Papers  outcomeResponse `json:"papers"`
}

func newOutcomeResponse(o *refresh.Outcome) outcomeResponse {
	return outcomeResponse{
		Status:            o.Status,
		Message:           o.Message,
		RequestID:         o.RequestID,
		Imported:          o.Imported,
		Failures:          o.Failures,
		UnvalidatedEmails: o.UnvalidatedEmails,
	}
}

// SyncUser refreshes profile and papers of the user linked to a registry id.
func (h *Handler) SyncUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "registryID"), 10, 64)
	if err != nil || id <= 0 {
		WriteBadRequest(w, ReasonInvalidField, "registryID must be a positive integer")
		return
	}

	profile, papers, err := h.refresh.SyncUser(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		WriteNotFound(w, "no local user for this registry id")
		return
	case err != nil:
		writeRefreshError(w, r, err)
		return
	}

	status := http.StatusOK
	if !profile.OK() || !papers.OK() {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, syncResponse{
		Profile: newOutcomeResponse(profile),
		Papers:  newOutcomeResponse(papers),
	})
}

type logEntry struct {
	ID              uint      `json:"id"`
	RequestID       string    `json:"request_id"`
	Path            string    `json:"path"`
	Success         bool      `json:"success"`
	ErrorType       string    `json:"error_type,omitempty"`
	UserID          *uint     `json:"user_id,omitempty"`
	Message         string    `json:"message,omitempty"`
	RegistryPaperID *int64    `json:"registry_paper_id,omitempty"`
	Stacktrace      string    `json:"stacktrace,omitempty"`
	Added           time.Time `json:"added"`
}

type logsResponse struct {
	Entries []logEntry `json:"entries"`
}

// ImportLogs lists operation log entries, newest first.
func (h *Handler) ImportLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ImportLogFilter{RequestID: q.Get("request_id")}

	if v := q.Get("user_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			WriteBadRequest(w, ReasonInvalidField, "user_id must be a non-negative integer")
			return
		}
		uid := uint(id)
		filter.UserID = &uid
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxLogLimit {
			WriteBadRequest(w, ReasonInvalidField, "limit must be between 1 and 1000")
			return
		}
		filter.Limit = n
	}

	entries, err := h.log.List(r.Context(), filter)
	if err != nil {
		appctx.GetLogger(r.Context()).Error("list import logs failed", "error", err)
		WriteInternalError(w, "could not list import logs")
		return
	}

	out := logsResponse{Entries: make([]logEntry, 0, len(entries))}
	for _, e := range entries {
		out.Entries = append(out.Entries, logEntry{
			ID:              e.ID,
			RequestID:       e.RequestID,
			Path:            e.Path,
			Success:         e.Success,
			ErrorType:       e.ErrorType,
			UserID:          e.UserID,
			Message:         e.Message,
			RegistryPaperID: e.RegistryPaperID,
			Stacktrace:      e.Stacktrace,
			Added:           e.Added,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
