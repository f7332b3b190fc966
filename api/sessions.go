package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/sitesage/sitesage/internal/session"
	"github.com/sitesage/sitesage/internal/tenant"
)

// SessionHandler manages session lifecycle endpoints.
type SessionHandler struct {
	tenants  TenantDirectory
	sessions SessionStore
	logger   *slog.Logger
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(tenants TenantDirectory, sessions SessionStore, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{tenants: tenants, sessions: sessions, logger: logger}
}

// RegisterRoutes registers session routes on the given mux.
func (h *SessionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sessions/end", h.end)
}

type endSessionRequest struct {
	TenantID  string `json:"tenantId"`
	SessionID string `json:"sessionId"`
}

func (h *SessionHandler) end(w http.ResponseWriter, r *http.Request) {
	var req endSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "missing_session", "sessionId is required")
		return
	}

	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_tenant", "tenantId must be a UUID")
		return
	}

	if _, err := h.tenants.Get(r.Context(), tenantID); err != nil {
		if errors.Is(err, tenant.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown_tenant", "tenant not found")
			return
		}
		h.logger.Error("loading tenant failed", "tenant", tenantID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "something went wrong")
		return
	}

	switch err := h.sessions.End(r.Context(), tenantID, req.SessionID); {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, "unknown_session", "session not found")
	case errors.Is(err, session.ErrEnded):
		writeError(w, http.StatusConflict, "session_ended", "session was already ended")
	default:
		h.logger.Error("ending session failed", "tenant", tenantID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "something went wrong")
	}
}
