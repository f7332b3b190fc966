package api

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sitesage/sitesage/internal/rag"
	"github.com/sitesage/sitesage/internal/session"
	"github.com/sitesage/sitesage/internal/tenant"
)

// QueryHandler answers visitor questions.
type QueryHandler struct {
	tenants       TenantDirectory
	sessions      SessionStore
	answerer      Answerer
	historyWindow int
	logger        *slog.Logger
}

// NewQueryHandler creates a query handler. historyWindow bounds how many
// recent turns are loaded per query; <= 0 uses rag.HistoryWindow.
func NewQueryHandler(tenants TenantDirectory, sessions SessionStore, answerer Answerer, historyWindow int, logger *slog.Logger) *QueryHandler {
	if historyWindow <= 0 {
		historyWindow = rag.HistoryWindow
	}
	return &QueryHandler{tenants: tenants, sessions: sessions, answerer: answerer, historyWindow: historyWindow, logger: logger}
}

// RegisterRoutes registers query routes on the given mux.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/query", h.answer)
}

type queryRequest struct {
	Message   string `json:"message"`
	TenantID  string `json:"tenantId"`
	SessionID string `json:"sessionId,omitempty"`
}

type queryMetadata struct {
	Sources        []string `json:"sources"`
	ContextSources int      `json:"contextSources"`
}

type queryResponse struct {
	Content   string        `json:"content"`
	SessionID string        `json:"sessionId"`
	Timestamp int64         `json:"timestamp"`
	Metadata  queryMetadata `json:"metadata"`
}

func (h *QueryHandler) answer(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "missing_message", "message is required")
		return
	}

	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_tenant", "tenantId must be a UUID")
		return
	}

	ctx := r.Context()
	tn, err := h.tenants.Get(ctx, tenantID)
	if err != nil {
		if errors.Is(err, tenant.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown_tenant", "tenant not found")
			return
		}
		h.logger.Error("loading tenant failed", "tenant", tenantID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "something went wrong")
		return
	}
	if !tn.Active {
		writeError(w, http.StatusNotFound, "unknown_tenant", "tenant not found")
		return
	}

	sess, _, err := h.sessions.GetOrCreate(ctx, tn.ID, req.SessionID, clientInfo(r))
	if err != nil {
		h.logger.Error("resolving session failed", "tenant", tn.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "something went wrong")
		return
	}

	// History and turn persistence degrade gracefully: a broken history
	// read still produces an answer, just without conversational context.
	history, err := h.sessions.RecentTurns(ctx, sess.ID, h.historyWindow)
	if err != nil {
		h.logger.Warn("loading history failed", "session", sess.ID, "error", err)
		history = nil
	}

	if _, err := h.sessions.AppendTurn(ctx, sess, session.RoleUser, req.Message, session.TurnMetadata{}); err != nil {
		h.logger.Warn("recording user turn failed", "session", sess.ID, "error", err)
	}

	ans := h.answerer.Answer(ctx, tn, req.Message, history, rag.AnswerOptions{})

	meta := session.TurnMetadata{Sources: ans.Sources, ContextChunks: ans.ContextUsed}
	if _, err := h.sessions.AppendTurn(ctx, sess, session.RoleAssistant, ans.Text, meta); err != nil {
		h.logger.Warn("recording assistant turn failed", "session", sess.ID, "error", err)
	}

	sources := ans.Sources
	if sources == nil {
		sources = []string{}
	}
	writeJSON(w, http.StatusOK, queryResponse{
		Content:   ans.Text,
		SessionID: sess.Token,
		Timestamp: time.Now().UnixMilli(),
		Metadata: queryMetadata{
			Sources:        sources,
			ContextSources: ans.ContextUsed,
		},
	})
}

// clientInfo extracts request attribution for new sessions.
func clientInfo(r *http.Request) session.ClientInfo {
	ip := r.Header.Get("X-Forwarded-For")
	if idx := strings.IndexByte(ip, ','); idx >= 0 {
		ip = ip[:idx]
	}
	ip = strings.TrimSpace(ip)
	if ip == "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			ip = host
		} else {
			ip = r.RemoteAddr
		}
	}
	return session.ClientInfo{IP: ip, UserAgent: r.UserAgent()}
}
