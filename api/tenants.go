package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sitesage/sitesage/internal/tenant"
)

// TenantHandler manages tenant registration.
type TenantHandler struct {
	tenants TenantDirectory
	logger  *slog.Logger
}

// NewTenantHandler creates a tenant handler.
func NewTenantHandler(tenants TenantDirectory, logger *slog.Logger) *TenantHandler {
	return &TenantHandler{tenants: tenants, logger: logger}
}

// RegisterRoutes registers tenant routes on the given mux.
func (h *TenantHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/tenants", h.create)
	mux.HandleFunc("GET /api/tenants/{id}", h.get)
	mux.HandleFunc("DELETE /api/tenants/{id}", h.deactivate)
}

type createTenantRequest struct {
	Name     string          `json:"name"`
	Domain   string          `json:"domain"`
	Settings tenant.Settings `json:"settings"`
}

type tenantResponse struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Domain        string          `json:"domain"`
	APIKey        string          `json:"apiKey,omitempty"`
	CrawlStatus   string          `json:"crawlStatus"`
	LastCrawledAt *time.Time      `json:"lastCrawledAt,omitempty"`
	Settings      tenant.Settings `json:"settings"`
	Active        bool            `json:"active"`
	CreatedAt     time.Time       `json:"createdAt"`
}

func (h *TenantHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createTenantRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Domain = strings.TrimSpace(req.Domain)
	if req.Name == "" || req.Domain == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "name and domain are required")
		return
	}
	if u, err := url.Parse(req.Domain); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		writeError(w, http.StatusBadRequest, "invalid_domain", "domain must be an http(s) URL")
		return
	}

	tn, err := h.tenants.Create(r.Context(), req.Name, req.Domain, req.Settings)
	if err != nil {
		if errors.Is(err, tenant.ErrDomainTaken) {
			writeError(w, http.StatusConflict, "domain_taken", "a tenant already exists for this domain")
			return
		}
		h.logger.Error("creating tenant failed", "domain", req.Domain, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "something went wrong")
		return
	}

	// The API key is surfaced once, at creation.
	writeJSON(w, http.StatusCreated, toTenantResponse(tn, true))
}

func (h *TenantHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_tenant", "tenant id must be a UUID")
		return
	}

	tn, err := h.tenants.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, tenant.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown_tenant", "tenant not found")
			return
		}
		h.logger.Error("loading tenant failed", "tenant", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "something went wrong")
		return
	}

	writeJSON(w, http.StatusOK, toTenantResponse(tn, false))
}

func (h *TenantHandler) deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_tenant", "tenant id must be a UUID")
		return
	}

	if err := h.tenants.Deactivate(r.Context(), id); err != nil {
		if errors.Is(err, tenant.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown_tenant", "tenant not found")
			return
		}
		h.logger.Error("deactivating tenant failed", "tenant", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "something went wrong")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func toTenantResponse(tn *tenant.Tenant, withKey bool) tenantResponse {
	resp := tenantResponse{
		ID:            tn.ID.String(),
		Name:          tn.Name,
		Domain:        tn.Domain,
		CrawlStatus:   string(tn.CrawlStatus),
		LastCrawledAt: tn.LastCrawledAt,
		Settings:      tn.Settings,
		Active:        tn.Active,
		CreatedAt:     tn.CreatedAt,
	}
	if withKey {
		resp.APIKey = tn.APIKey
	}
	return resp
}
