package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sitesage/sitesage/internal/crawler"
	"github.com/sitesage/sitesage/internal/jobs"
	"github.com/sitesage/sitesage/internal/tenant"
)

// CrawlDefaults are the operator-configured crawl limits applied when a
// request leaves the corresponding field unset. Zero values fall through to
// the crawler package defaults.
type CrawlDefaults struct {
	MaxPages int
	MaxDepth int
	Delay    time.Duration
}

// CrawlHandler dispatches and reports crawl jobs.
type CrawlHandler struct {
	tenants  TenantDirectory
	jobs     JobRunner
	chunks   ChunkCounter
	defaults CrawlDefaults
	logger   *slog.Logger
}

// NewCrawlHandler creates a crawl handler.
func NewCrawlHandler(tenants TenantDirectory, runner JobRunner, chunks ChunkCounter, defaults CrawlDefaults, logger *slog.Logger) *CrawlHandler {
	return &CrawlHandler{tenants: tenants, jobs: runner, chunks: chunks, defaults: defaults, logger: logger}
}

// RegisterRoutes registers crawl routes on the given mux.
func (h *CrawlHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/crawl", h.dispatch)
	mux.HandleFunc("GET /api/crawl/jobs/{id}", h.job)
	mux.HandleFunc("GET /api/crawl/status/{tenant}", h.status)
}

type crawlRequest struct {
	TenantID        string   `json:"tenantId"`
	MaxPages        int      `json:"maxPages,omitempty"`
	MaxDepth        int      `json:"maxDepth,omitempty"`
	DelayMS         int      `json:"delayMs,omitempty"`
	IncludePatterns []string `json:"includePatterns,omitempty"`
	ExcludePatterns []string `json:"excludePatterns,omitempty"`
}

// options merges request fields over the operator defaults; unset fields
// fall through to the crawler package defaults.
func (r crawlRequest) options(defaults CrawlDefaults) crawler.Options {
	opts := crawler.Options{
		MaxPages:        r.MaxPages,
		MaxDepth:        r.MaxDepth,
		IncludePatterns: r.IncludePatterns,
		ExcludePatterns: r.ExcludePatterns,
	}
	if r.DelayMS > 0 {
		opts.Delay = time.Duration(r.DelayMS) * time.Millisecond
	}
	if opts.MaxPages == 0 {
		opts.MaxPages = defaults.MaxPages
	}
	if opts.MaxDepth == 0 {
		opts.MaxDepth = defaults.MaxDepth
	}
	if opts.Delay == 0 {
		opts.Delay = defaults.Delay
	}
	return opts
}

type crawlResultResponse struct {
	Success          bool     `json:"success"`
	PagesProcessed   int      `json:"pagesProcessed"`
	DocumentsCreated int      `json:"documentsCreated"`
	Errors           []string `json:"errors"`
}

type crawlJobResponse struct {
	JobID    string               `json:"jobId"`
	TenantID string               `json:"tenantId"`
	Status   string               `json:"status"`
	Error    string               `json:"error,omitempty"`
	Result   *crawlResultResponse `json:"result,omitempty"`
}

type crawlStatusResponse struct {
	TenantID      string            `json:"tenantId"`
	CrawlStatus   string            `json:"crawlStatus"`
	LastCrawledAt *time.Time        `json:"lastCrawledAt,omitempty"`
	ChunkCount    int               `json:"chunkCount"`
	Job           *crawlJobResponse `json:"job,omitempty"`
}

func (h *CrawlHandler) dispatch(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}

	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_tenant", "tenantId must be a UUID")
		return
	}

	tn, err := h.tenants.Get(r.Context(), tenantID)
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

	// Fast-path rejection. The store's conditional status update remains
	// the authoritative gate; a race here fails the job instead.
	if tn.CrawlStatus == tenant.StatusCrawling && !crawlStale(tn) {
		writeError(w, http.StatusConflict, "crawl_in_progress", "a crawl is already running for this tenant")
		return
	}

	job := h.jobs.Enqueue(tn, req.options(h.defaults))

	writeJSON(w, http.StatusAccepted, toJobResponse(job))
}

func (h *CrawlHandler) job(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_job", "job id must be a UUID")
		return
	}

	job := h.jobs.Get(id)
	if job == nil {
		writeError(w, http.StatusNotFound, "unknown_job", "crawl job not found")
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(job))
}

func (h *CrawlHandler) status(w http.ResponseWriter, r *http.Request) {
	tenantID, err := uuid.Parse(r.PathValue("tenant"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_tenant", "tenant id must be a UUID")
		return
	}

	tn, err := h.tenants.Get(r.Context(), tenantID)
	if err != nil {
		if errors.Is(err, tenant.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown_tenant", "tenant not found")
			return
		}
		h.logger.Error("loading tenant failed", "tenant", tenantID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "something went wrong")
		return
	}

	resp := crawlStatusResponse{
		TenantID:      tn.ID.String(),
		CrawlStatus:   string(tn.CrawlStatus),
		LastCrawledAt: tn.LastCrawledAt,
	}
	if h.chunks != nil {
		count, err := h.chunks.CountForTenant(r.Context(), tn.ID)
		if err != nil {
			h.logger.Warn("counting chunks failed", "tenant", tn.ID, "error", err)
		} else {
			resp.ChunkCount = count
		}
	}
	if job := h.jobs.LatestForTenant(tn.ID); job != nil {
		jr := toJobResponse(job)
		resp.Job = &jr
	}
	writeJSON(w, http.StatusOK, resp)
}

// crawlStale reports whether a crawling status is old enough to take over.
func crawlStale(tn *tenant.Tenant) bool {
	if tn.CrawlStartedAt == nil {
		return true
	}
	return time.Since(*tn.CrawlStartedAt) > tenant.StaleCrawlTTL
}

func toJobResponse(job *jobs.Job) crawlJobResponse {
	resp := crawlJobResponse{
		JobID:    job.ID.String(),
		TenantID: job.TenantID.String(),
		Status:   string(job.State),
		Error:    job.Error,
	}
	if job.Result != nil {
		errs := job.Result.Errors
		if errs == nil {
			errs = []string{}
		}
		resp.Result = &crawlResultResponse{
			Success:          job.Result.Success,
			PagesProcessed:   job.Result.PagesProcessed,
			DocumentsCreated: job.Result.DocumentsCreated,
			Errors:           errs,
		}
	}
	return resp
}
