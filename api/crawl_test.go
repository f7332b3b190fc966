package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sitesage/sitesage/internal/crawler"
	"github.com/sitesage/sitesage/internal/jobs"
	"github.com/sitesage/sitesage/internal/log"
	"github.com/sitesage/sitesage/internal/tenant"
)

type mockChunks struct {
	count int
	err   error
}

func (m *mockChunks) CountForTenant(context.Context, uuid.UUID) (int, error) {
	return m.count, m.err
}

func crawlMux(tenants TenantDirectory, runner JobRunner) *http.ServeMux {
	return crawlMuxWithChunks(tenants, runner, &mockChunks{})
}

func crawlMuxWithChunks(tenants TenantDirectory, runner JobRunner, chunks ChunkCounter) *http.ServeMux {
	mux := http.NewServeMux()
	NewCrawlHandler(tenants, runner, chunks, CrawlDefaults{}, log.NewNop()).RegisterRoutes(mux)
	return mux
}

func TestCrawlDispatch(t *testing.T) {
	tn := apiTenant()
	runner := newMockJobs()
	mux := crawlMux(newMockTenants(tn), runner)

	rec := serveJSON(t, mux, http.MethodPost, "/api/crawl", map[string]any{
		"tenantId": tn.ID.String(),
		"maxPages": 10,
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}

	var resp crawlJobResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.JobID == "" || resp.Status != string(jobs.StateQueued) {
		t.Errorf("response = %+v", resp)
	}
	if runner.last == nil || runner.last.TenantID != tn.ID {
		t.Error("job not enqueued for tenant")
	}
}

func TestCrawlDispatch_Options(t *testing.T) {
	tn := apiTenant()
	defaults := CrawlDefaults{MaxPages: 25, MaxDepth: 2, Delay: 2 * time.Second}

	t.Run("config defaults fill unset fields", func(t *testing.T) {
		runner := newMockJobs()
		mux := http.NewServeMux()
		NewCrawlHandler(newMockTenants(tn), runner, &mockChunks{}, defaults, log.NewNop()).RegisterRoutes(mux)

		rec := serveJSON(t, mux, http.MethodPost, "/api/crawl", map[string]any{
			"tenantId": tn.ID.String(),
		})
		if rec.Code != http.StatusAccepted {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
		}
		if runner.lastOpts.MaxPages != 25 || runner.lastOpts.MaxDepth != 2 {
			t.Errorf("opts = %+v, want defaults 25/2", runner.lastOpts)
		}
		if runner.lastOpts.Delay != 2*time.Second {
			t.Errorf("Delay = %v, want 2s", runner.lastOpts.Delay)
		}
	})

	t.Run("request fields override defaults", func(t *testing.T) {
		runner := newMockJobs()
		mux := http.NewServeMux()
		NewCrawlHandler(newMockTenants(tn), runner, &mockChunks{}, defaults, log.NewNop()).RegisterRoutes(mux)

		rec := serveJSON(t, mux, http.MethodPost, "/api/crawl", map[string]any{
			"tenantId": tn.ID.String(),
			"maxPages": 5,
			"delayMs":  250,
		})
		if rec.Code != http.StatusAccepted {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
		}
		if runner.lastOpts.MaxPages != 5 {
			t.Errorf("MaxPages = %d, want 5", runner.lastOpts.MaxPages)
		}
		if runner.lastOpts.Delay != 250*time.Millisecond {
			t.Errorf("Delay = %v, want 250ms", runner.lastOpts.Delay)
		}
		if runner.lastOpts.MaxDepth != 2 {
			t.Errorf("MaxDepth = %d, want default 2", runner.lastOpts.MaxDepth)
		}
	})
}

func TestCrawlDispatch_UnknownTenant(t *testing.T) {
	mux := crawlMux(newMockTenants(), newMockJobs())

	rec := serveJSON(t, mux, http.MethodPost, "/api/crawl", map[string]any{
		"tenantId": uuid.NewString(),
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestCrawlDispatch_Conflict(t *testing.T) {
	tn := apiTenant()
	tn.CrawlStatus = tenant.StatusCrawling
	started := time.Now().Add(-time.Minute)
	tn.CrawlStartedAt = &started
	runner := newMockJobs()
	mux := crawlMux(newMockTenants(tn), runner)

	rec := serveJSON(t, mux, http.MethodPost, "/api/crawl", map[string]any{
		"tenantId": tn.ID.String(),
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if runner.last != nil {
		t.Error("job enqueued despite running crawl")
	}
}

func TestCrawlDispatch_StaleCrawlTakenOver(t *testing.T) {
	tn := apiTenant()
	tn.CrawlStatus = tenant.StatusCrawling
	started := time.Now().Add(-tenant.StaleCrawlTTL - time.Minute)
	tn.CrawlStartedAt = &started
	mux := crawlMux(newMockTenants(tn), newMockJobs())

	rec := serveJSON(t, mux, http.MethodPost, "/api/crawl", map[string]any{
		"tenantId": tn.ID.String(),
	})
	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want stale crawl takeover to dispatch", rec.Code)
	}
}

func TestCrawlJobPolling(t *testing.T) {
	tn := apiTenant()
	runner := newMockJobs()
	mux := crawlMux(newMockTenants(tn), runner)

	job := runner.Enqueue(tn, crawler.Options{})
	job.State = jobs.StateDone
	job.Result = &crawler.Result{Success: true, PagesProcessed: 5, DocumentsCreated: 20}

	rec := serveJSON(t, mux, http.MethodGet, "/api/crawl/jobs/"+job.ID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp crawlJobResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != string(jobs.StateDone) || resp.Result == nil || resp.Result.DocumentsCreated != 20 {
		t.Errorf("response = %+v", resp)
	}
	if resp.Result.Errors == nil {
		t.Error("Errors should encode as an array, not null")
	}
}

func TestCrawlJobPolling_Unknown(t *testing.T) {
	mux := crawlMux(newMockTenants(), newMockJobs())
	rec := serveJSON(t, mux, http.MethodGet, "/api/crawl/jobs/"+uuid.NewString(), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestCrawlStatus(t *testing.T) {
	tn := apiTenant()
	last := time.Now().Add(-time.Hour)
	tn.LastCrawledAt = &last
	runner := newMockJobs()
	runner.Enqueue(tn, crawler.Options{})
	mux := crawlMuxWithChunks(newMockTenants(tn), runner, &mockChunks{count: 42})

	rec := serveJSON(t, mux, http.MethodGet, "/api/crawl/status/"+tn.ID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp crawlStatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.CrawlStatus != string(tenant.StatusCompleted) {
		t.Errorf("CrawlStatus = %q", resp.CrawlStatus)
	}
	if resp.LastCrawledAt == nil {
		t.Error("LastCrawledAt missing")
	}
	if resp.ChunkCount != 42 {
		t.Errorf("ChunkCount = %d, want 42", resp.ChunkCount)
	}
	if resp.Job == nil {
		t.Error("latest job missing")
	}
}
