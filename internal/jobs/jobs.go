// Package jobs runs crawls in the background and tracks their progress so
// the API can dispatch a crawl and poll its status by job ID.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sitesage/sitesage/internal/crawler"
	"github.com/sitesage/sitesage/internal/tenant"
)

// State is the lifecycle position of a crawl job.
type State string

const (
	StateQueued  State = "queued"
	StateRunning State = "running"
	StateDone    State = "done"
	StateFailed  State = "failed"
)

// Job is one background crawl. Result is set once the job reaches
// StateDone or StateFailed and is not mutated afterward.
type Job struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	State      State
	Result     *crawler.Result
	Error      string
	EnqueuedAt time.Time
	StartedAt  time.Time
	FinishedAt time.Time
}

// CrawlRunner is the crawl operation the runner dispatches.
type CrawlRunner interface {
	Crawl(ctx context.Context, tn *tenant.Tenant, opts crawler.Options) (*crawler.Result, error)
}

// Runner executes crawl jobs in background goroutines and keeps a registry
// of their states. Safe for concurrent use.
type Runner struct {
	crawler CrawlRunner
	logger  *slog.Logger

	mu       sync.RWMutex
	jobs     map[uuid.UUID]*Job
	byTenant map[uuid.UUID]uuid.UUID

	wg sync.WaitGroup
}

// NewRunner creates a Runner.
func NewRunner(crawlRunner CrawlRunner, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		crawler:  crawlRunner,
		logger:   logger,
		jobs:     make(map[uuid.UUID]*Job),
		byTenant: make(map[uuid.UUID]uuid.UUID),
	}
}

// Enqueue registers a crawl job for the tenant and starts it in the
// background. Per-tenant exclusion is enforced by the crawl itself, not
// here; a rejected crawl surfaces as a failed job.
func (r *Runner) Enqueue(tn *tenant.Tenant, opts crawler.Options) *Job {
	job := &Job{
		ID:         uuid.New(),
		TenantID:   tn.ID,
		State:      StateQueued,
		EnqueuedAt: time.Now(),
	}

	r.mu.Lock()
	r.jobs[job.ID] = job
	r.byTenant[tn.ID] = job.ID
	r.mu.Unlock()

	r.wg.Add(1)
	go r.run(job.ID, tn, opts)

	return r.snapshot(job.ID)
}

// run executes one job to completion. Crawls are never cancelled mid-way;
// the background context decouples them from the originating request.
func (r *Runner) run(jobID uuid.UUID, tn *tenant.Tenant, opts crawler.Options) {
	defer r.wg.Done()

	r.update(jobID, func(j *Job) {
		j.State = StateRunning
		j.StartedAt = time.Now()
	})

	result, err := r.crawler.Crawl(context.Background(), tn, opts)

	r.update(jobID, func(j *Job) {
		j.FinishedAt = time.Now()
		switch {
		case err != nil:
			j.State = StateFailed
			j.Error = err.Error()
		case !result.Success:
			j.State = StateFailed
			j.Result = result
			if len(result.Errors) > 0 {
				j.Error = result.Errors[0]
			}
		default:
			j.State = StateDone
			j.Result = result
		}
	})

	if err != nil {
		r.logger.Warn("crawl job failed", "job", jobID, "tenant", tn.ID, "error", err)
	}
}

// Get returns a snapshot of the job, or nil when unknown.
func (r *Runner) Get(id uuid.UUID) *Job {
	return r.snapshot(id)
}

// LatestForTenant returns a snapshot of the tenant's most recent job, or
// nil when the tenant never crawled in this process.
func (r *Runner) LatestForTenant(tenantID uuid.UUID) *Job {
	r.mu.RLock()
	jobID, ok := r.byTenant[tenantID]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	return r.snapshot(jobID)
}

// Wait blocks until all in-flight jobs have finished. Used on shutdown.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) update(id uuid.UUID, fn func(*Job)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok {
		fn(job)
	}
}

func (r *Runner) snapshot(id uuid.UUID) *Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil
	}
	copied := *job
	return &copied
}
