package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/goleak"

	"github.com/sitesage/sitesage/internal/crawler"
	"github.com/sitesage/sitesage/internal/log"
	"github.com/sitesage/sitesage/internal/tenant"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type mockCrawler struct {
	result  *crawler.Result
	err     error
	release chan struct{}
	calls   int
}

func (m *mockCrawler) Crawl(ctx context.Context, tn *tenant.Tenant, opts crawler.Options) (*crawler.Result, error) {
	m.calls++
	if m.release != nil {
		<-m.release
	}
	return m.result, m.err
}

func jobsTenant() *tenant.Tenant {
	return &tenant.Tenant{ID: uuid.New(), Name: "acme", Domain: "https://acme.test", Active: true}
}

func waitForState(t *testing.T, r *Runner, id uuid.UUID, want State) *Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if job := r.Get(id); job != nil && job.State == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	job := r.Get(id)
	t.Fatalf("job never reached %s, last seen %+v", want, job)
	return nil
}

func TestEnqueue_SuccessfulJob(t *testing.T) {
	mc := &mockCrawler{result: &crawler.Result{Success: true, PagesProcessed: 4, DocumentsCreated: 12}}
	r := NewRunner(mc, log.NewNop())
	tn := jobsTenant()

	job := r.Enqueue(tn, crawler.Options{})
	if job.ID == uuid.Nil || job.TenantID != tn.ID {
		t.Fatalf("job = %+v", job)
	}

	done := waitForState(t, r, job.ID, StateDone)
	if done.Result == nil || done.Result.DocumentsCreated != 12 {
		t.Errorf("Result = %+v", done.Result)
	}
	if done.Error != "" {
		t.Errorf("Error = %q, want empty", done.Error)
	}
	if done.FinishedAt.IsZero() {
		t.Error("FinishedAt not set")
	}
	r.Wait()
}

func TestEnqueue_CrawlErrorFailsJob(t *testing.T) {
	mc := &mockCrawler{err: errors.New("crawl already in progress")}
	r := NewRunner(mc, log.NewNop())

	job := r.Enqueue(jobsTenant(), crawler.Options{})
	failed := waitForState(t, r, job.ID, StateFailed)
	if failed.Error == "" {
		t.Error("Error not recorded")
	}
	r.Wait()
}

func TestEnqueue_UnsuccessfulResultFailsJob(t *testing.T) {
	mc := &mockCrawler{result: &crawler.Result{Success: false, Errors: []string{"no crawlable pages found"}}}
	r := NewRunner(mc, log.NewNop())

	job := r.Enqueue(jobsTenant(), crawler.Options{})
	failed := waitForState(t, r, job.ID, StateFailed)
	if failed.Error != "no crawlable pages found" {
		t.Errorf("Error = %q", failed.Error)
	}
	if failed.Result == nil {
		t.Error("failed job lost its result")
	}
	r.Wait()
}

func TestGet_UnknownJob(t *testing.T) {
	r := NewRunner(&mockCrawler{result: &crawler.Result{Success: true}}, log.NewNop())
	if got := r.Get(uuid.New()); got != nil {
		t.Errorf("Get(unknown) = %+v, want nil", got)
	}
}

func TestLatestForTenant(t *testing.T) {
	mc := &mockCrawler{result: &crawler.Result{Success: true}}
	r := NewRunner(mc, log.NewNop())
	tn := jobsTenant()

	if got := r.LatestForTenant(tn.ID); got != nil {
		t.Errorf("LatestForTenant before any job = %+v", got)
	}

	first := r.Enqueue(tn, crawler.Options{})
	waitForState(t, r, first.ID, StateDone)
	second := r.Enqueue(tn, crawler.Options{})
	waitForState(t, r, second.ID, StateDone)

	latest := r.LatestForTenant(tn.ID)
	if latest == nil || latest.ID != second.ID {
		t.Errorf("LatestForTenant = %+v, want job %s", latest, second.ID)
	}
	r.Wait()
}

func TestRunningStateObservable(t *testing.T) {
	release := make(chan struct{})
	mc := &mockCrawler{result: &crawler.Result{Success: true}, release: release}
	r := NewRunner(mc, log.NewNop())

	job := r.Enqueue(jobsTenant(), crawler.Options{})
	waitForState(t, r, job.ID, StateRunning)
	close(release)
	waitForState(t, r, job.ID, StateDone)
	r.Wait()
}

func TestSnapshotIsolation(t *testing.T) {
	mc := &mockCrawler{result: &crawler.Result{Success: true}}
	r := NewRunner(mc, log.NewNop())

	job := r.Enqueue(jobsTenant(), crawler.Options{})
	done := waitForState(t, r, job.ID, StateDone)

	// Mutating a snapshot must not affect the registry.
	done.State = StateFailed
	if again := r.Get(job.ID); again.State != StateDone {
		t.Errorf("registry state = %s, snapshot mutation leaked", again.State)
	}
	r.Wait()
}
