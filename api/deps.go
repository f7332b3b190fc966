package api

import (
	"context"

	"github.com/google/uuid"

	"github.com/sitesage/sitesage/internal/crawler"
	"github.com/sitesage/sitesage/internal/jobs"
	"github.com/sitesage/sitesage/internal/rag"
	"github.com/sitesage/sitesage/internal/session"
	"github.com/sitesage/sitesage/internal/tenant"
)

// TenantDirectory is the slice of tenant storage the handlers need.
type TenantDirectory interface {
	Create(ctx context.Context, name, domain string, settings tenant.Settings) (*tenant.Tenant, error)
	Get(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// SessionStore is the slice of session storage the handlers need.
type SessionStore interface {
	GetOrCreate(ctx context.Context, tenantID uuid.UUID, token string, client session.ClientInfo) (*session.Session, bool, error)
	AppendTurn(ctx context.Context, sess *session.Session, role session.Role, content string, meta session.TurnMetadata) (*session.Turn, error)
	RecentTurns(ctx context.Context, sessionID uuid.UUID, limit int) ([]session.Turn, error)
	End(ctx context.Context, tenantID uuid.UUID, token string) error
}

// Answerer produces a grounded answer for a visitor question.
type Answerer interface {
	Answer(ctx context.Context, tn *tenant.Tenant, query string, history []session.Turn, opts rag.AnswerOptions) rag.Answer
}

// ChunkCounter reports how many content chunks a tenant has indexed.
type ChunkCounter interface {
	CountForTenant(ctx context.Context, tenantID uuid.UUID) (int, error)
}

// JobRunner dispatches and reports background crawl jobs.
type JobRunner interface {
	Enqueue(tn *tenant.Tenant, opts crawler.Options) *jobs.Job
	Get(id uuid.UUID) *jobs.Job
	LatestForTenant(tenantID uuid.UUID) *jobs.Job
}
