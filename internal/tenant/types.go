// Package tenant manages tenant records: the root aggregate that owns all
// crawled content and conversations. Chunks and sessions cascade-delete with
// their tenant.
package tenant

import (
	"time"

	"github.com/google/uuid"
)

// CrawlStatus is the lifecycle state of a tenant's content index.
//
// The status field doubles as the crawl mutual-exclusion flag: a tenant in
// StatusCrawling rejects further crawl requests until the running crawl
// finishes or goes stale (Store.BeginCrawl).
type CrawlStatus string

const (
	StatusPending   CrawlStatus = "pending"
	StatusCrawling  CrawlStatus = "crawling"
	StatusCompleted CrawlStatus = "completed"
	StatusFailed    CrawlStatus = "failed"
)

// Settings holds tenant-level behavior configuration. Stored as JSONB and
// validated at the boundary; unknown keys are dropped on write.
type Settings struct {
	// Greeting is shown by chat clients before the first user message.
	Greeting string `json:"greeting,omitempty"`

	// Language hints the answer language ("" = follow the user).
	Language string `json:"language,omitempty"`

	// FallbackMessage overrides the default answer used when retrieval or
	// completion fails. Must be safe to show to end users.
	FallbackMessage string `json:"fallback_message,omitempty"`
}

// Tenant is an isolated customer whose content and conversations are never
// mixed with another tenant's.
type Tenant struct {
	ID             uuid.UUID
	Name           string
	Domain         string
	APIKey         string
	CrawlStatus    CrawlStatus
	CrawlStartedAt *time.Time
	LastCrawledAt  *time.Time
	Settings       Settings
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
