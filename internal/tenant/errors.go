package tenant

import "errors"

// Sentinel errors for tenant operations, checked with errors.Is().
var (
	// ErrNotFound indicates the tenant does not exist.
	ErrNotFound = errors.New("tenant not found")

	// ErrInactive indicates the tenant has been deactivated.
	ErrInactive = errors.New("tenant is inactive")

	// ErrCrawlInProgress indicates a crawl is already running for the tenant.
	ErrCrawlInProgress = errors.New("crawl already in progress")

	// ErrDomainTaken indicates another tenant already registered the domain.
	ErrDomainTaken = errors.New("domain already registered")
)
