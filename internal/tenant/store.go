package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StaleCrawlTTL is how long a tenant may sit in StatusCrawling before a new
// crawl request is allowed to take over. A crash mid-crawl leaves the status
// flag set with no process behind it; the TTL keeps that from wedging the
// tenant forever.
const StaleCrawlTTL = 30 * time.Minute

// Store manages tenant persistence on PostgreSQL.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a tenant store backed by the given pool.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}
}

const tenantColumns = `id, name, domain, api_key, crawl_status, crawl_started_at,
	last_crawled_at, settings, active, created_at, updated_at`

// Create registers a new tenant for the given domain and generates its API key.
func (s *Store) Create(ctx context.Context, name, domain string, settings Settings) (*Tenant, error) {
	settingsJSON, err := json.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("marshaling settings: %w", err)
	}

	apiKey := "sk-" + uuid.NewString()

	row := s.pool.QueryRow(ctx,
		`INSERT INTO tenants (name, domain, api_key, settings)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+tenantColumns,
		name, domain, apiKey, settingsJSON)

	t, err := scanTenant(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("%w: %s", ErrDomainTaken, domain)
		}
		return nil, fmt.Errorf("creating tenant: %w", err)
	}

	s.logger.Info("tenant created", "id", t.ID, "domain", t.Domain)
	return t, nil
}

// Get retrieves a tenant by ID.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id)

	t, err := scanTenant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("getting tenant %s: %w", id, err)
	}
	return t, nil
}

// GetByAPIKey retrieves an active tenant by its API key.
func (s *Store) GetByAPIKey(ctx context.Context, apiKey string) (*Tenant, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE api_key = $1 AND active`, apiKey)

	t, err := scanTenant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("getting tenant by api key: %w", err)
	}
	return t, nil
}

// Deactivate soft-deletes a tenant. Content and sessions stay in place (they
// cascade only on hard delete); queries against an inactive tenant are
// rejected at the API boundary.
func (s *Store) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tenants SET active = FALSE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivating tenant %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// BeginCrawl transitions the tenant into StatusCrawling.
//
// The conditional UPDATE is the only mutual-exclusion mechanism: it succeeds
// for tenants in pending/completed/failed, and for tenants whose crawling
// state is older than StaleCrawlTTL (crashed crawl takeover). A tenant with a
// live crawl gets ErrCrawlInProgress and the running crawl is untouched.
func (s *Store) BeginCrawl(ctx context.Context, id uuid.UUID) error {
	staleBefore := time.Now().Add(-StaleCrawlTTL)

	tag, err := s.pool.Exec(ctx,
		`UPDATE tenants
		 SET crawl_status = 'crawling', crawl_started_at = now(), updated_at = now()
		 WHERE id = $1 AND active
		   AND (crawl_status <> 'crawling' OR crawl_started_at < $2)`,
		id, staleBefore)
	if err != nil {
		return fmt.Errorf("beginning crawl for tenant %s: %w", id, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Zero rows: distinguish missing / inactive / busy for the caller.
	t, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !t.Active {
		return fmt.Errorf("%w: %s", ErrInactive, id)
	}
	return fmt.Errorf("%w: tenant %s", ErrCrawlInProgress, id)
}

// FinishCrawl records the outcome of a crawl. A successful crawl moves the
// tenant to StatusCompleted and stamps last_crawled_at; a failed one moves it
// to StatusFailed without touching last_crawled_at.
func (s *Store) FinishCrawl(ctx context.Context, id uuid.UUID, succeeded bool) error {
	var query string
	if succeeded {
		query = `UPDATE tenants
		         SET crawl_status = 'completed', last_crawled_at = now(), updated_at = now()
		         WHERE id = $1`
	} else {
		query = `UPDATE tenants
		         SET crawl_status = 'failed', updated_at = now()
		         WHERE id = $1`
	}

	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("finishing crawl for tenant %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	s.logger.Info("crawl finished", "tenant", id, "succeeded", succeeded)
	return nil
}

func scanTenant(row pgx.Row) (*Tenant, error) {
	var (
		t            Tenant
		status       string
		settingsJSON []byte
	)
	err := row.Scan(&t.ID, &t.Name, &t.Domain, &t.APIKey, &status, &t.CrawlStartedAt,
		&t.LastCrawledAt, &settingsJSON, &t.Active, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.CrawlStatus = CrawlStatus(status)

	if len(settingsJSON) > 0 {
		if err := json.Unmarshal(settingsJSON, &t.Settings); err != nil {
			return nil, fmt.Errorf("parsing tenant settings: %w", err)
		}
	}
	return &t, nil
}
