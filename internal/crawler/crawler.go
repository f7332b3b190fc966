package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/google/uuid"

	"github.com/sitesage/sitesage/internal/knowledge"
	"github.com/sitesage/sitesage/internal/tenant"
)

// TenantStore is the slice of tenant persistence the crawler needs.
type TenantStore interface {
	// BeginCrawl claims the tenant for crawling; returns
	// tenant.ErrCrawlInProgress when another crawl holds it.
	BeginCrawl(ctx context.Context, id uuid.UUID) error

	// FinishCrawl records the crawl outcome on the tenant.
	FinishCrawl(ctx context.Context, id uuid.UUID, succeeded bool) error
}

// ChunkStore persists the crawl output.
type ChunkStore interface {
	// ReplaceForTenant atomically swaps the tenant's chunk set.
	ReplaceForTenant(ctx context.Context, tenantID uuid.UUID, chunks []knowledge.Chunk) error
}

// BatchEmbedder embeds chunk texts during ingestion. Implementations never
// fail the batch; items that cannot be embedded yield empty vectors.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) [][]float32
}

// Crawler walks a tenant's website and rebuilds its content index.
//
// Crawls for distinct tenants may run concurrently; within one tenant the
// crawl status flag enforces exclusivity (TenantStore.BeginCrawl). Page
// visits within a crawl are sequential with a politeness delay.
type Crawler struct {
	tenants  TenantStore
	chunks   ChunkStore
	embedder BatchEmbedder
	logger   *slog.Logger
}

// New creates a Crawler.
func New(tenants TenantStore, chunks ChunkStore, embedder BatchEmbedder, logger *slog.Logger) *Crawler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Crawler{tenants: tenants, chunks: chunks, embedder: embedder, logger: logger}
}

// Crawl re-indexes the tenant's website.
//
// The tenant moves to crawling for the duration and to completed or failed
// afterward. Per-page failures accumulate in Result.Errors and the crawl
// continues; only a failure before any page was processed marks the whole
// crawl failed. On success the tenant's previous chunks are fully replaced.
//
// Returns tenant.ErrCrawlInProgress without side effects when a crawl is
// already running for this tenant.
func (c *Crawler) Crawl(ctx context.Context, tn *tenant.Tenant, opts Options) (*Result, error) {
	if err := c.tenants.BeginCrawl(ctx, tn.ID); err != nil {
		return nil, err
	}

	opts = opts.withDefaults()
	result := c.run(ctx, tn, opts)

	if err := c.tenants.FinishCrawl(ctx, tn.ID, result.Success); err != nil {
		c.logger.Error("recording crawl outcome failed", "tenant", tn.ID, "error", err)
	}

	c.logger.Info("crawl finished",
		"tenant", tn.ID,
		"success", result.Success,
		"pages", result.PagesProcessed,
		"documents", result.DocumentsCreated,
		"errors", len(result.Errors))
	return result, nil
}

func (c *Crawler) run(ctx context.Context, tn *tenant.Tenant, opts Options) *Result {
	result := &Result{}

	root, err := url.Parse(tn.Domain)
	if err != nil || root.Host == "" {
		result.Errors = append(result.Errors, fmt.Sprintf("invalid domain %q", tn.Domain))
		return result
	}

	pages, errs := c.fetchPages(ctx, root, opts)
	result.Errors = append(result.Errors, errs...)
	result.PagesProcessed = len(pages)

	if len(pages) == 0 {
		// Nothing processed: fatal. The previous index stays untouched.
		if len(result.Errors) == 0 {
			result.Errors = append(result.Errors, "no crawlable pages found")
		}
		return result
	}

	chunks := c.buildChunks(ctx, tn.ID, pages)
	if err := c.chunks.ReplaceForTenant(ctx, tn.ID, chunks); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("persisting chunks: %v", err))
		return result
	}

	result.DocumentsCreated = len(chunks)
	result.Success = true
	return result
}

// fetchPages walks the site and returns extracted pages plus per-page errors.
func (c *Crawler) fetchPages(ctx context.Context, root *url.URL, opts Options) ([]*page, []string) {
	var (
		pages   []*page
		errs    []string
		visited int
	)

	rootHost := canonicalHost(root.Host)

	// Colly counts the root request as depth 1; spec depth counts followed
	// links from a depth-0 root.
	collector := colly.NewCollector(
		colly.MaxDepth(opts.MaxDepth+1),
		colly.UserAgent("sitesage-crawler/1.0"),
		colly.StdlibContext(ctx),
	)

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob: "*",
		Delay:      opts.Delay,
	}); err != nil {
		errs = append(errs, fmt.Sprintf("configuring rate limit: %v", err))
		return nil, errs
	}

	// Visited-count cap. Colly already deduplicates URLs, so every request
	// reaching this hook is a distinct URL.
	collector.OnRequest(func(r *colly.Request) {
		if visited >= opts.MaxPages {
			r.Abort()
			return
		}
		visited++
	})

	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		link := e.Request.AbsoluteURL(e.Attr("href"))
		if link == "" {
			return
		}
		u, err := url.Parse(link)
		if err != nil {
			return
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return
		}
		// Same-host only; never follow cross-domain links.
		if canonicalHost(u.Host) != rootHost {
			return
		}
		u.Fragment = ""
		if !opts.allowURL(u.String()) {
			return
		}
		// Revisit and depth violations surface as errors here; both are
		// expected control flow, not page failures.
		_ = e.Request.Visit(u.String())
	})

	collector.OnResponse(func(r *colly.Response) {
		contentType := r.Headers.Get("Content-Type")
		if contentType != "" && !strings.Contains(contentType, "text/html") {
			return
		}

		pageURL := r.Request.URL.String()
		p, err := extractPage(pageURL, r.Body)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: extracting content: %v", pageURL, err))
			return
		}
		if len(p.Text) < minContentLength {
			// Near-empty page; visited but not worth embedding.
			c.logger.Debug("skipping thin page", "url", pageURL, "chars", len(p.Text))
			return
		}
		pages = append(pages, p)
	})

	collector.OnError(func(r *colly.Response, err error) {
		errs = append(errs, fmt.Sprintf("%s: %v", r.Request.URL, err))
	})

	if err := collector.Visit(root.String()); err != nil {
		errs = append(errs, fmt.Sprintf("%s: %v", root, err))
	}
	collector.Wait()

	return pages, errs
}

// buildChunks splits pages into chunks and embeds them in batches.
func (c *Crawler) buildChunks(ctx context.Context, tenantID uuid.UUID, pages []*page) []knowledge.Chunk {
	var (
		chunks []knowledge.Chunk
		texts  []string
	)
	now := time.Now()

	for _, p := range pages {
		parts := SplitText(p.Text, ChunkSize, ChunkOverlap)
		for i, part := range parts {
			chunks = append(chunks, knowledge.Chunk{
				TenantID:  tenantID,
				Content:   part,
				SourceURL: p.URL,
				Title:     p.Title,
				Index:     i,
				Total:     len(parts),
				CrawledAt: now,
			})
			texts = append(texts, part)
		}
	}

	vectors := c.embedder.EmbedBatch(ctx, texts)
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}
	return chunks
}

// canonicalHost normalizes a host for same-site comparison; www is treated
// as the bare domain.
func canonicalHost(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}
