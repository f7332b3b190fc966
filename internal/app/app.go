// Package app wires configuration, storage, the Genkit AI stack and the
// domain services into one container for the commands to use.
package app

import (
	"context"
	"log/slog"

	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sitesage/sitesage/internal/config"
	"github.com/sitesage/sitesage/internal/crawler"
	"github.com/sitesage/sitesage/internal/jobs"
	"github.com/sitesage/sitesage/internal/knowledge"
	"github.com/sitesage/sitesage/internal/rag"
	"github.com/sitesage/sitesage/internal/session"
	"github.com/sitesage/sitesage/internal/tenant"
)

// App is the application container.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Genkit *genkit.Genkit
	Pool   *pgxpool.Pool

	Tenants   *tenant.Store
	Knowledge *knowledge.Store
	Sessions  *session.Store
	Embedder  *knowledge.Embedder
	Crawler   *crawler.Crawler
	Composer  *rag.Composer
	Jobs      *jobs.Runner
}

// Close releases all resources. In-flight crawl jobs are drained first so a
// shutdown never strands a tenant in the crawling state.
func (a *App) Close() {
	a.Logger.Info("shutting down application")

	if a.Jobs != nil {
		a.Jobs.Wait()
	}
	if a.Pool != nil {
		a.Pool.Close()
		a.Logger.Info("database pool closed")
	}
}

// Answerer applies the configured retrieval defaults to every query and
// satisfies the API's Answerer dependency.
type Answerer struct {
	composer  *rag.Composer
	limit     int
	threshold float64
}

// NewAnswerer wraps the composer with config-level defaults.
func NewAnswerer(composer *rag.Composer, cfg *config.Config) *Answerer {
	return &Answerer{
		composer:  composer,
		limit:     cfg.RetrievalTopK,
		threshold: cfg.SimilarityThreshold,
	}
}

// Answer implements the query path with configured defaults for unset
// options.
func (a *Answerer) Answer(ctx context.Context, tn *tenant.Tenant, query string, history []session.Turn, opts rag.AnswerOptions) rag.Answer {
	if opts.Limit <= 0 {
		opts.Limit = a.limit
	}
	if opts.Threshold <= 0 {
		opts.Threshold = a.threshold
	}
	return a.composer.Answer(ctx, tn, query, history, opts)
}
