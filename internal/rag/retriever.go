// Package rag implements the query path: embed the question, pull tenant
// context by similarity, compose a grounded prompt and call the model.
package rag

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/sitesage/sitesage/internal/knowledge"
)

// Retrieval defaults, used when the caller passes no overrides.
const (
	DefaultTopK      = 5
	DefaultThreshold = 0.7
)

// QueryEmbedder embeds a single query string.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SimilaritySearcher performs tenant-scoped vector search.
type SimilaritySearcher interface {
	SimilaritySearch(ctx context.Context, tenantID uuid.UUID, queryVec []float32, limit int, threshold float64) ([]knowledge.Result, error)
}

// RetrieveOptions tune a single retrieval.
type RetrieveOptions struct {
	// Limit caps the number of chunks returned; <= 0 means DefaultTopK.
	Limit int

	// Threshold is the minimum similarity; <= 0 means DefaultThreshold.
	Threshold float64
}

func (o RetrieveOptions) withDefaults() RetrieveOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultTopK
	}
	if o.Threshold <= 0 {
		o.Threshold = DefaultThreshold
	}
	return o
}

// Retrieval is the context found for one query.
type Retrieval struct {
	// Chunks are ranked best-first.
	Chunks []knowledge.Result

	// TotalSources counts distinct source URLs among the chunks.
	TotalSources int

	// ThresholdUsed is the similarity floor that was applied.
	ThresholdUsed float64
}

// Sources returns the distinct source URLs in first-seen order.
func (r *Retrieval) Sources() []string {
	seen := make(map[string]bool, len(r.Chunks))
	var urls []string
	for _, c := range r.Chunks {
		if c.Chunk.SourceURL == "" || seen[c.Chunk.SourceURL] {
			continue
		}
		seen[c.Chunk.SourceURL] = true
		urls = append(urls, c.Chunk.SourceURL)
	}
	return urls
}

// Retriever turns a question into ranked tenant context.
type Retriever struct {
	embedder QueryEmbedder
	store    SimilaritySearcher
	logger   *slog.Logger
}

// NewRetriever creates a Retriever.
func NewRetriever(embedder QueryEmbedder, store SimilaritySearcher, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{embedder: embedder, store: store, logger: logger}
}

// Retrieve embeds the query and searches the tenant's index.
//
// Retrieve never fails: when the embedding or the search goes wrong the
// result is simply empty and the caller degrades to a context-free answer.
func (r *Retriever) Retrieve(ctx context.Context, tenantID uuid.UUID, query string, opts RetrieveOptions) *Retrieval {
	opts = opts.withDefaults()
	out := &Retrieval{ThresholdUsed: opts.Threshold}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil || len(vec) == 0 {
		r.logger.Warn("query embedding failed, answering without context",
			"tenant", tenantID, "error", err)
		return out
	}

	results, err := r.store.SimilaritySearch(ctx, tenantID, vec, opts.Limit, opts.Threshold)
	if err != nil {
		r.logger.Warn("similarity search failed, answering without context",
			"tenant", tenantID, "error", err)
		return out
	}

	out.Chunks = results
	out.TotalSources = len(out.Sources())
	return out
}
