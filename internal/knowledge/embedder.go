package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"golang.org/x/time/rate"
)

// EmbedBatchSize is the number of texts sent to the provider per request.
const EmbedBatchSize = 5

// embedBatchInterval is the minimum spacing between batch requests,
// keeping a full re-index under the provider's rate limits.
const embedBatchInterval = 500 * time.Millisecond

// Embedder wraps a Genkit ai.Embedder with batching and rate limiting for
// ingestion, and single-text embedding for query time.
//
// Embedder is safe for concurrent use by multiple goroutines.
type Embedder struct {
	embedder ai.Embedder
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// NewEmbedder creates an Embedder over the given provider.
func NewEmbedder(embedder ai.Embedder, logger *slog.Logger) *Embedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Embedder{
		embedder: embedder,
		limiter:  rate.NewLimiter(rate.Every(embedBatchInterval), 1),
		logger:   logger,
	}
}

// Embed converts a single text into its embedding vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(text, nil)},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("provider returned empty embedding")
	}
	return resp.Embeddings[0].Embedding, nil
}

// EmbedBatch converts texts into embedding vectors, processing them in
// batches of EmbedBatchSize paced by a rate limiter.
//
// EmbedBatch never fails the whole operation on provider errors: a batch
// that errors is retried item by item, and items that still fail get an
// empty vector and a log line. The returned slice always has len(texts)
// entries in input order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) [][]float32 {
	vectors := make([][]float32, len(texts))

	for start := 0; start < len(texts); start += EmbedBatchSize {
		end := min(start+EmbedBatchSize, len(texts))

		if err := e.limiter.Wait(ctx); err != nil {
			// Context cancelled; remaining entries stay empty.
			e.logger.Warn("embedding batch aborted", "error", err, "remaining", len(texts)-start)
			return vectors
		}

		if e.embedBatchOnce(ctx, texts[start:end], vectors[start:end]) {
			continue
		}

		// Batch failed as a whole; retry items individually so one bad
		// input does not sink its neighbors.
		for i := start; i < end; i++ {
			vec, err := e.Embed(ctx, texts[i])
			if err != nil {
				e.logger.Warn("embedding failed, storing empty vector", "index", i, "error", err)
				continue
			}
			vectors[i] = vec
		}
	}

	return vectors
}

// embedBatchOnce sends one batch request and fills out. Returns false if the
// request failed and the caller should fall back to per-item embedding.
func (e *Embedder) embedBatchOnce(ctx context.Context, texts []string, out [][]float32) bool {
	docs := make([]*ai.Document, len(texts))
	for i, t := range texts {
		docs[i] = ai.DocumentFromText(t, nil)
	}

	resp, err := e.embedder.Embed(ctx, &ai.EmbedRequest{Input: docs})
	if err != nil {
		e.logger.Warn("batch embedding failed, retrying per item", "size", len(texts), "error", err)
		return false
	}
	if len(resp.Embeddings) != len(texts) {
		e.logger.Warn("batch embedding returned unexpected count",
			"want", len(texts), "got", len(resp.Embeddings))
		return false
	}

	for i, emb := range resp.Embeddings {
		out[i] = emb.Embedding
	}
	return true
}
