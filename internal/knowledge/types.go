// Package knowledge stores content chunks with vector embeddings and serves
// tenant-scoped similarity search on PostgreSQL + pgvector.
package knowledge

import (
	"time"

	"github.com/google/uuid"
)

// VectorDim is the embedding dimensionality used across the store. The
// documents table declares vector(768); every embedding written or searched
// must match. gemini-embedding-001 is truncated to this size via
// OutputDimensionality.
const VectorDim = 768

// Chunk is a bounded slice of crawled page text stored with its embedding.
type Chunk struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Content   string
	SourceURL string
	Title     string
	Embedding []float32

	// Index and Total record the chunk's position within its source page.
	Index int
	Total int

	CrawledAt time.Time
}

// Result is a single similarity search hit.
type Result struct {
	Chunk Chunk

	// Similarity is the cosine-derived score in [0,1], higher = closer.
	Similarity float64
}
