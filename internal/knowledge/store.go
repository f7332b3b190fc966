package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// searchTimeout bounds vector search queries so a slow index scan cannot
// block a chat request indefinitely.
const searchTimeout = 10 * time.Second

// Store manages content chunks with vector search capabilities.
//
// Every query is tenant-scoped; cross-tenant leakage is a correctness bug,
// and the tenant filter is applied in SQL on every statement.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a chunk store backed by the given pool.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}
}

// SimilaritySearch returns the chunks of one tenant closest to queryVec,
// ordered by descending similarity, excluding results below threshold and
// capped at limit.
//
// Similarity is computed as 1 - cosine distance. With normalized embeddings
// the score lands in [0,1], higher = closer.
func (s *Store) SimilaritySearch(ctx context.Context, tenantID uuid.UUID, queryVec []float32, limit int, threshold float64) ([]Result, error) {
	if len(queryVec) != VectorDim {
		return nil, fmt.Errorf("query vector has %d dimensions, store uses %d", len(queryVec), VectorDim)
	}
	if limit < 1 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	queryCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	vec := pgvector.NewVector(queryVec)
	rows, err := s.pool.Query(queryCtx,
		`SELECT id, tenant_id, content, source_url, COALESCE(title, ''),
		        chunk_index, chunk_total, crawled_at,
		        1 - (embedding <=> $2) AS similarity
		 FROM documents
		 WHERE tenant_id = $1
		   AND embedding IS NOT NULL
		   AND 1 - (embedding <=> $2) >= $3
		 ORDER BY embedding <=> $2
		 LIMIT $4`,
		tenantID, vec, threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("similarity search for tenant %s: %w", tenantID, err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.Chunk.ID, &r.Chunk.TenantID, &r.Chunk.Content,
			&r.Chunk.SourceURL, &r.Chunk.Title, &r.Chunk.Index, &r.Chunk.Total,
			&r.Chunk.CrawledAt, &r.Similarity); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading search results: %w", err)
	}

	s.logger.Debug("similarity search", "tenant", tenantID, "hits", len(results),
		"limit", limit, "threshold", threshold)
	return results, nil
}

// ReplaceForTenant atomically replaces all of a tenant's chunks with the
// given set. Delete and insert run in one transaction, so a concurrent query
// sees either the complete old index or the complete new one, never a mix.
func (s *Store) ReplaceForTenant(ctx context.Context, tenantID uuid.UUID, chunks []Chunk) error {
	for i, c := range chunks {
		if len(c.Embedding) != 0 && len(c.Embedding) != VectorDim {
			return fmt.Errorf("chunk %d has %d-dimension embedding, store uses %d",
				i, len(c.Embedding), VectorDim)
		}
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM documents WHERE tenant_id = $1`, tenantID); err != nil {
			return fmt.Errorf("deleting old chunks: %w", err)
		}

		batch := &pgx.Batch{}
		for _, c := range chunks {
			// Chunks whose embedding failed are stored without a vector;
			// they are excluded from similarity search but keep the page
			// inventory complete.
			var vec *pgvector.Vector
			if len(c.Embedding) == VectorDim {
				v := pgvector.NewVector(c.Embedding)
				vec = &v
			}
			batch.Queue(
				`INSERT INTO documents
				 (tenant_id, content, source_url, title, embedding, chunk_index, chunk_total, crawled_at)
				 VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8)`,
				tenantID, c.Content, c.SourceURL, c.Title, vec, c.Index, c.Total, c.CrawledAt)
		}

		br := tx.SendBatch(ctx, batch)
		defer func() { _ = br.Close() }()
		for range chunks {
			if _, err := br.Exec(); err != nil {
				return fmt.Errorf("inserting chunk: %w", err)
			}
		}
		return br.Close()
	})
	if err != nil {
		return fmt.Errorf("replacing chunks for tenant %s: %w", tenantID, err)
	}

	s.logger.Info("chunks replaced", "tenant", tenantID, "count", len(chunks))
	return nil
}

// DeleteAllForTenant removes every chunk belonging to the tenant.
func (s *Store) DeleteAllForTenant(ctx context.Context, tenantID uuid.UUID) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM documents WHERE tenant_id = $1`, tenantID); err != nil {
		return fmt.Errorf("deleting chunks for tenant %s: %w", tenantID, err)
	}
	return nil
}

// CountForTenant returns the number of chunks indexed for the tenant.
func (s *Store) CountForTenant(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM documents WHERE tenant_id = $1`, tenantID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting chunks for tenant %s: %w", tenantID, err)
	}
	return count, nil
}
