// Package testutil provides shared test helpers: a deterministic mock
// embedder and a pgvector-enabled Postgres container for integration tests.
package testutil

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
)

// MockEmbedder implements ai.Embedder with deterministic output: the same
// text always embeds to the same vector, and different texts differ. Tests
// configure failure modes via the exported fields.
type MockEmbedder struct {
	// Dim is the dimensionality of produced vectors.
	Dim int

	// Err, when set, is returned by every Embed call.
	Err error

	// ReturnEmpty makes Embed return a response with zero-length vectors.
	ReturnEmpty bool

	// Calls counts Embed invocations.
	Calls int

	// LastInputs records the texts of the most recent request.
	LastInputs []string
}

// NewMockEmbedder creates a mock embedder producing vectors of dim dimensions.
func NewMockEmbedder(dim int) *MockEmbedder {
	return &MockEmbedder{Dim: dim}
}

func (m *MockEmbedder) Name() string { return "mock-embedder" }

func (m *MockEmbedder) Register(api.Registry) {}

func (m *MockEmbedder) Embed(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	m.Calls++
	m.LastInputs = m.LastInputs[:0]
	for _, doc := range req.Input {
		if len(doc.Content) > 0 {
			m.LastInputs = append(m.LastInputs, doc.Content[0].Text)
		}
	}

	if m.Err != nil {
		return nil, m.Err
	}

	resp := &ai.EmbedResponse{}
	for _, doc := range req.Input {
		var text string
		if len(doc.Content) > 0 {
			text = doc.Content[0].Text
		}
		var vec []float32
		if !m.ReturnEmpty {
			vec = DeterministicVector(text, m.Dim)
		}
		resp.Embeddings = append(resp.Embeddings, &ai.Embedding{Embedding: vec})
	}
	return resp, nil
}

// DeterministicVector derives a unit-length vector from text. Equal texts map
// to equal vectors, so similarity comparisons in tests are stable.
func DeterministicVector(text string, dim int) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, dim)
	var norm float64
	for i := range vec {
		// xorshift keeps the sequence cheap and reproducible.
		seed ^= seed << 13
		seed ^= seed >> 7
		seed ^= seed << 17
		v := float64(int64(seed%2000)-1000) / 1000
		vec[i] = float32(v)
		norm += v * v
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}

	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}
