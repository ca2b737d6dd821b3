package testutil

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
)

// Embedder is a deterministic ai.Embedder for tests. Each document maps to a
// stable pseudo-random unit vector derived from its text, so identical texts
// are identical vectors and similarity comparisons are repeatable without a
// model server.
type Embedder struct {
	Dim int // defaults to 8
}

func (e *Embedder) Name() string { return "test-embedder" }

func (e *Embedder) Register(r api.Registry) {}

func (e *Embedder) Embed(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	dim := e.Dim
	if dim == 0 {
		dim = 8
	}
	resp := &ai.EmbedResponse{}
	for _, doc := range req.Input {
		var text string
		for _, part := range doc.Content {
			text += part.Text
		}
		resp.Embeddings = append(resp.Embeddings, &ai.Embedding{Embedding: stableVector(text, dim)})
	}
	return resp, nil
}

func stableVector(text string, dim int) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, dim)
	var norm float64
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		v := float64(int64(seed>>11))/float64(1<<52) - 1
		vec[i] = float32(v)
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		norm = 1
	}
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
