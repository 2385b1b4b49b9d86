package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

const mockDim = 384

// MockClient produces deterministic pseudo-embeddings derived from a
// hash of the input text, so identical text always yields an identical
// vector and near-duplicate wording lands close in cosine space often
// enough to exercise dedup code paths in tests without a network call.
type MockClient struct{}

func NewMockClient() *MockClient { return &MockClient{} }

func (c *MockClient) Name() string    { return "mock" }
func (c *MockClient) Dimensions() int { return mockDim }

func (c *MockClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return hashEmbed(text), nil
}

func (c *MockClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		vecs[i] = hashEmbed(t)
	}
	return vecs, nil
}

// hashEmbed derives a unit-ish vector from successive FNV-1a hashes of
// the text salted by component index, so every dimension is a
// deterministic but distinct pseudo-random function of the input.
func hashEmbed(text string) []float32 {
	vec := make([]float32, mockDim)
	var sumSq float64
	for i := 0; i < mockDim; i++ {
		h := fnv.New32a()
		_, _ = h.Write([]byte(text))
		_, _ = h.Write([]byte{byte(i), byte(i >> 8)})
		v := (float64(h.Sum32()%10000)/10000.0)*2 - 1
		vec[i] = float32(v)
		sumSq += v * v
	}
	norm := float32(1.0)
	if sumSq > 0 {
		norm = float32(1.0 / math.Sqrt(sumSq))
	}
	for i := range vec {
		vec[i] *= norm
	}
	return vec
}
