package domain

import "context"

// Message is one turn of a transcript fed to the extractor.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionOpts parametrizes an LLMClient.Complete call (spec.md §6).
type CompletionOpts struct {
	Temperature float32
	MaxTokens   int
	System      string
	JSONMode    bool
}

// LLMClient is the opaque text-completion collaborator (spec.md §6).
// The core only requires JSON-mode compliance when JSONMode is set.
// Only the extractor's fact-extraction call retries a malformed reply
// once, then abandons it; the other JSON-mode callers do not retry and
// fall back on the first malformed reply.
type LLMClient interface {
	Complete(ctx context.Context, prompt string, opts CompletionOpts) (string, error)
	Name() string
}

// EmbeddingClient is the opaque text-embedding collaborator (spec.md §6).
// Dimensions must lie in [384, 8192] and stay constant per instance.
type EmbeddingClient interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
	Dimensions() int
}

const (
	MinEmbeddingDim = 384
	MaxEmbeddingDim = 8192
)

// ValidEmbeddingDim reports whether dim lies in the contractual range.
func ValidEmbeddingDim(dim int) bool {
	return dim >= MinEmbeddingDim && dim <= MaxEmbeddingDim
}
