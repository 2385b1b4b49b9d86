package llm

import (
	"context"

	"github.com/Harshitk-cp/engram/internal/domain"
)

// MockClient is a deterministic stand-in for local development and
// tests, used when LLM_PROVIDER=mock. It never calls out to the
// network; JSON-mode requests get an empty-but-valid JSON value so
// callers fall through to their rule-based behavior exactly as if the
// provider were unavailable, without actually erroring.
type MockClient struct{}

func NewMockClient() *MockClient { return &MockClient{} }

func (c *MockClient) Name() string { return "mock" }

func (c *MockClient) Complete(ctx context.Context, prompt string, opts domain.CompletionOpts) (string, error) {
	if opts.JSONMode {
		return "{}", nil
	}
	return "", nil
}
