package consolidation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Harshitk-cp/engram/internal/domain"
)

type fakeLLM struct {
	response string
	err      error
	calls    int
}

func (f *fakeLLM) Name() string { return "fake" }
func (f *fakeLLM) Complete(ctx context.Context, prompt string, opts domain.CompletionOpts) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func TestDiscoverPatterns_ParsesResponse(t *testing.T) {
	llmClient := &fakeLLM{response: `{"patterns":[{"theme":"career change","supporting_ids":["ep-1","ep-2"],"summary":"user is switching jobs"}]}`}
	episodes := []domain.Episode{{ID: "ep-1", Summary: "talked about new job"}, {ID: "ep-2", Summary: "mentioned quitting"}}

	patterns := DiscoverPatterns(context.Background(), llmClient, episodes, zap.NewNop())
	require.Len(t, patterns, 1)
	assert.Equal(t, "career change", patterns[0].Theme)
	assert.Equal(t, 1, llmClient.calls)
}

func TestDiscoverPatterns_NoLLMClientReturnsNil(t *testing.T) {
	patterns := DiscoverPatterns(context.Background(), nil, []domain.Episode{{ID: "ep-1"}}, zap.NewNop())
	assert.Nil(t, patterns)
}

func TestDiscoverConnections_FiltersExistingLinks(t *testing.T) {
	llmClient := &fakeLLM{response: `{"connections":[
		{"cause_id":"fact-1","effect_id":"fact-2","mechanism":"m","confidence":0.6},
		{"cause_id":"fact-3","effect_id":"fact-4","mechanism":"m","confidence":0.7}
	]}`}
	facts := []domain.Fact{{ID: "fact-1"}, {ID: "fact-2"}, {ID: "fact-3"}, {ID: "fact-4"}}
	existing := []domain.CausalLink{{CauseID: "fact-1", EffectID: "fact-2"}}

	connections := DiscoverConnections(context.Background(), llmClient, facts, existing, zap.NewNop())
	require.Len(t, connections, 1)
	assert.Equal(t, "fact-3", connections[0].CauseID)
}

func TestDiscoverConnections_TooFewFactsSkipsLLMCall(t *testing.T) {
	llmClient := &fakeLLM{response: `{"connections":[]}`}
	connections := DiscoverConnections(context.Background(), llmClient, []domain.Fact{{ID: "fact-1"}}, nil, zap.NewNop())
	assert.Nil(t, connections)
	assert.Equal(t, 0, llmClient.calls)
}
