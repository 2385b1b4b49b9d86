package consolidation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Harshitk-cp/engram/internal/domain"
)

func vec(fill float32) []float32 {
	v := make([]float32, 384)
	for i := range v {
		v[i] = fill
	}
	return v
}

func TestConsolidateFacts_MergeAction(t *testing.T) {
	facts := newFakeFactStore(
		domain.Fact{ID: "fact-1", Subject: "user", Predicate: "works_at", Object: "acme", IsActive: true, Embedding: vec(0.5)},
		domain.Fact{ID: "fact-2", Subject: "user", Predicate: "works_at", Object: "acme corp", IsActive: true, Embedding: vec(0.5)},
	)
	changes := &fakeChangeStore{}
	llmClient := &fakeLLM{response: `{"action":"merge","merged_object":"acme corp","reason":"same employer"}`}

	result, err := ConsolidateFacts(context.Background(), llmClient, facts, changes, 0.85, "run-1", zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Merged)
	assert.False(t, facts.facts["fact-1"].IsActive)
	assert.False(t, facts.facts["fact-2"].IsActive)

	mergedCount := 0
	for _, f := range facts.facts {
		if f.IsActive {
			mergedCount++
		}
	}
	assert.Equal(t, 1, mergedCount)
}

func TestConsolidateFacts_RetractAction(t *testing.T) {
	facts := newFakeFactStore(
		domain.Fact{ID: "fact-1", Subject: "user", Predicate: "likes", Object: "tea", IsActive: true, Embedding: vec(0.5)},
		domain.Fact{ID: "fact-2", Subject: "user", Predicate: "likes", Object: "coffee", IsActive: true, Embedding: vec(0.5)},
	)
	changes := &fakeChangeStore{}
	llmClient := &fakeLLM{response: `{"action":"retract","retract_target":"a","reason":"superseded"}`}

	result, err := ConsolidateFacts(context.Background(), llmClient, facts, changes, 0.85, "run-1", zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Retracted)
	assert.False(t, facts.facts["fact-1"].IsActive)
	assert.True(t, facts.facts["fact-2"].IsActive)
}

func TestConsolidateFacts_DissimilarPairSkipsLLM(t *testing.T) {
	facts := newFakeFactStore(
		domain.Fact{ID: "fact-1", Subject: "user", Predicate: "likes", Object: "tea", IsActive: true, Embedding: vec(1.0)},
		domain.Fact{ID: "fact-2", Subject: "user", Predicate: "likes", Object: "coffee", IsActive: true, Embedding: vec(-1.0)},
	)
	changes := &fakeChangeStore{}
	llmClient := &fakeLLM{response: `{"action":"merge"}`}

	result, err := ConsolidateFacts(context.Background(), llmClient, facts, changes, 0.85, "run-1", zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Merged)
	assert.Equal(t, 0, llmClient.calls)
}
