package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Harshitk-cp/engram/internal/embedding"
)

func testConfig() Config {
	return Config{
		SimilarityThreshold:        0.85,
		ClusterSimilarityThreshold: 0.7,
		MaxClusters:                100,
		MinClusterSize:             2,
		CausalChainMaxDepth:        5,
		CausalChainMinSimilarity:   0.15,
		PrefetchLatencyTargetMs:    100,
		HybridAlpha:                0.5,
		MinHybridScore:             0.3,
		MaxResults:                 10,
		MinRetentionScore:          0.3,
		StaleDays:                  30,
		MaxSimilarFacts:            5,
	}
}

// newTestEngine builds an Engine against a fresh on-disk SQLite file
// with a deterministic embedder and no LLM client, so extraction takes
// the regex/rule fallback path (spec.md §4.2) and every result is
// reproducible without a network call.
func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "agent-1.db")
	e, err := New(context.Background(), "agent-1", dbPath, nil, embedding.NewMockClient(), testConfig(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestEngine_StoreFact_IndexesAndPersists(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	outcome := e.StoreFact(ctx, "user", "works_at", "acme corp", 0.9, true)
	assert.True(t, outcome.Success)
	assert.False(t, outcome.Merged)
	assert.NotEmpty(t, outcome.ID)

	stats, err := e.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ActiveFactCount)
}

func TestEngine_StoreFact_MergesNearDuplicate(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	first := e.StoreFact(ctx, "user", "works_at", "acme corp", 0.9, true)
	require.True(t, first.Success)

	second := e.StoreFact(ctx, "user", "works_at", "acme corp", 0.92, true)
	require.True(t, second.Success)
	assert.True(t, second.Merged)

	stats, err := e.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ActiveFactCount)
}

func TestEngine_LearnFromConversation_ExtractsFactAndCausalLink(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	text := "I work at Acme Corp. Rent increased because the lease renewed."
	result, err := e.LearnFromConversation(ctx, "session-1", []string{"msg-1"}, text)
	require.NoError(t, err)

	assert.NotEmpty(t, result.Episode.ID)
	assert.Equal(t, 1, result.FactsStored)
	assert.Equal(t, 0, result.FactsMerged)
	assert.Equal(t, 1, result.CausalLinksStored)

	stats, err := e.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.EpisodeCount)
	assert.Equal(t, 1, stats.ActiveFactCount)
	assert.Equal(t, 1, stats.CausalLinkCount)
}

func TestEngine_SearchMemories_FindsStoredFact(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	outcome := e.StoreFact(ctx, "user", "works_at", "acme corp", 0.9, true)
	require.True(t, outcome.Success)

	results, err := e.SearchMemories(ctx, "acme corp")
	require.NoError(t, err)
	found := false
	for _, r := range results {
		if r.Fact.ID == outcome.ID {
			found = true
		}
	}
	assert.True(t, found, "expected search to surface the stored fact, got %+v", results)
}

func TestEngine_PrefetchMemories_ReturnsWithinResult(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.LearnFromConversation(ctx, "session-1", []string{"msg-1"}, "I work at Acme Corp.")
	require.NoError(t, err)

	result, err := e.PrefetchMemories(ctx, "Tell me about Acme Corp")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.Timing.TotalMs, float64(0))
}

func TestEngine_SearchCausalLinksByEffect_TraversesStoredLink(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.LearnFromConversation(ctx, "session-1", []string{"msg-1"},
		"Rent increased because the lease renewed.")
	require.NoError(t, err)

	chain, err := e.SearchCausalLinksByEffect(ctx, "Rent increased")
	require.NoError(t, err)
	assert.NotEmpty(t, chain.Links)
}

func TestEngine_RunCleanup_ReportsHealthScore(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	outcome := e.StoreFact(ctx, "user", "prefers", "it", 0.5, false)
	require.True(t, outcome.Success)

	report, err := e.RunCleanup(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, report.LowQualityFixed)
	assert.Equal(t, 100, report.HealthScore)
}
