package retrieval

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Harshitk-cp/engram/internal/domain"
	"github.com/Harshitk-cp/engram/internal/index"
)

type stubEpisodeStore struct {
	recent []domain.Episode
}

func (s *stubEpisodeStore) Insert(ctx context.Context, e *domain.Episode) error { return nil }
func (s *stubEpisodeStore) GetByID(ctx context.Context, id string) (*domain.Episode, error) {
	return nil, nil
}
func (s *stubEpisodeStore) Query(ctx context.Context, filter domain.EpisodeFilter) ([]domain.Episode, error) {
	return nil, nil
}
func (s *stubEpisodeStore) RecordAccess(ctx context.Context, id string) error { return nil }
func (s *stubEpisodeStore) ListRecent(ctx context.Context, limit int) ([]domain.Episode, error) {
	if limit < len(s.recent) {
		return s.recent[:limit], nil
	}
	return s.recent, nil
}
func (s *stubEpisodeStore) ListAll(ctx context.Context) ([]domain.Episode, error) { return nil, nil }
func (s *stubEpisodeStore) ListOlderThan(ctx context.Context, cutoff time.Time) ([]domain.Episode, error) {
	return nil, nil
}
func (s *stubEpisodeStore) MarkForgotten(ctx context.Context, id string, reason string) error {
	return nil
}

func TestShouldPrefetch_SkipsTrivialUtterances(t *testing.T) {
	assert.False(t, shouldPrefetch("ok"))
	assert.False(t, shouldPrefetch("  Thanks!  "))
	assert.True(t, shouldPrefetch("I just moved to Berlin for a new job"))
}

func TestPrefetcher_SkipsTrivialMessage(t *testing.T) {
	episodes := &stubEpisodeStore{recent: []domain.Episode{{ID: "ep-1"}}}
	p := NewPrefetcher(episodes, index.NewEntityIndex())

	result, err := p.Prefetch(context.Background(), "ok")
	require.NoError(t, err)
	assert.Empty(t, result.Episodes)
	assert.True(t, result.Timing.MetTarget)
}

func TestPrefetcher_ReturnsRecentEpisodesAndEntityMatches(t *testing.T) {
	entities := index.NewEntityIndex()
	entities.Add("fact-1", "user", "Acme")

	episodes := &stubEpisodeStore{recent: []domain.Episode{{ID: "ep-1"}, {ID: "ep-2"}}}
	p := NewPrefetcher(episodes, entities)

	result, err := p.Prefetch(context.Background(), "What's new at Acme?")
	require.NoError(t, err)
	assert.Len(t, result.Episodes, 2)
	assert.Contains(t, result.EntityMatchIDs, "fact-1")
	assert.True(t, result.Timing.TotalMs >= 0)
}
