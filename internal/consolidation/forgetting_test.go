package consolidation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Harshitk-cp/engram/internal/domain"
)

type fakeFactStore struct {
	facts map[string]*domain.Fact
}

func newFakeFactStore(facts ...domain.Fact) *fakeFactStore {
	m := map[string]*domain.Fact{}
	for i := range facts {
		f := facts[i]
		m[f.ID] = &f
	}
	return &fakeFactStore{facts: m}
}

func (s *fakeFactStore) Insert(ctx context.Context, f *domain.Fact) error {
	s.facts[f.ID] = f
	return nil
}
func (s *fakeFactStore) GetByID(ctx context.Context, id string) (*domain.Fact, error) {
	f, ok := s.facts[id]
	if !ok {
		return nil, domain.Wrap("get", domain.ErrNotFound, nil)
	}
	return f, nil
}
func (s *fakeFactStore) Find(ctx context.Context, filter domain.FactFilter) ([]domain.Fact, error) {
	return nil, nil
}
func (s *fakeFactStore) ListActive(ctx context.Context) ([]domain.Fact, error) {
	var out []domain.Fact
	for _, f := range s.facts {
		if f.IsActive {
			out = append(out, *f)
		}
	}
	return out, nil
}
func (s *fakeFactStore) ListActiveWithEmbeddings(ctx context.Context, limit int) ([]domain.Fact, error) {
	var out []domain.Fact
	for _, f := range s.facts {
		if f.IsActive && len(f.Embedding) > 0 {
			out = append(out, *f)
		}
	}
	return out, nil
}
func (s *fakeFactStore) Retract(ctx context.Context, id string, reason string) error {
	f, ok := s.facts[id]
	if !ok {
		return domain.Wrap("retract", domain.ErrNotFound, nil)
	}
	f.IsActive = false
	f.RetractedReason = reason
	return nil
}
func (s *fakeFactStore) Reactivate(ctx context.Context, id string) error { return nil }
func (s *fakeFactStore) Update(ctx context.Context, f *domain.Fact) error {
	s.facts[f.ID] = f
	return nil
}
func (s *fakeFactStore) IncrementAccess(ctx context.Context, id string) error { return nil }
func (s *fakeFactStore) FindExisting(ctx context.Context, subject, predicate, object string) (*domain.Fact, error) {
	return nil, nil
}

type fakeEpisodeStore struct {
	episodes  map[string]*domain.Episode
	forgotten map[string]string
}

func newFakeEpisodeStore(episodes ...domain.Episode) *fakeEpisodeStore {
	m := map[string]*domain.Episode{}
	for i := range episodes {
		e := episodes[i]
		m[e.ID] = &e
	}
	return &fakeEpisodeStore{episodes: m, forgotten: map[string]string{}}
}

func (s *fakeEpisodeStore) Insert(ctx context.Context, e *domain.Episode) error { return nil }
func (s *fakeEpisodeStore) GetByID(ctx context.Context, id string) (*domain.Episode, error) {
	return nil, nil
}
func (s *fakeEpisodeStore) Query(ctx context.Context, filter domain.EpisodeFilter) ([]domain.Episode, error) {
	var out []domain.Episode
	for _, e := range s.episodes {
		if filter.ActiveOnly && s.forgotten[e.ID] != "" {
			continue
		}
		out = append(out, *e)
	}
	return out, nil
}
func (s *fakeEpisodeStore) RecordAccess(ctx context.Context, id string) error { return nil }
func (s *fakeEpisodeStore) ListRecent(ctx context.Context, limit int) ([]domain.Episode, error) {
	return nil, nil
}
func (s *fakeEpisodeStore) ListAll(ctx context.Context) ([]domain.Episode, error) { return nil, nil }
func (s *fakeEpisodeStore) ListOlderThan(ctx context.Context, cutoff time.Time) ([]domain.Episode, error) {
	return nil, nil
}
func (s *fakeEpisodeStore) MarkForgotten(ctx context.Context, id string, reason string) error {
	s.forgotten[id] = reason
	return nil
}

type fakeChangeStore struct {
	changes []domain.MemoryChange
}

func (s *fakeChangeStore) Append(ctx context.Context, c *domain.MemoryChange) error {
	s.changes = append(s.changes, *c)
	return nil
}
func (s *fakeChangeStore) ListByTarget(ctx context.Context, targetID string) ([]domain.MemoryChange, error) {
	return nil, nil
}
func (s *fakeChangeStore) ListAll(ctx context.Context, limit int) ([]domain.MemoryChange, error) {
	return s.changes, nil
}

func TestRetentionScore_AllFactorsMax(t *testing.T) {
	score := RetentionScore(RetentionFactors{1, 1, 1, 1, 1, 1})
	assert.InDelta(t, 1.0, score, 0.001)
}

func TestRecommend_Thresholds(t *testing.T) {
	assert.Equal(t, RecommendKeep, Recommend(0.6))
	assert.Equal(t, RecommendDemote, Recommend(0.3))
	assert.Equal(t, RecommendDemote, Recommend(0.59))
	assert.Equal(t, RecommendForget, Recommend(0.29))
}

func TestApplyForgetting_StaleZeroAccessEpisodeForgotten(t *testing.T) {
	old := time.Now().Add(-60 * 24 * time.Hour)
	facts := newFakeFactStore()
	episodes := newFakeEpisodeStore(domain.Episode{
		ID: "ep-1", CreatedAt: old, AccessCount: 0, EmotionalSalience: 0, TTL: domain.TTL30Days,
	})
	changes := &fakeChangeStore{}

	report, err := ApplyForgetting(context.Background(), facts, episodes, changes, nil, nil,
		ForgettingConfig{StaleDays: 30}, "run-1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, RecommendForget, report.EpisodeRecommendations["ep-1"])
	assert.Equal(t, 1, report.Forgotten)
	assert.Equal(t, "retention score below floor", episodes.forgotten["ep-1"])
}

func TestApplyForgetting_UserAffirmedFactNeverForgotten(t *testing.T) {
	facts := newFakeFactStore(domain.Fact{
		ID: "fact-1", IsActive: true, UserAffirmed: true, Confidence: 0.01,
		LastConfirmed: time.Now().Add(-1000 * 24 * time.Hour),
	})
	episodes := newFakeEpisodeStore()
	changes := &fakeChangeStore{}

	report, err := ApplyForgetting(context.Background(), facts, episodes, changes, nil, nil,
		ForgettingConfig{StaleDays: 30}, "run-1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, RecommendKeep, report.FactRecommendations["fact-1"])
	assert.True(t, facts.facts["fact-1"].IsActive)
}

func TestApplyForgetting_WellConnectedRecentFactKept(t *testing.T) {
	facts := newFakeFactStore(domain.Fact{
		ID: "fact-1", IsActive: true, Confidence: 0.9, AccessCount: 20,
		LastConfirmed: time.Now(),
	})
	episodes := newFakeEpisodeStore()
	changes := &fakeChangeStore{}
	links := []domain.CausalLink{
		{CauseID: "fact-1"}, {CauseID: "fact-1"}, {EffectID: "fact-1"},
	}

	report, err := ApplyForgetting(context.Background(), facts, episodes, changes, links,
		map[string]float64{"fact-1": 1.0}, ForgettingConfig{StaleDays: 30}, "run-1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, RecommendKeep, report.FactRecommendations["fact-1"])
	assert.True(t, facts.facts["fact-1"].IsActive)
}

func TestApplyForgetting_IsolatedFactDemoted(t *testing.T) {
	facts := newFakeFactStore(domain.Fact{
		ID: "fact-1", IsActive: true, Confidence: 0.9, AccessCount: 20,
		LastConfirmed: time.Now(),
	})
	episodes := newFakeEpisodeStore()
	changes := &fakeChangeStore{}

	report, err := ApplyForgetting(context.Background(), facts, episodes, changes, nil,
		map[string]float64{"fact-1": 1.0}, ForgettingConfig{StaleDays: 30}, "run-1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, RecommendDemote, report.FactRecommendations["fact-1"])
	assert.True(t, facts.facts["fact-1"].IsActive)
	assert.Less(t, facts.facts["fact-1"].Confidence, float32(0.9))
}
