package consolidation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Harshitk-cp/engram/internal/domain"
)

type fakeCausalLinkStore struct {
	links []domain.CausalLink
}

func (s *fakeCausalLinkStore) Insert(ctx context.Context, l *domain.CausalLink) error {
	s.links = append(s.links, *l)
	return nil
}
func (s *fakeCausalLinkStore) GetByID(ctx context.Context, id string) (*domain.CausalLink, error) {
	return nil, nil
}
func (s *fakeCausalLinkStore) Find(ctx context.Context, filter domain.CausalLinkFilter) ([]domain.CausalLink, error) {
	return nil, nil
}
func (s *fakeCausalLinkStore) ListAll(ctx context.Context) ([]domain.CausalLink, error) {
	return s.links, nil
}
func (s *fakeCausalLinkStore) FindEventByDescription(ctx context.Context, normalizedDescription string) (string, bool, error) {
	return "", false, nil
}

type runnerFakeStore struct {
	episodes *fakeEpisodeStore
	facts    *fakeFactStore
	links    *fakeCausalLinkStore
	changes  *fakeChangeStore
	runs     *fakeRunStore
}

func (s *runnerFakeStore) Episodes() domain.EpisodeStore           { return s.episodes }
func (s *runnerFakeStore) Facts() domain.FactStore                 { return s.facts }
func (s *runnerFakeStore) CausalLinks() domain.CausalLinkStore     { return s.links }
func (s *runnerFakeStore) Procedures() domain.ProcedureStore       { return nil }
func (s *runnerFakeStore) Clusters() domain.ClusterStore           { return nil }
func (s *runnerFakeStore) Changes() domain.ChangeStore             { return s.changes }
func (s *runnerFakeStore) Runs() domain.ConsolidationRunStore      { return s.runs }
func (s *runnerFakeStore) Foresights() domain.ForesightStore       { return nil }
func (s *runnerFakeStore) UserProfiles() domain.UserProfileStore   { return nil }
func (s *runnerFakeStore) Preferences() domain.PreferenceStore     { return nil }
func (s *runnerFakeStore) Relationships() domain.RelationshipStore { return nil }
func (s *runnerFakeStore) CoreMemories() domain.CoreMemoryStore    { return nil }
func (s *runnerFakeStore) GetStats(ctx context.Context) (*domain.Stats, error) {
	return nil, nil
}
func (s *runnerFakeStore) Close() error { return nil }

func TestRunner_Run_CompletesAndResolvesContradiction(t *testing.T) {
	now := time.Now()
	store := &runnerFakeStore{
		episodes: newFakeEpisodeStore(domain.Episode{ID: "ep-1", Summary: "moved cities", CreatedAt: now, Timestamp: now}),
		facts: newFakeFactStore(
			domain.Fact{ID: "fact-1", Subject: "user", Predicate: "lives_in", Object: "berlin", IsActive: true, AccessCount: 10, FirstSeen: now.Add(-time.Hour), LastConfirmed: now.Add(-time.Hour)},
			domain.Fact{ID: "fact-2", Subject: "user", Predicate: "lives_in", Object: "paris", IsActive: true, AccessCount: 10, FirstSeen: now, LastConfirmed: now},
		),
		links:   &fakeCausalLinkStore{},
		changes: &fakeChangeStore{},
		runs:    &fakeRunStore{},
	}

	runner := NewRunner(store, nil, zap.NewNop(), 0.85, 30)
	run, err := runner.Run(context.Background(), TriggerScheduled)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, run.Status)
	assert.Equal(t, 1, run.ItemsResolved)

	activeCount := 0
	for _, f := range store.facts.facts {
		if f.IsActive {
			activeCount++
		}
	}
	assert.Equal(t, 1, activeCount, "exactly one of the contradicting facts should survive")
}

func TestRunner_Run_NoLLMStillCompletes(t *testing.T) {
	store := &runnerFakeStore{
		episodes: newFakeEpisodeStore(),
		facts:    newFakeFactStore(),
		links:    &fakeCausalLinkStore{},
		changes:  &fakeChangeStore{},
		runs:     &fakeRunStore{},
	}

	runner := NewRunner(store, nil, zap.NewNop(), 0.85, 30)
	run, err := runner.Run(context.Background(), TriggerInitial)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, run.Status)
	assert.NotNil(t, run.FinishedAt)
}
