package consolidation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Harshitk-cp/engram/internal/domain"
)

type fakeRunStore struct {
	last *domain.ConsolidationRun
	runs []domain.ConsolidationRun
}

func (s *fakeRunStore) Insert(ctx context.Context, r *domain.ConsolidationRun) error {
	s.runs = append(s.runs, *r)
	s.last = r
	return nil
}
func (s *fakeRunStore) Update(ctx context.Context, r *domain.ConsolidationRun) error {
	s.last = r
	return nil
}
func (s *fakeRunStore) GetLast(ctx context.Context) (*domain.ConsolidationRun, error) {
	if s.last == nil {
		return nil, domain.Wrap("get", domain.ErrNotFound, nil)
	}
	return s.last, nil
}
func (s *fakeRunStore) ListSince(ctx context.Context, since time.Time) ([]domain.ConsolidationRun, error) {
	return s.runs, nil
}

type schedulerFakeStore struct {
	runs    *fakeRunStore
	changes *fakeChangeStore
}

func (s *schedulerFakeStore) Episodes() domain.EpisodeStore         { return nil }
func (s *schedulerFakeStore) Facts() domain.FactStore               { return nil }
func (s *schedulerFakeStore) CausalLinks() domain.CausalLinkStore   { return nil }
func (s *schedulerFakeStore) Procedures() domain.ProcedureStore     { return nil }
func (s *schedulerFakeStore) Clusters() domain.ClusterStore         { return nil }
func (s *schedulerFakeStore) Changes() domain.ChangeStore           { return s.changes }
func (s *schedulerFakeStore) Runs() domain.ConsolidationRunStore    { return s.runs }
func (s *schedulerFakeStore) Foresights() domain.ForesightStore     { return nil }
func (s *schedulerFakeStore) UserProfiles() domain.UserProfileStore { return nil }
func (s *schedulerFakeStore) Preferences() domain.PreferenceStore   { return nil }
func (s *schedulerFakeStore) Relationships() domain.RelationshipStore {
	return nil
}
func (s *schedulerFakeStore) CoreMemories() domain.CoreMemoryStore { return nil }
func (s *schedulerFakeStore) GetStats(ctx context.Context) (*domain.Stats, error) {
	return nil, nil
}
func (s *schedulerFakeStore) Close() error { return nil }

func TestCheckTriggers_NeverRunFiresInitial(t *testing.T) {
	store := &schedulerFakeStore{runs: &fakeRunStore{}, changes: &fakeChangeStore{}}
	sched := NewScheduler(store, nil, nil)

	trigger, ok, err := sched.CheckTriggers(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, TriggerInitial, trigger)
}

func TestCheckTriggers_ManyNewMemoriesFires(t *testing.T) {
	finished := time.Now().Add(-time.Minute)
	store := &schedulerFakeStore{
		runs:    &fakeRunStore{last: &domain.ConsolidationRun{StartedAt: time.Now().Add(-2 * time.Minute), FinishedAt: &finished}},
		changes: &fakeChangeStore{},
	}
	for i := 0; i < 50; i++ {
		store.changes.changes = append(store.changes.changes, domain.MemoryChange{
			ChangeType: domain.ChangeAdd, CreatedAt: time.Now(),
		})
	}
	sched := NewScheduler(store, nil, nil)

	trigger, ok, err := sched.CheckTriggers(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, TriggerManyNew, trigger)
}

func TestCheckTriggers_DeepSleepAfter24Hours(t *testing.T) {
	old := time.Now().Add(-25 * time.Hour)
	store := &schedulerFakeStore{
		runs:    &fakeRunStore{last: &domain.ConsolidationRun{StartedAt: old, FinishedAt: &old}},
		changes: &fakeChangeStore{},
	}
	sched := NewScheduler(store, nil, nil)

	trigger, ok, err := sched.CheckTriggers(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, TriggerDeepSleep, trigger)
}

func TestCheckTriggers_NothingFiresWhenRecentAndQuiet(t *testing.T) {
	recent := time.Now().Add(-time.Minute)
	store := &schedulerFakeStore{
		runs:    &fakeRunStore{last: &domain.ConsolidationRun{StartedAt: recent, FinishedAt: &recent}},
		changes: &fakeChangeStore{},
	}
	sched := NewScheduler(store, nil, nil)

	_, ok, err := sched.CheckTriggers(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}
