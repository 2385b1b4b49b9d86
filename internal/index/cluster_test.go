package index

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Harshitk-cp/engram/internal/domain"
)

type fakeClusterStore struct {
	clusters map[string]*domain.MemoryCluster
	seq      int
}

func newFakeClusterStore() *fakeClusterStore {
	return &fakeClusterStore{clusters: map[string]*domain.MemoryCluster{}}
}

func (s *fakeClusterStore) Insert(ctx context.Context, c *domain.MemoryCluster) error {
	if c.ID == "" {
		s.seq++
		c.ID = "generated-cluster"
	}
	cp := *c
	s.clusters[c.ID] = &cp
	return nil
}
func (s *fakeClusterStore) GetByID(ctx context.Context, id string) (*domain.MemoryCluster, error) {
	c, ok := s.clusters[id]
	if !ok {
		return nil, domain.Wrap("get", domain.ErrNotFound, nil)
	}
	return c, nil
}
func (s *fakeClusterStore) ListAll(ctx context.Context) ([]domain.MemoryCluster, error) {
	var out []domain.MemoryCluster
	for _, c := range s.clusters {
		out = append(out, *c)
	}
	return out, nil
}
func (s *fakeClusterStore) ListValid(ctx context.Context, minSize int) ([]domain.MemoryCluster, error) {
	return nil, nil
}
func (s *fakeClusterStore) Update(ctx context.Context, c *domain.MemoryCluster) error {
	cp := *c
	s.clusters[c.ID] = &cp
	return nil
}
func (s *fakeClusterStore) Delete(ctx context.Context, id string) error {
	delete(s.clusters, id)
	return nil
}

func TestClusterManager_CreatesFirstCluster(t *testing.T) {
	store := newFakeClusterStore()
	m := NewClusterManager(store, ClusterConfig{SimilarityThreshold: 0.7, MaxClusters: 10, MinClusterSize: 2}, zap.NewNop())

	err := m.Assign(context.Background(), "fact-1", domain.MemberFact, []float32{1, 0, 0}, time.Now(), []string{"coffee"})
	require.NoError(t, err)
	assert.Len(t, store.clusters, 1)
}

func TestClusterManager_AttachesToSimilarCluster(t *testing.T) {
	store := newFakeClusterStore()
	m := NewClusterManager(store, ClusterConfig{SimilarityThreshold: 0.7, MaxClusters: 10, MinClusterSize: 2}, zap.NewNop())

	require.NoError(t, m.Assign(context.Background(), "fact-1", domain.MemberFact, []float32{1, 0, 0}, time.Now(), nil))
	require.NoError(t, m.Assign(context.Background(), "fact-2", domain.MemberFact, []float32{0.95, 0.05, 0}, time.Now(), nil))

	require.Len(t, store.clusters, 1)
	for _, c := range store.clusters {
		assert.Len(t, c.MemberIDs, 2)
	}
}

func TestClusterManager_DissimilarCreatesNewCluster(t *testing.T) {
	store := newFakeClusterStore()
	m := NewClusterManager(store, ClusterConfig{SimilarityThreshold: 0.7, MaxClusters: 10, MinClusterSize: 2}, zap.NewNop())

	require.NoError(t, m.Assign(context.Background(), "fact-1", domain.MemberFact, []float32{1, 0, 0}, time.Now(), nil))
	require.NoError(t, m.Assign(context.Background(), "fact-2", domain.MemberFact, []float32{0, 1, 0}, time.Now(), nil))

	assert.Len(t, store.clusters, 2)
}

func TestClusterManager_EvictsAtMaxClusters(t *testing.T) {
	store := newFakeClusterStore()
	m := NewClusterManager(store, ClusterConfig{SimilarityThreshold: 0.99, MaxClusters: 2, MinClusterSize: 2}, zap.NewNop())

	require.NoError(t, m.Assign(context.Background(), "fact-1", domain.MemberFact, []float32{1, 0, 0}, time.Now(), nil))
	require.NoError(t, m.Assign(context.Background(), "fact-2", domain.MemberFact, []float32{0, 1, 0}, time.Now(), nil))
	require.Len(t, store.clusters, 2)

	// A third, dissimilar embedding forces an evict-then-create at the cap.
	require.NoError(t, m.Assign(context.Background(), "fact-3", domain.MemberFact, []float32{0, 0, 1}, time.Now(), nil))
	assert.Len(t, store.clusters, 2, "the two most-similar clusters merge before the new one is created")
}
