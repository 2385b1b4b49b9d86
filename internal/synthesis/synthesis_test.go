package synthesis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Harshitk-cp/engram/internal/domain"
)

// fakeEmbedder returns a fixed vector per call, letting tests control
// similarity deterministically instead of hashing real text.
type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Name() string       { return "fake" }
func (f *fakeEmbedder) Dimensions() int    { return len(f.vec) }
func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return f.vec, f.err
}
func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, f.err
}

// fakeFactStore is a minimal in-memory domain.FactStore for exercising
// the synthesis pipeline without the SQLite layer.
type fakeFactStore struct {
	facts map[string]*domain.Fact
}

func newFakeFactStore() *fakeFactStore {
	return &fakeFactStore{facts: map[string]*domain.Fact{}}
}

func (s *fakeFactStore) Insert(ctx context.Context, f *domain.Fact) error {
	cp := *f
	s.facts[f.ID] = &cp
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
	var out []domain.Fact
	for _, f := range s.facts {
		if filter.Subject != "" && f.Subject != filter.Subject {
			continue
		}
		if filter.Predicate != "" && f.Predicate != filter.Predicate {
			continue
		}
		if filter.Object != "" && f.Object != filter.Object {
			continue
		}
		if filter.ActiveOnly && !f.IsActive {
			continue
		}
		out = append(out, *f)
	}
	return out, nil
}
func (s *fakeFactStore) ListActive(ctx context.Context) ([]domain.Fact, error) { return nil, nil }
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

type fakeChangeStore struct {
	rows []domain.MemoryChange
}

func (s *fakeChangeStore) Append(ctx context.Context, c *domain.MemoryChange) error {
	s.rows = append(s.rows, *c)
	return nil
}
func (s *fakeChangeStore) ListByTarget(ctx context.Context, targetID string) ([]domain.MemoryChange, error) {
	return nil, nil
}
func (s *fakeChangeStore) ListAll(ctx context.Context, limit int) ([]domain.MemoryChange, error) {
	return s.rows, nil
}

func vec384(fill float32) []float32 {
	v := make([]float32, 384)
	for i := range v {
		v[i] = fill
	}
	return v
}

func TestAbsorb_NoCandidates_InsertsAsIs(t *testing.T) {
	facts := newFakeFactStore()
	changes := &fakeChangeStore{}
	embedder := &fakeEmbedder{vec: vec384(1)}
	s := New(facts, changes, embedder, nil, Config{SimilarityThreshold: 0.85, MaxSimilarFacts: 5}, zap.NewNop())

	f := &domain.Fact{ID: "fact-1", Subject: "user", Predicate: "likes", Object: "coffee", IsActive: true}
	merged, err := s.Absorb(context.Background(), f, "ep-1")

	require.NoError(t, err)
	assert.False(t, merged)
	assert.Contains(t, facts.facts, "fact-1")
	require.Len(t, changes.rows, 1)
	assert.Equal(t, domain.ChangeAdd, changes.rows[0].ChangeType)
	assert.Equal(t, "fact-1", changes.rows[0].TargetID)
}

func TestAbsorb_SimilarCandidate_MergesAndRetracts(t *testing.T) {
	facts := newFakeFactStore()
	changes := &fakeChangeStore{}
	embedder := &fakeEmbedder{vec: vec384(1)}
	s := New(facts, changes, embedder, nil, Config{SimilarityThreshold: 0.85, MaxSimilarFacts: 5}, zap.NewNop())

	existing := &domain.Fact{
		ID: "fact-old", Subject: "user", Predicate: "likes", Object: "coffee",
		IsActive: true, Confidence: 0.6, Evidence: []string{"ep-0"},
		Embedding: vec384(1), FirstSeen: time.Now().Add(-time.Hour),
	}
	require.NoError(t, facts.Insert(context.Background(), existing))

	incoming := &domain.Fact{
		ID: "fact-new", Subject: "user", Predicate: "likes", Object: "coffee",
		IsActive: true, Confidence: 0.9, Evidence: []string{"ep-1"}, UserAffirmed: true,
	}
	merged, err := s.Absorb(context.Background(), incoming, "ep-1")

	require.NoError(t, err)
	assert.True(t, merged)
	assert.NotEqual(t, "fact-new", incoming.ID, "Absorb replaces the candidate's identity with the merged survivor")
	assert.False(t, facts.facts["fact-old"].IsActive)
	assert.Contains(t, facts.facts["fact-old"].RetractedReason, incoming.ID)
	assert.InDelta(t, 0.9, incoming.Confidence, 0.001)
	assert.True(t, incoming.UserAffirmed)
	assert.ElementsMatch(t, []string{"ep-0", "ep-1"}, incoming.Evidence)
	require.Len(t, changes.rows, 1)
	assert.Equal(t, domain.ChangeMerge, changes.rows[0].ChangeType)
	assert.Equal(t, "fact-old", changes.rows[0].TargetID)
}

func TestAbsorb_DissimilarCandidate_NoMerge(t *testing.T) {
	facts := newFakeFactStore()
	changes := &fakeChangeStore{}
	embedder := &fakeEmbedder{vec: vec384(1)}
	s := New(facts, changes, embedder, nil, Config{SimilarityThreshold: 0.85, MaxSimilarFacts: 5}, zap.NewNop())

	orthogonal := vec384(0)
	orthogonal[0] = 1
	existing := &domain.Fact{
		ID: "fact-old", Subject: "user", Predicate: "likes", Object: "tea",
		IsActive: true, Embedding: orthogonal,
	}
	require.NoError(t, facts.Insert(context.Background(), existing))

	incoming := &domain.Fact{ID: "fact-new", Subject: "user", Predicate: "likes", Object: "coffee", IsActive: true}
	merged, err := s.Absorb(context.Background(), incoming, "ep-1")

	require.NoError(t, err)
	assert.False(t, merged)
	assert.True(t, facts.facts["fact-old"].IsActive)
}

// TestAbsorb_SingularPredicateConflict_RetractsLoserImmediately covers
// scenario S2: two orthogonal-embedding facts sharing a singular
// predicate must not both stay active once the second is absorbed,
// without waiting for a consolidation run.
func TestAbsorb_SingularPredicateConflict_RetractsLoserImmediately(t *testing.T) {
	facts := newFakeFactStore()
	changes := &fakeChangeStore{}

	acmeVec := vec384(0)
	acmeVec[0] = 1
	existing := &domain.Fact{
		ID: "fact-acme", Subject: "user", Predicate: "works_at", Object: "AcmeCo",
		IsActive: true, Embedding: acmeVec, Confidence: 0.8,
		FirstSeen: time.Now().Add(-time.Hour), LastConfirmed: time.Now().Add(-time.Hour),
	}
	require.NoError(t, facts.Insert(context.Background(), existing))

	globexVec := vec384(0)
	globexVec[1] = 1
	s := New(facts, changes, &fakeEmbedder{vec: globexVec}, nil, Config{SimilarityThreshold: 0.85, MaxSimilarFacts: 5}, zap.NewNop())

	incoming := &domain.Fact{
		ID: "fact-globex", Subject: "user", Predicate: "works_at", Object: "Globex",
		IsActive: true, UserAffirmed: true, LastConfirmed: time.Now(),
	}
	merged, err := s.Absorb(context.Background(), incoming, "ep-2")

	require.NoError(t, err)
	assert.False(t, merged)
	assert.True(t, facts.facts["fact-globex"].IsActive)
	assert.False(t, facts.facts["fact-acme"].IsActive, "AcmeCo must be retracted immediately, not after a consolidation pass")
	assert.Equal(t, "contradiction resolution", facts.facts["fact-acme"].RetractedReason)

	var sawRetract bool
	for _, c := range changes.rows {
		if c.ChangeType == domain.ChangeRetract && c.TargetID == "fact-acme" {
			sawRetract = true
		}
	}
	assert.True(t, sawRetract, "expected a ChangeRetract audit row for the contradicted fact")
}
