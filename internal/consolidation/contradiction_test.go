package consolidation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Harshitk-cp/engram/internal/domain"
)

func TestIsContradiction_SingularPredicateDifferentObjects(t *testing.T) {
	a := domain.Fact{Subject: "user", Predicate: "lives_in", Object: "berlin"}
	b := domain.Fact{Subject: "user", Predicate: "lives_in", Object: "paris"}
	assert.True(t, IsContradiction(a, b))
}

func TestIsContradiction_NegationAsymmetry(t *testing.T) {
	a := domain.Fact{Subject: "user", Predicate: "likes", Object: "coffee"}
	b := domain.Fact{Subject: "user", Predicate: "likes", Object: "not coffee"}
	assert.True(t, IsContradiction(a, b))
}

func TestIsContradiction_DifferentSubjectsNoConflict(t *testing.T) {
	a := domain.Fact{Subject: "user", Predicate: "lives_in", Object: "berlin"}
	b := domain.Fact{Subject: "colleague", Predicate: "lives_in", Object: "paris"}
	assert.False(t, IsContradiction(a, b))
}

func TestIsContradiction_NonSingularSameObjectNoConflict(t *testing.T) {
	a := domain.Fact{Subject: "user", Predicate: "likes", Object: "coffee"}
	b := domain.Fact{Subject: "user", Predicate: "likes", Object: "coffee"}
	assert.False(t, IsContradiction(a, b))
}

func TestResolve_UserAffirmedWins(t *testing.T) {
	a := domain.Fact{ID: "fact-a", UserAffirmed: false, Confidence: 0.9}
	b := domain.Fact{ID: "fact-b", UserAffirmed: true, Confidence: 0.1}
	winner, loser := Resolve(a, b)
	assert.Equal(t, "fact-b", winner.ID)
	assert.Equal(t, "fact-a", loser.ID)
}

func TestResolve_MoreRecentLastConfirmedWins(t *testing.T) {
	now := time.Now()
	a := domain.Fact{ID: "fact-a", LastConfirmed: now.Add(-time.Hour)}
	b := domain.Fact{ID: "fact-b", LastConfirmed: now}
	winner, loser := Resolve(a, b)
	assert.Equal(t, "fact-b", winner.ID)
	assert.Equal(t, "fact-a", loser.ID)
}

func TestResolve_HigherConfidenceWins(t *testing.T) {
	a := domain.Fact{ID: "fact-a", Confidence: 0.4}
	b := domain.Fact{ID: "fact-b", Confidence: 0.8}
	winner, _ := Resolve(a, b)
	assert.Equal(t, "fact-b", winner.ID)
}

func TestResolve_LargerEvidenceWins(t *testing.T) {
	a := domain.Fact{ID: "fact-a", Evidence: []string{"ep-1"}}
	b := domain.Fact{ID: "fact-b", Evidence: []string{"ep-1", "ep-2"}}
	winner, _ := Resolve(a, b)
	assert.Equal(t, "fact-b", winner.ID)
}

func TestResolve_FirstInsertedWinsOnFullTie(t *testing.T) {
	seen := time.Now()
	a := domain.Fact{ID: "fact-a", FirstSeen: seen.Add(-time.Hour)}
	b := domain.Fact{ID: "fact-b", FirstSeen: seen}
	winner, loser := Resolve(a, b)
	assert.Equal(t, "fact-a", winner.ID)
	assert.Equal(t, "fact-b", loser.ID)
}
