package health

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Harshitk-cp/engram/internal/domain"
)

func TestGroupBySubjectPredicate_GroupsAndRanksBest(t *testing.T) {
	facts := []domain.Fact{
		{ID: "fact-1", Subject: "user", Predicate: "likes", Object: "tea", Confidence: 0.6},
		{ID: "fact-2", Subject: "user", Predicate: "likes", Object: "tea", Confidence: 0.9, UserAffirmed: true},
		{ID: "fact-3", Subject: "user", Predicate: "works_at", Object: "acme"},
	}

	groups := GroupBySubjectPredicate(facts)
	assert.Len(t, groups, 1, "the works_at singleton should not form a duplicate group")
	assert.Equal(t, "fact-2", groups[0].Best.ID, "userAffirmed fact should rank first")
}

func TestIsDuplicateObject_NormalizedEquality(t *testing.T) {
	assert.True(t, IsDuplicateObject("Acme Corp", "acme corp"))
}

func TestIsDuplicateObject_LengthPrefix(t *testing.T) {
	assert.True(t, IsDuplicateObject("acme corporation", "acme corporatio"))
}

func TestIsDuplicateObject_LevenshteinSimilarity(t *testing.T) {
	assert.True(t, IsDuplicateObject("software engineer manager", "software enginer manager"))
}

func TestIsDuplicateObject_UnrelatedObjectsNotDuplicate(t *testing.T) {
	assert.False(t, IsDuplicateObject("coffee", "tea"))
}

func TestFindDuplicates_TrueDuplicateFlagged(t *testing.T) {
	group := DuplicateGroup{
		Best: domain.Fact{ID: "fact-1", Object: "Berlin"},
		Members: []domain.Fact{
			{ID: "fact-1", Object: "Berlin"},
			{ID: "fact-2", Object: "berlin"},
			{ID: "fact-3", Object: "Paris"},
		},
	}
	pairs := FindDuplicates(group)
	assert.Len(t, pairs, 1)
	assert.Equal(t, "fact-2", pairs[0].Dup.ID)
}
