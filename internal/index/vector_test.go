package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVectorIndex_SearchRanksBySimilarity(t *testing.T) {
	idx := NewVectorIndex()
	idx.Add("a", "fact", []float32{1, 0, 0})
	idx.Add("b", "fact", []float32{0, 1, 0})
	idx.Add("c", "fact", []float32{0.9, 0.1, 0})

	results := idx.Search([]float32{1, 0, 0}, nil, 10)
	if assert.Len(t, results, 2) {
		assert.Equal(t, "a", results[0].ID)
		assert.Equal(t, "c", results[1].ID)
	}
}

func TestVectorIndex_SkipsDimensionMismatch(t *testing.T) {
	idx := NewVectorIndex()
	idx.Add("a", "fact", []float32{1, 0, 0})
	idx.Add("b", "fact", []float32{1, 0, 0, 0})

	results := idx.Search([]float32{1, 0, 0}, nil, 10)
	assert.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
}

func TestVectorIndex_Remove(t *testing.T) {
	idx := NewVectorIndex()
	idx.Add("a", "fact", []float32{1, 0, 0})
	idx.Remove("a")
	assert.Equal(t, 0, idx.Len())
}
