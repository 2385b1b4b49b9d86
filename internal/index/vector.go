package index

import (
	"sort"
	"sync"

	"github.com/Harshitk-cp/engram/internal/vecmath"
)

// VectorIndex is a brute-force cosine-similarity index, acceptable up
// to ~10^5 records per agent (spec.md §4.4). Safe for concurrent use.
type VectorIndex struct {
	mu      sync.RWMutex
	vectors map[string][]float32
	types   map[string]string
}

func NewVectorIndex() *VectorIndex {
	return &VectorIndex{
		vectors: make(map[string][]float32),
		types:   make(map[string]string),
	}
}

// Add indexes (or reindexes) id's embedding.
func (v *VectorIndex) Add(id, recordType string, embedding []float32) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.vectors[id] = embedding
	v.types[id] = recordType
}

// Remove drops id from the index.
func (v *VectorIndex) Remove(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.vectors, id)
	delete(v.types, id)
}

// Search returns the topN ids by cosine similarity to query, optionally
// filtered to recordTypes. Only ids with positive similarity are returned.
func (v *VectorIndex) Search(query []float32, recordTypes []string, topN int) []Scored {
	v.mu.RLock()
	defer v.mu.RUnlock()

	var typeSet map[string]bool
	if len(recordTypes) > 0 {
		typeSet = make(map[string]bool, len(recordTypes))
		for _, t := range recordTypes {
			typeSet[t] = true
		}
	}

	var results []Scored
	for id, emb := range v.vectors {
		if typeSet != nil && !typeSet[v.types[id]] {
			continue
		}
		if len(emb) != len(query) {
			continue
		}
		sim := vecmath.Cosine(query, emb)
		if sim > 0 {
			results = append(results, Scored{ID: id, Score: sim})
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topN > 0 && len(results) > topN {
		results = results[:topN]
	}
	return results
}

// Len reports how many embeddings are indexed.
func (v *VectorIndex) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.vectors)
}
