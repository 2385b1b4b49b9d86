package retrieval

import (
	"context"
	"sort"
	"strings"

	"github.com/Harshitk-cp/engram/internal/domain"
	"github.com/Harshitk-cp/engram/internal/index"
)

// HybridConfig carries the tunables spec.md §4.5.2/§6 expose.
type HybridConfig struct {
	Alpha      float64
	MinScore   float64
	MaxResults int
}

// Result pairs a resolved Fact with its combined hybrid score.
type Result struct {
	Fact  domain.Fact
	Score float64
}

// HybridSearcher runs spec.md §4.5.2's combine-then-augment pipeline.
type HybridSearcher struct {
	bm25     *index.BM25Index
	vectors  *index.VectorIndex
	facts    domain.FactStore
	embedder domain.EmbeddingClient
	cfg      HybridConfig
}

func NewHybridSearcher(bm25 *index.BM25Index, vectors *index.VectorIndex, facts domain.FactStore, embedder domain.EmbeddingClient, cfg HybridConfig) *HybridSearcher {
	return &HybridSearcher{bm25: bm25, vectors: vectors, facts: facts, embedder: embedder, cfg: cfg}
}

// Search runs the plan's keyword and semantic queries, combines them
// per spec.md §4.5.2, and augments with a raw-query substring scan
// over active facts (so a fact written moments earlier is retrievable
// before its embedding exists).
func (h *HybridSearcher) Search(ctx context.Context, plan Plan, rawQuery string) ([]Result, error) {
	alpha := h.cfg.Alpha
	if alpha == 0 {
		alpha = 0.5
	}
	minScore := h.cfg.MinScore
	maxResults := h.cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}

	bm25Scores := map[string]float64{}
	var maxBM25 float64
	for _, kq := range plan.KeywordQueries {
		for _, r := range h.bm25.Search(kq, []string{"fact"}, maxResults*2) {
			if r.Score > bm25Scores[r.ID] {
				bm25Scores[r.ID] = r.Score
			}
			if r.Score > maxBM25 {
				maxBM25 = r.Score
			}
		}
	}

	vectorScores := map[string]float64{}
	for _, sq := range plan.SemanticQueries {
		emb, err := h.embedder.EmbedQuery(ctx, sq)
		if err != nil {
			continue
		}
		for _, r := range h.vectors.Search(emb, []string{"fact"}, maxResults*2) {
			if r.Score > vectorScores[r.ID] {
				vectorScores[r.ID] = r.Score
			}
		}
	}

	ids := map[string]bool{}
	for id := range bm25Scores {
		ids[id] = true
	}
	for id := range vectorScores {
		ids[id] = true
	}

	type scored struct {
		id    string
		score float64
	}
	var combined []scored
	for id := range ids {
		bm25Norm := 0.0
		if maxBM25 > 0 {
			bm25Norm = bm25Scores[id] / maxBM25
		}
		score := alpha*bm25Norm + (1-alpha)*vectorScores[id]
		if score < minScore {
			continue
		}
		combined = append(combined, scored{id: id, score: score})
	}
	sort.Slice(combined, func(i, j int) bool { return combined[i].score > combined[j].score })
	if len(combined) > maxResults*2 {
		combined = combined[:maxResults*2]
	}

	results := make([]Result, 0, len(combined))
	seen := make(map[string]bool, len(combined))
	for _, c := range combined {
		f, err := h.facts.GetByID(ctx, c.id)
		if err != nil {
			continue
		}
		results = append(results, Result{Fact: *f, Score: c.score})
		seen[c.id] = true
	}

	augmented, err := h.substringAugment(ctx, rawQuery, seen)
	if err != nil {
		return results, err
	}
	results = append(results, augmented...)

	return results, nil
}

// substringAugment scans active facts for raw-query substring
// containment in subject/predicate/object, appending any id not
// already present (spec.md §4.5.2 post-augmentation step).
func (h *HybridSearcher) substringAugment(ctx context.Context, rawQuery string, seen map[string]bool) ([]Result, error) {
	q := strings.ToLower(strings.TrimSpace(rawQuery))
	if q == "" {
		return nil, nil
	}

	active, err := h.facts.ListActive(ctx)
	if err != nil {
		return nil, domain.Wrap("hybrid.substringAugment", domain.ErrStorageError, err)
	}

	var out []Result
	for _, f := range active {
		if seen[f.ID] {
			continue
		}
		haystack := strings.ToLower(f.Subject + " " + f.Predicate + " " + f.Object)
		if strings.Contains(haystack, q) {
			out = append(out, Result{Fact: f, Score: 0})
		}
	}
	return out, nil
}
