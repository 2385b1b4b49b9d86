package retrieval

import (
	"context"
	"strings"
	"time"

	"github.com/Harshitk-cp/engram/internal/domain"
	"github.com/Harshitk-cp/engram/internal/index"
)

// PrefetchTargetMs is the latency goal spec.md §4.5.4/§6 sets.
const PrefetchTargetMs = 100

// Timing is the per-stage breakdown every prefetch records.
type Timing struct {
	TotalMs                float64
	IntentClassificationMs float64
	EntityExtractionMs     float64
	DBMs                   float64
	VectorMs               float64
	MetTarget              bool
}

// PrefetchResult is the fast-path recall output plus its timing.
// EntityMatchIDs holds the ids of any record (fact or otherwise) that
// the entity index returned for the query's extracted entities;
// Episodes holds the last five episodes. Both lists are already
// deduplicated by id against each other.
type PrefetchResult struct {
	EntityMatchIDs []string
	Episodes       []domain.Episode
	Timing         Timing
}

var trivialUtterance = map[string]bool{
	"ok": true, "okay": true, "thanks": true, "thank you": true, "yes": true,
	"no": true, "sure": true, "cool": true, "hi": true, "hello": true, "hey": true,
	"k": true, "yep": true, "nope": true, "lol": true,
}

// shouldPrefetch implements spec.md §4.5.4's cheap filter: skip
// trivial one/two-word utterances that carry no retrievable content.
func shouldPrefetch(msg string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(msg))
	trimmed = strings.Trim(trimmed, "!.,? ")
	if trimmed == "" {
		return false
	}
	if trivialUtterance[trimmed] {
		return false
	}
	return true
}

// Prefetcher is the sub-100ms fast path (spec.md §4.5.4).
type Prefetcher struct {
	episodes domain.EpisodeStore
	entities *index.EntityIndex
}

func NewPrefetcher(episodes domain.EpisodeStore, entities *index.EntityIndex) *Prefetcher {
	return &Prefetcher{episodes: episodes, entities: entities}
}

// Prefetch runs the fast path for msg, returning no results (and zero
// timing) when shouldPrefetch rejects the message outright.
func (p *Prefetcher) Prefetch(ctx context.Context, msg string) (PrefetchResult, error) {
	start := now()
	if !shouldPrefetch(msg) {
		return PrefetchResult{Timing: Timing{MetTarget: true}}, nil
	}

	intentStart := now()
	plan := PlanHeuristic(msg)
	intentMs := elapsedMs(intentStart)

	entityStart := now()
	ids := map[string]bool{}
	for _, e := range plan.Entities {
		for _, id := range p.entities.Lookup(e) {
			ids[id] = true
		}
	}
	entityMs := elapsedMs(entityStart)

	dbStart := now()
	recent, err := p.episodes.ListRecent(ctx, 5)
	if err != nil {
		return PrefetchResult{}, domain.Wrap("prefetch.listRecent", domain.ErrStorageError, err)
	}
	dbMs := elapsedMs(dbStart)

	seen := make(map[string]bool, len(ids)+len(recent))
	for id := range ids {
		seen[id] = true
	}
	entityMatches := make([]string, 0, len(ids))
	for id := range ids {
		entityMatches = append(entityMatches, id)
	}

	var episodes []domain.Episode
	for _, e := range recent {
		if !seen[e.ID] {
			seen[e.ID] = true
			episodes = append(episodes, e)
		}
	}

	totalMs := elapsedMs(start)
	return PrefetchResult{
		EntityMatchIDs: entityMatches,
		Episodes:       episodes,
		Timing: Timing{
			TotalMs:                totalMs,
			IntentClassificationMs: intentMs,
			EntityExtractionMs:     entityMs,
			DBMs:                   dbMs,
			VectorMs:               0,
			MetTarget:              totalMs < PrefetchTargetMs,
		},
	}, nil
}

func now() time.Time { return time.Now() }

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
