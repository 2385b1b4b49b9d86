// Package synthesis implements the on-write dedup/merge pass every new
// Fact goes through before it lands in the store (spec.md §4.3),
// grounded on the teacher's belief-reinforcement shape in
// internal/service/memory.go (embed -> find similar -> merge-or-insert
// -> audit row), generalized from whole-memory reinforcement to the
// subject/predicate/object merge semantics spec.md specifies.
package synthesis

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/Harshitk-cp/engram/internal/consolidation"
	"github.com/Harshitk-cp/engram/internal/domain"
	"github.com/Harshitk-cp/engram/internal/idgen"
	"github.com/Harshitk-cp/engram/internal/llm"
	"github.com/Harshitk-cp/engram/internal/vecmath"
)

// Synthesizer absorbs a new Fact against the active set, merging it
// into an existing near-duplicate when one exists.
type Synthesizer struct {
	facts     domain.FactStore
	changes   domain.ChangeStore
	embedder  domain.EmbeddingClient
	llmClient domain.LLMClient // nil means rule-based merge only
	logger    *zap.Logger

	similarityThreshold float64
	maxSimilarFacts     int
}

// Config carries the tunables spec.md §6 exposes for this layer.
type Config struct {
	SimilarityThreshold float64
	MaxSimilarFacts     int
}

func New(facts domain.FactStore, changes domain.ChangeStore, embedder domain.EmbeddingClient, llmClient domain.LLMClient, cfg Config, logger *zap.Logger) *Synthesizer {
	return &Synthesizer{
		facts:               facts,
		changes:             changes,
		embedder:            embedder,
		llmClient:           llmClient,
		logger:              logger,
		similarityThreshold: cfg.SimilarityThreshold,
		maxSimilarFacts:     cfg.MaxSimilarFacts,
	}
}

// Absorb runs the C3 pipeline for one not-yet-persisted fact: it is
// embedded, compared against existing active facts, merged into the
// closest ≥similarityThreshold match (if any), and finally inserted
// either as a fresh row or as the updated survivor of a merge. The
// returned bool reports whether a merge occurred.
func (s *Synthesizer) Absorb(ctx context.Context, f *domain.Fact, triggerEpisodeID string) (bool, error) {
	text := fmt.Sprintf("%s %s %s", f.Subject, f.Predicate, f.Object)
	emb, err := s.embedder.EmbedQuery(ctx, text)
	if err != nil {
		s.logger.Warn("synthesis embedding failed, inserting without dedup check", zap.Error(err))
		if err := s.insert(ctx, f, triggerEpisodeID); err != nil {
			return false, err
		}
		s.resolveContradictions(ctx, f, triggerEpisodeID)
		return false, nil
	}
	f.Embedding = emb

	candidates, err := s.facts.ListActiveWithEmbeddings(ctx, s.maxSimilarFacts*5)
	if err != nil {
		return false, domain.Wrap("synthesis.listCandidates", domain.ErrStorageError, err)
	}

	var merges []domain.Fact
	for _, c := range candidates {
		if !domain.ValidEmbeddingDim(len(c.Embedding)) || len(c.Embedding) != len(emb) {
			continue
		}
		if vecmath.Cosine(emb, c.Embedding) >= s.similarityThreshold {
			merges = append(merges, c)
		}
	}

	if len(merges) == 0 {
		if err := s.insert(ctx, f, triggerEpisodeID); err != nil {
			return false, err
		}
		s.resolveContradictions(ctx, f, triggerEpisodeID)
		return false, nil
	}

	merged, err := s.merge(ctx, f, merges)
	if err != nil {
		return false, err
	}

	if err := s.facts.Insert(ctx, merged); err != nil {
		return false, domain.Wrap("synthesis.insertMerged", domain.ErrStorageError, err)
	}

	for _, c := range merges {
		reason := fmt.Sprintf("merged into %s", merged.ID)
		if err := s.facts.Retract(ctx, c.ID, reason); err != nil {
			s.logger.Warn("failed to retract merged-away fact", zap.String("fact_id", c.ID), zap.Error(err))
			continue
		}
		s.audit(ctx, domain.ChangeMerge, c.ID, merged.ID, reason, triggerEpisodeID)
	}

	*f = *merged
	s.resolveContradictions(ctx, f, triggerEpisodeID)
	return true, nil
}

func (s *Synthesizer) insert(ctx context.Context, f *domain.Fact, triggerEpisodeID string) error {
	if err := s.facts.Insert(ctx, f); err != nil {
		return domain.Wrap("synthesis.insert", domain.ErrStorageError, err)
	}
	s.audit(ctx, domain.ChangeAdd, f.ID, "", "new fact", triggerEpisodeID)
	return nil
}

// resolveContradictions checks f against every other active fact
// sharing its subject and, on a contradiction (spec.md §4.6), retracts
// the precedence loser immediately rather than waiting for the next
// consolidation pass. If f itself loses, it stops checking further
// candidates since f is no longer active.
func (s *Synthesizer) resolveContradictions(ctx context.Context, f *domain.Fact, triggerEpisodeID string) {
	existing, err := s.facts.Find(ctx, domain.FactFilter{Subject: f.Subject, ActiveOnly: true})
	if err != nil {
		s.logger.Warn("contradiction lookup failed", zap.String("fact_id", f.ID), zap.Error(err))
		return
	}

	for _, other := range existing {
		if other.ID == f.ID {
			continue
		}
		if !consolidation.IsContradiction(*f, other) {
			continue
		}
		winner, loser := consolidation.Resolve(*f, other)
		if err := s.facts.Retract(ctx, loser.ID, consolidation.ContradictionRetractReason); err != nil {
			s.logger.Warn("failed to retract contradicted fact", zap.String("fact_id", loser.ID), zap.Error(err))
			continue
		}
		s.audit(ctx, domain.ChangeRetract, loser.ID, "", consolidation.ContradictionRetractReason, triggerEpisodeID)
		if loser.ID == f.ID {
			*f = winner
			return
		}
	}
}

// merge combines the incoming fact with every candidate it collided
// with into one survivor, preferring an LLM judgment when available
// and falling back to the rule-based merge spec.md §4.3 describes
// (union evidence, max confidence, keep the new subject/predicate/
// object, userAffirmed = OR of all).
func (s *Synthesizer) merge(ctx context.Context, incoming *domain.Fact, candidates []domain.Fact) (*domain.Fact, error) {
	merged := *incoming
	merged.ID = idgen.New("fact")
	merged.IsActive = true

	evidence := map[string]bool{}
	for _, e := range incoming.Evidence {
		evidence[e] = true
	}

	for _, c := range candidates {
		if c.Confidence > merged.Confidence {
			merged.Confidence = c.Confidence
		}
		if c.UserAffirmed {
			merged.UserAffirmed = true
		}
		for _, e := range c.Evidence {
			evidence[e] = true
		}
		if c.FirstSeen.Before(merged.FirstSeen) || merged.FirstSeen.IsZero() {
			merged.FirstSeen = c.FirstSeen
		}
	}

	if s.llmClient != nil {
		s.applyLLMPhrasing(ctx, &merged, candidates)
	}

	merged.Evidence = make([]string, 0, len(evidence))
	for e := range evidence {
		merged.Evidence = append(merged.Evidence, e)
	}
	return &merged, nil
}

// applyLLMPhrasing asks the LLM whether the incoming fact and the
// closest candidate describe the same claim and, if so, adopts the
// more complete phrasing it proposes. Any failure silently keeps the
// rule-based result already computed in merge.
func (s *Synthesizer) applyLLMPhrasing(ctx context.Context, merged *domain.Fact, candidates []domain.Fact) {
	if len(candidates) == 0 {
		return
	}
	a := fmt.Sprintf("%s %s %s", merged.Subject, merged.Predicate, merged.Object)
	b := fmt.Sprintf("%s %s %s", candidates[0].Subject, candidates[0].Predicate, candidates[0].Object)
	prompt := llm.SynthesisMergePrompt(a, b)

	out, err := s.llmClient.Complete(ctx, prompt, domain.CompletionOpts{Temperature: 0.3, JSONMode: true})
	if err != nil {
		return
	}

	var resp struct {
		SameClaim    bool   `json:"same_claim"`
		MergedObject string `json:"merged_object"`
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		s.logger.Debug("synthesis merge phrasing unparseable, keeping rule-based result", zap.Error(err))
		return
	}
	if resp.SameClaim && resp.MergedObject != "" {
		merged.Object = normalizeMergedObject(resp.MergedObject)
	}
}

func normalizeMergedObject(o string) string {
	if len(o) > 200 {
		return o[:200]
	}
	return o
}

func (s *Synthesizer) audit(ctx context.Context, kind domain.ChangeType, targetID, newValue, reason, triggerEpisodeID string) {
	change := &domain.MemoryChange{
		ID:               idgen.New("chg"),
		ChangeType:       kind,
		TargetType:       "fact",
		TargetID:         targetID,
		NewValue:         newValue,
		Reason:           reason,
		TriggerEpisodeID: triggerEpisodeID,
	}
	if err := s.changes.Append(ctx, change); err != nil {
		s.logger.Warn("failed to append synthesis audit row", zap.Error(err))
	}
}
