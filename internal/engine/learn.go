package engine

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/Harshitk-cp/engram/internal/domain"
	"github.com/Harshitk-cp/engram/internal/idgen"
	"github.com/Harshitk-cp/engram/internal/retrieval"
)

// LearnResult summarizes one learnFromConversation call.
type LearnResult struct {
	Episode           domain.Episode
	FactsStored       int
	FactsMerged       int
	CausalLinksStored int
}

// LearnFromConversation runs the full extraction pipeline over one
// conversation turn and persists everything it finds, in the order
// spec.md §5 mandates: Episode insert -> Fact inserts -> CausalLink
// inserts -> index updates. Nothing here ever returns an error to the
// caller for a provider failure; extraction degrades to regex/rule
// fallbacks and the call still completes (spec.md §7).
func (e *Engine) LearnFromConversation(ctx context.Context, sessionID string, messageIDs []string, text string) (LearnResult, error) {
	extracted := e.extractor.Extract(ctx, sessionID, messageIDs, text)

	episode := extracted.Episode
	if emb, err := e.embedder.EmbedQuery(ctx, episode.Summary); err != nil {
		e.logger.Debug("episode embedding failed", zap.Error(err))
	} else {
		episode.Embedding = emb
	}
	if err := e.store.Episodes().Insert(ctx, &episode); err != nil {
		return LearnResult{}, domain.Wrap("engine.learnFromConversation", domain.ErrStorageError, err)
	}
	if err := appendChange(ctx, e.store.Changes(), domain.ChangeAdd, "episode", episode.ID, "extracted from conversation", episode.ID); err != nil {
		e.logger.Warn("failed to append episode change audit row", zap.Error(err))
	}

	result := LearnResult{Episode: episode}

	storedFacts := make([]domain.Fact, 0, len(extracted.Facts))
	for _, fc := range extracted.Facts {
		now := episode.Timestamp
		f := &domain.Fact{
			ID:            idgen.New("fact"),
			Subject:       fc.Subject,
			Predicate:     fc.Predicate,
			Object:        fc.Object,
			Confidence:    fc.Confidence,
			Evidence:      []string{episode.ID},
			FirstSeen:     now,
			LastConfirmed: now,
			IsActive:      true,
		}
		merged, err := e.synthesizer.Absorb(ctx, f, episode.ID)
		if err != nil {
			e.logger.Warn("fact absorption failed", zap.Error(err), zap.String("episode_id", episode.ID))
			continue
		}
		if merged {
			result.FactsMerged++
		}
		result.FactsStored++
		storedFacts = append(storedFacts, *f)
	}

	for _, cc := range extracted.CausalLinks {
		causeType, causeID, err := e.resolveCausalEndpoint(ctx, cc.CauseDescription, episode, storedFacts)
		if err != nil {
			e.logger.Warn("causal cause resolution failed", zap.Error(err))
			continue
		}
		effectType, effectID, err := e.resolveCausalEndpoint(ctx, cc.EffectDescription, episode, storedFacts)
		if err != nil {
			e.logger.Warn("causal effect resolution failed", zap.Error(err))
			continue
		}

		link := &domain.CausalLink{
			ID:                idgen.New("cl"),
			CauseType:         causeType,
			CauseID:           causeID,
			CauseDescription:  cc.CauseDescription,
			EffectType:        effectType,
			EffectID:          effectID,
			EffectDescription: cc.EffectDescription,
			Mechanism:         cc.Mechanism,
			Confidence:        cc.Confidence,
			Evidence:          []string{episode.ID},
			CausalStrength:    domain.ClassifyStrength(cc.Confidence),
		}
		if err := e.store.CausalLinks().Insert(ctx, link); err != nil {
			e.logger.Warn("causal link insert failed", zap.Error(err))
			continue
		}
		if err := appendChange(ctx, e.store.Changes(), domain.ChangeAdd, "causal_link", link.ID, "extracted from conversation", episode.ID); err != nil {
			e.logger.Warn("failed to append causal link change audit row", zap.Error(err))
		}
		result.CausalLinksStored++
	}

	e.bm25.Add(episode.ID, "episode", episode.Summary)
	if domain.ValidEmbeddingDim(len(episode.Embedding)) {
		e.vectors.Add(episode.ID, "episode", episode.Embedding)
		keywords := append([]string{episode.Topic}, episode.Keywords...)
		if err := e.clusters.Assign(ctx, episode.ID, domain.MemberEpisode, episode.Embedding, episode.Timestamp, keywords); err != nil {
			e.logger.Warn("episode cluster assignment failed", zap.Error(err))
		}
	}
	for _, f := range storedFacts {
		e.indexFact(f)
		e.assignFactCluster(ctx, f)
	}

	return result, nil
}

// resolveCausalEndpoint maps a causal candidate's free-text endpoint
// description onto an actual record id: the episode just inserted, one
// of the facts just absorbed in this same turn, or — failing both — a
// deduped synthetic "event" id (DESIGN.md's Open Question decision),
// matched by substring/word-overlap similarity since extraction only
// ever produces prose, never ids.
func (e *Engine) resolveCausalEndpoint(ctx context.Context, description string, episode domain.Episode, facts []domain.Fact) (domain.CausalRefType, string, error) {
	const matchThreshold = 0.5

	if retrieval.HeuristicTextSimilarity(description, episode.Summary) >= matchThreshold {
		return domain.CausalRefEpisode, episode.ID, nil
	}

	bestScore := 0.0
	bestFactID := ""
	for _, f := range facts {
		text := f.Subject + " " + f.Predicate + " " + f.Object
		if score := retrieval.HeuristicTextSimilarity(description, text); score > bestScore {
			bestScore = score
			bestFactID = f.ID
		}
	}
	if bestScore >= matchThreshold {
		return domain.CausalRefFact, bestFactID, nil
	}

	normalized := strings.ToLower(strings.TrimSpace(description))
	if id, found, err := e.store.CausalLinks().FindEventByDescription(ctx, normalized); err != nil {
		return "", "", domain.Wrap("engine.resolveCausalEndpoint", domain.ErrStorageError, err)
	} else if found {
		return domain.CausalRefEvent, id, nil
	}

	return domain.CausalRefEvent, idgen.New("event"), nil
}
