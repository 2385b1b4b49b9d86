package consolidation

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/Harshitk-cp/engram/internal/domain"
	"github.com/Harshitk-cp/engram/internal/idgen"
	"github.com/Harshitk-cp/engram/internal/llm"
	"github.com/Harshitk-cp/engram/internal/vecmath"
)

// factConsolidationBatchSize bounds how many embedding-bearing active
// facts one run considers for pairwise consolidation.
const factConsolidationBatchSize = 200

type factConsolidationResponse struct {
	Action        string `json:"action"`
	MergedObject  string `json:"merged_object"`
	RetractTarget string `json:"retract_target"`
	Reason        string `json:"reason"`
}

// FactConsolidationResult tallies stage 2's outcomes.
type FactConsolidationResult struct {
	Merged      int
	Strengthened int
	Retracted   int
}

// ConsolidateFacts pairs up similar active facts (cosine similarity
// at or above similarityThreshold over their stored embeddings) and
// asks the LLM whether to merge, strengthen, or retract; every applied
// action is recorded as a MemoryChange (spec.md §4.6 stage 2). A fact
// merged away or retracted in this pass is skipped in later pairs.
func ConsolidateFacts(
	ctx context.Context,
	llmClient domain.LLMClient,
	facts domain.FactStore,
	changes domain.ChangeStore,
	similarityThreshold float64,
	runID string,
	logger *zap.Logger,
) (FactConsolidationResult, error) {
	result := FactConsolidationResult{}
	if llmClient == nil {
		return result, nil
	}

	candidates, err := facts.ListActiveWithEmbeddings(ctx, factConsolidationBatchSize)
	if err != nil {
		return result, domain.Wrap("stage2.listActiveWithEmbeddings", domain.ErrStorageError, err)
	}

	settled := make(map[string]bool, len(candidates))

	for i := 0; i < len(candidates); i++ {
		a := candidates[i]
		if settled[a.ID] {
			continue
		}
		for j := i + 1; j < len(candidates); j++ {
			b := candidates[j]
			if settled[b.ID] || a.ID == b.ID {
				continue
			}
			if len(a.Embedding) == 0 || len(b.Embedding) == 0 {
				continue
			}
			if vecmath.Cosine(a.Embedding, b.Embedding) < similarityThreshold {
				continue
			}

			applied, err := applyFactConsolidationPair(ctx, llmClient, facts, changes, a, b, runID, logger)
			if err != nil {
				return result, err
			}
			switch applied {
			case "merge":
				settled[a.ID], settled[b.ID] = true, true
				result.Merged++
			case "strengthen":
				result.Strengthened++
			case "retract":
				result.Retracted++
				for _, f := range []domain.Fact{a, b} {
					if cur, err := facts.GetByID(ctx, f.ID); err == nil && !cur.IsActive {
						settled[f.ID] = true
					}
				}
			}
			if settled[a.ID] {
				break
			}
		}
	}

	return result, nil
}

func factDescription(f domain.Fact) string {
	return fmt.Sprintf("%s %s %s (confidence %.2f, evidence %d)", f.Subject, f.Predicate, f.Object, f.Confidence, len(f.Evidence))
}

// applyFactConsolidationPair asks the LLM about one candidate pair and
// applies whichever action it proposes. Returns the action string
// ("merge", "strengthen", "retract", or "" for none/unparseable).
func applyFactConsolidationPair(
	ctx context.Context,
	llmClient domain.LLMClient,
	facts domain.FactStore,
	changes domain.ChangeStore,
	a, b domain.Fact,
	runID string,
	logger *zap.Logger,
) (string, error) {
	out, err := llmClient.Complete(ctx, llm.FactConsolidationPrompt(factDescription(a), factDescription(b)),
		domain.CompletionOpts{Temperature: 0.1, JSONMode: true})
	if err != nil {
		logger.Info("fact consolidation proposal unavailable", zap.Error(err))
		return "", nil
	}

	var parsed factConsolidationResponse
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		logger.Warn("fact consolidation response unparseable", zap.Error(err))
		return "", nil
	}

	switch parsed.Action {
	case "merge":
		return "merge", mergeFactPair(ctx, facts, changes, a, b, parsed.MergedObject, runID)
	case "strengthen":
		return "strengthen", strengthenFactPair(ctx, facts, changes, a, b, runID)
	case "retract":
		target := a
		if parsed.RetractTarget == "b" {
			target = b
		}
		reason := parsed.Reason
		if reason == "" {
			reason = "consolidation retraction"
		}
		if err := facts.Retract(ctx, target.ID, reason); err != nil {
			return "", domain.Wrap("stage2.retract", domain.ErrStorageError, err)
		}
		return "retract", appendChange(ctx, changes, domain.ChangeRetract, "fact", target.ID, "", reason, runID)
	default:
		return "", nil
	}
}

func mergeFactPair(ctx context.Context, facts domain.FactStore, changes domain.ChangeStore, a, b domain.Fact, mergedObject, runID string) error {
	object := mergedObject
	if object == "" {
		object = a.Object
	}

	evidence := append(append([]string{}, a.Evidence...), b.Evidence...)
	confidence := a.Confidence
	if b.Confidence > confidence {
		confidence = b.Confidence
	}
	firstSeen := a.FirstSeen
	if b.FirstSeen.Before(firstSeen) {
		firstSeen = b.FirstSeen
	}

	merged := &domain.Fact{
		ID:            idgen.New("fact"),
		Subject:       a.Subject,
		Predicate:     a.Predicate,
		Object:        object,
		Confidence:    confidence,
		Evidence:      evidence,
		FirstSeen:     firstSeen,
		LastConfirmed: a.LastConfirmed,
		UserAffirmed:  a.UserAffirmed || b.UserAffirmed,
		IsActive:      true,
	}
	if b.LastConfirmed.After(merged.LastConfirmed) {
		merged.LastConfirmed = b.LastConfirmed
	}

	if err := facts.Insert(ctx, merged); err != nil {
		return domain.Wrap("stage2.insertMerged", domain.ErrStorageError, err)
	}
	if err := facts.Retract(ctx, a.ID, "merged into "+merged.ID); err != nil {
		return domain.Wrap("stage2.retractA", domain.ErrStorageError, err)
	}
	if err := facts.Retract(ctx, b.ID, "merged into "+merged.ID); err != nil {
		return domain.Wrap("stage2.retractB", domain.ErrStorageError, err)
	}
	return appendChange(ctx, changes, domain.ChangeMerge, "fact", merged.ID, merged.Object, "consolidation merge", runID)
}

func strengthenFactPair(ctx context.Context, facts domain.FactStore, changes domain.ChangeStore, a, b domain.Fact, runID string) error {
	keep := a
	if b.Confidence > a.Confidence {
		keep = b
	}
	keep.Confidence += 0.05
	if keep.Confidence > 0.99 {
		keep.Confidence = 0.99
	}
	if err := facts.Update(ctx, &keep); err != nil {
		return domain.Wrap("stage2.strengthen", domain.ErrStorageError, err)
	}
	return appendChange(ctx, changes, domain.ChangeStrengthen, "fact", keep.ID, "", "consolidation strengthen", runID)
}
