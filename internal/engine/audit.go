package engine

import (
	"context"

	"github.com/Harshitk-cp/engram/internal/domain"
	"github.com/Harshitk-cp/engram/internal/idgen"
)

// appendChange records one audit row for a record this package inserts
// directly (episodes and causal links have no merge/contradiction step
// of their own — synthesis.Synthesizer carries the equivalent helper
// for facts).
func appendChange(ctx context.Context, changes domain.ChangeStore, kind domain.ChangeType, targetType, targetID, reason, triggerEpisodeID string) error {
	change := &domain.MemoryChange{
		ID:               idgen.New("chg"),
		ChangeType:       kind,
		TargetType:       targetType,
		TargetID:         targetID,
		Reason:           reason,
		TriggerEpisodeID: triggerEpisodeID,
	}
	if err := changes.Append(ctx, change); err != nil {
		return domain.Wrap("engine.appendChange", domain.ErrStorageError, err)
	}
	return nil
}
