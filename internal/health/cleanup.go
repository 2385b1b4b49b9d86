package health

import (
	"context"

	"go.uber.org/zap"

	"github.com/Harshitk-cp/engram/internal/domain"
	"github.com/Harshitk-cp/engram/internal/idgen"
)

const autoCleanupReasonPrefix = "auto-cleanup: "

// Report is the result of one RunCleanup pass: the health score, every
// issue found (whether or not it was auto-fixed), and how many facts
// were actually retracted.
type Report struct {
	HealthScore     int
	Issues          []Issue
	DuplicatesFound int
	LowQualityFound int
	DuplicatesFixed int
	LowQualityFixed int
}

// RunCleanup scans every active fact for duplicates and low-quality
// objects, optionally auto-retracting the ones spec.md §4.7 deems safe,
// and returns a report including the resulting health score.
func RunCleanup(ctx context.Context, facts domain.FactStore, changes domain.ChangeStore, autoFix bool, logger *zap.Logger) (Report, error) {
	active, err := facts.ListActive(ctx)
	if err != nil {
		return Report{}, domain.Wrap("health.runCleanup", domain.ErrStorageError, err)
	}

	var issues []Issue
	retracted := make(map[string]bool)

	for _, group := range GroupBySubjectPredicate(active) {
		for _, pair := range FindDuplicates(group) {
			issues = append(issues, Issue{
				FactID:   pair.Dup.ID,
				Kind:     "duplicate",
				Severity: SeverityMedium,
				Detail:   "duplicate of " + pair.Best.ID,
			})
			if !autoFix || retracted[pair.Dup.ID] {
				continue
			}
			reason := autoCleanupReasonPrefix + "duplicate of " + pair.Best.ID
			if err := facts.Retract(ctx, pair.Dup.ID, reason); err != nil {
				return Report{}, domain.Wrap("health.runCleanup", domain.ErrStorageError, err)
			}
			if err := appendChange(ctx, changes, pair.Dup.ID, reason); err != nil {
				return Report{}, err
			}
			retracted[pair.Dup.ID] = true
			logger.Info("auto-retracted duplicate fact", zap.String("fact_id", pair.Dup.ID), zap.String("best_id", pair.Best.ID))
		}
	}

	for _, f := range active {
		if retracted[f.ID] {
			continue
		}
		lowQuality, detail := IsLowQuality(f)
		if !lowQuality {
			continue
		}
		issues = append(issues, Issue{
			FactID:   f.ID,
			Kind:     "low-quality",
			Severity: lowQualitySeverity(f),
			Detail:   detail,
		})
		if !autoFix || !IsSafeToAutoRetract(f) {
			continue
		}
		reason := autoCleanupReasonPrefix + detail
		if err := facts.Retract(ctx, f.ID, reason); err != nil {
			return Report{}, domain.Wrap("health.runCleanup", domain.ErrStorageError, err)
		}
		if err := appendChange(ctx, changes, f.ID, reason); err != nil {
			return Report{}, err
		}
		retracted[f.ID] = true
		logger.Info("auto-retracted low-quality fact", zap.String("fact_id", f.ID), zap.String("reason", detail))
	}

	report := Report{
		Issues:          issues,
		DuplicatesFixed: countRetracted(issues, retracted, "duplicate"),
		LowQualityFixed: countRetracted(issues, retracted, "low-quality"),
	}
	for _, iss := range issues {
		if iss.Kind == "duplicate" {
			report.DuplicatesFound++
		} else {
			report.LowQualityFound++
		}
	}
	var remaining []Issue
	for _, iss := range issues {
		if !retracted[iss.FactID] {
			remaining = append(remaining, iss)
		}
	}
	report.HealthScore = HealthScore(remaining, len(active)-len(retracted))
	return report, nil
}

func countRetracted(issues []Issue, retracted map[string]bool, kind string) int {
	n := 0
	for _, iss := range issues {
		if iss.Kind == kind && retracted[iss.FactID] {
			n++
		}
	}
	return n
}

// lowQualitySeverity classifies a low-quality fact's severity for the
// health-score weighting: a fact IsSafeToAutoRetract accepts (meaningless
// object, object under 3 characters, or confidence below 0.2) is
// critical, everything else low-quality is medium.
func lowQualitySeverity(f domain.Fact) Severity {
	if IsSafeToAutoRetract(f) {
		return SeverityCritical
	}
	return SeverityMedium
}

func appendChange(ctx context.Context, changes domain.ChangeStore, targetID, reason string) error {
	c := &domain.MemoryChange{
		ID:         idgen.New("chg"),
		ChangeType: domain.ChangeRetract,
		TargetType: "fact",
		TargetID:   targetID,
		Reason:     reason,
	}
	if err := changes.Append(ctx, c); err != nil {
		return domain.Wrap("health.appendChange", domain.ErrStorageError, err)
	}
	return nil
}
