package consolidation

import (
	"context"
	"math"
	"time"

	"github.com/Harshitk-cp/engram/internal/domain"
	"github.com/Harshitk-cp/engram/internal/idgen"
)

// Recommendation is the outcome of scoring one memory for retention
// (spec.md §4.6).
type Recommendation string

const (
	RecommendKeep   Recommendation = "keep"
	RecommendDemote Recommendation = "demote"
	RecommendForget Recommendation = "forget"
)

// demoteFactor is applied to a fact's confidence when it is
// recommended for demotion rather than outright forgetting.
const demoteFactor = 0.7

// RetentionFactors holds the six normalized (0..1) inputs to the
// retention-score formula (spec.md §4.6).
type RetentionFactors struct {
	AccessFrequency   float64
	EmotionalSalience float64
	CausalImportance  float64
	Recency           float64
	Uniqueness        float64
	UserMarked        float64
}

// RetentionScore implements spec.md §4.6's weighted sum:
// 0.20·accessFrequency + 0.15·emotionalSalience + 0.25·causalImportance
// + 0.15·recency + 0.15·uniqueness + 0.10·userMarked.
func RetentionScore(f RetentionFactors) float64 {
	return 0.20*f.AccessFrequency +
		0.15*f.EmotionalSalience +
		0.25*f.CausalImportance +
		0.15*f.Recency +
		0.15*f.Uniqueness +
		0.10*f.UserMarked
}

// Recommend classifies a retention score into keep/demote/forget
// (spec.md §4.6: keep >= 0.6, demote 0.3-0.6, forget < 0.3).
func Recommend(score float64) Recommendation {
	switch {
	case score >= 0.6:
		return RecommendKeep
	case score >= 0.3:
		return RecommendDemote
	default:
		return RecommendForget
	}
}

// CausalImportance normalizes how many CausalLinks reference id (as
// cause or effect) into a 0..1 factor; three or more references
// saturate the factor.
func CausalImportance(id string, links []domain.CausalLink) float64 {
	count := 0
	for _, l := range links {
		if l.CauseID == id || l.EffectID == id {
			count++
		}
	}
	return math.Min(float64(count)/3.0, 1.0)
}

func recencyFactor(last time.Time, staleDays int, now time.Time) float64 {
	if last.IsZero() {
		return 0
	}
	if staleDays <= 0 {
		staleDays = 30
	}
	days := now.Sub(last).Hours() / 24
	if days < 0 {
		days = 0
	}
	return math.Exp(-days / float64(staleDays))
}

func accessFrequencyFactor(count int) float64 {
	return math.Min(float64(count)/10.0, 1.0)
}

// FactFactors derives RetentionFactors for a Fact. causalImportance and
// uniqueness are supplied by the caller, who has the wider context
// (CausalLinks, cluster membership) the fact itself doesn't carry.
func FactFactors(f domain.Fact, causalImportance, uniqueness float64, staleDays int, now time.Time) RetentionFactors {
	userMarked := 0.0
	if f.UserAffirmed {
		userMarked = 1.0
	}
	return RetentionFactors{
		AccessFrequency:  accessFrequencyFactor(f.AccessCount),
		CausalImportance: causalImportance,
		Recency:          recencyFactor(f.LastConfirmed, staleDays, now),
		Uniqueness:       uniqueness,
		UserMarked:       userMarked,
	}
}

// EpisodeFactors derives RetentionFactors for an Episode.
func EpisodeFactors(e domain.Episode, causalImportance, uniqueness float64, staleDays int, now time.Time) RetentionFactors {
	last := e.CreatedAt
	if e.LastAccessedAt != nil {
		last = *e.LastAccessedAt
	}
	userMarked := 0.0
	if e.TTL == domain.TTLPermanent {
		userMarked = 1.0
	}
	return RetentionFactors{
		AccessFrequency:   accessFrequencyFactor(e.AccessCount),
		EmotionalSalience: float64(e.EmotionalSalience),
		CausalImportance:  causalImportance,
		Recency:           recencyFactor(last, staleDays, now),
		Uniqueness:        uniqueness,
		UserMarked:        userMarked,
	}
}

// ForgettingConfig bounds one forgetting pass.
type ForgettingConfig struct {
	StaleDays int
}

// ForgettingReport summarizes one pass over active facts and episodes.
type ForgettingReport struct {
	FactRecommendations    map[string]Recommendation
	EpisodeRecommendations map[string]Recommendation
	Forgotten              int
	Demoted                int
}

// ApplyForgetting scores every active fact and episode, applies
// "forget" (retract/mark-forgotten) and "demote" (confidence decay,
// facts only — the episode store has no partial-update surface)
// outcomes, and records a MemoryChange for every mutation.
// userAffirmed facts are always kept, never scored down (spec.md
// §4.6). now is passed explicitly so scoring is deterministic.
func ApplyForgetting(
	ctx context.Context,
	facts domain.FactStore,
	episodes domain.EpisodeStore,
	changes domain.ChangeStore,
	links []domain.CausalLink,
	uniqueness map[string]float64,
	cfg ForgettingConfig,
	runID string,
	now time.Time,
) (ForgettingReport, error) {
	report := ForgettingReport{
		FactRecommendations:    map[string]Recommendation{},
		EpisodeRecommendations: map[string]Recommendation{},
	}

	activeFacts, err := facts.ListActive(ctx)
	if err != nil {
		return report, domain.Wrap("forgetting.listActiveFacts", domain.ErrStorageError, err)
	}
	for _, f := range activeFacts {
		if f.UserAffirmed {
			report.FactRecommendations[f.ID] = RecommendKeep
			continue
		}
		u := uniqueness[f.ID]
		if u == 0 {
			u = 1.0
		}
		factors := FactFactors(f, CausalImportance(f.ID, links), u, cfg.StaleDays, now)
		rec := Recommend(RetentionScore(factors))
		report.FactRecommendations[f.ID] = rec

		switch rec {
		case RecommendForget:
			if err := facts.Retract(ctx, f.ID, "retention score below floor"); err != nil {
				return report, domain.Wrap("forgetting.retractFact", domain.ErrStorageError, err)
			}
			if err := appendChange(ctx, changes, domain.ChangeRetract, "fact", f.ID, "", "retention score below floor", runID); err != nil {
				return report, err
			}
			report.Forgotten++
		case RecommendDemote:
			newConfidence := f.Confidence * float32(demoteFactor)
			updated := f
			updated.Confidence = newConfidence
			if err := facts.Update(ctx, &updated); err != nil {
				return report, domain.Wrap("forgetting.demoteFact", domain.ErrStorageError, err)
			}
			if err := appendChange(ctx, changes, domain.ChangeWeaken, "fact", f.ID, "", "retention score in demote band", runID); err != nil {
				return report, err
			}
			report.Demoted++
		}
	}

	recentEpisodes, err := episodes.Query(ctx, domain.EpisodeFilter{ActiveOnly: true})
	if err != nil {
		return report, domain.Wrap("forgetting.listActiveEpisodes", domain.ErrStorageError, err)
	}
	for _, e := range recentEpisodes {
		u := uniqueness[e.ID]
		if u == 0 {
			u = 1.0
		}
		factors := EpisodeFactors(e, CausalImportance(e.ID, links), u, cfg.StaleDays, now)
		rec := Recommend(RetentionScore(factors))
		report.EpisodeRecommendations[e.ID] = rec

		if rec == RecommendForget {
			if err := episodes.MarkForgotten(ctx, e.ID, "retention score below floor"); err != nil {
				return report, domain.Wrap("forgetting.markForgotten", domain.ErrStorageError, err)
			}
			if err := appendChange(ctx, changes, domain.ChangeRetract, "episode", e.ID, "", "retention score below floor", runID); err != nil {
				return report, err
			}
			report.Forgotten++
		}
	}

	return report, nil
}

func appendChange(ctx context.Context, changes domain.ChangeStore, kind domain.ChangeType, targetType, targetID, newValue, reason, runID string) error {
	c := &domain.MemoryChange{
		ID:                 idgen.New("chg"),
		ChangeType:         kind,
		TargetType:         targetType,
		TargetID:           targetID,
		NewValue:           newValue,
		Reason:             reason,
		ConsolidationRunID: runID,
	}
	if err := changes.Append(ctx, c); err != nil {
		return domain.Wrap("forgetting.appendChange", domain.ErrStorageError, err)
	}
	return nil
}
