package consolidation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Harshitk-cp/engram/internal/domain"
	"github.com/Harshitk-cp/engram/internal/idgen"
)

// episodeBatchSize bounds how many recent episodes one run feeds to
// pattern discovery, mirroring the teacher's EpisodeBatchSize.
const episodeBatchSize = 50

// Runner opens a ConsolidationRun and drives its four stages plus the
// deterministic contradiction-resolution pass (spec.md §4.6). Shape
// grounded on the teacher's ConsolidationService.Consolidate 5-stage
// orchestration.
type Runner struct {
	store               domain.Store
	llmClient           domain.LLMClient
	logger              *zap.Logger
	similarityThreshold float64
	staleDays           int
}

func NewRunner(store domain.Store, llmClient domain.LLMClient, logger *zap.Logger, similarityThreshold float64, staleDays int) *Runner {
	return &Runner{
		store:               store,
		llmClient:           llmClient,
		logger:              logger,
		similarityThreshold: similarityThreshold,
		staleDays:           staleDays,
	}
}

// Run opens a ConsolidationRun with the given trigger, runs all four
// stages in order, and finalizes the run as completed or failed
// (spec.md §5: consolidation has no per-run timeout; it records
// "failed" on any unhandled error and the caller's scheduler proceeds).
func (r *Runner) Run(ctx context.Context, trigger string) (*domain.ConsolidationRun, error) {
	run := &domain.ConsolidationRun{
		ID:        idgen.New("run"),
		Status:    domain.RunRunning,
		Trigger:   trigger,
		StartedAt: time.Now().UTC(),
	}
	if err := r.store.Runs().Insert(ctx, run); err != nil {
		return nil, domain.Wrap("run.insert", domain.ErrStorageError, err)
	}

	runErr := r.runStages(ctx, run)

	finished := time.Now().UTC()
	run.FinishedAt = &finished
	if runErr != nil {
		run.Status = domain.RunFailed
		run.Error = runErr.Error()
		r.logger.Error("consolidation run failed", zap.String("run_id", run.ID), zap.Error(runErr))
	} else {
		run.Status = domain.RunCompleted
	}
	if err := r.store.Runs().Update(ctx, run); err != nil {
		r.logger.Error("failed to finalize consolidation run", zap.String("run_id", run.ID), zap.Error(err))
	}

	return run, runErr
}

func (r *Runner) runStages(ctx context.Context, run *domain.ConsolidationRun) error {
	// Stage 1: pattern discovery over recent episodes.
	recentEpisodes, err := r.store.Episodes().ListRecent(ctx, episodeBatchSize)
	if err != nil {
		return domain.Wrap("run.listRecentEpisodes", domain.ErrStorageError, err)
	}
	patterns := DiscoverPatterns(ctx, r.llmClient, recentEpisodes, r.logger)
	run.ItemsExtracted += len(patterns)

	// Deterministic contradiction resolution over active facts.
	activeFacts, err := r.store.Facts().ListActive(ctx)
	if err != nil {
		return domain.Wrap("run.listActiveFacts", domain.ErrStorageError, err)
	}
	run.ItemsResolved += r.resolveContradictions(ctx, activeFacts, run.ID)

	// Stage 2: fact consolidation (LLM merge/strengthen/retract).
	stage2, err := ConsolidateFacts(ctx, r.llmClient, r.store.Facts(), r.store.Changes(), r.similarityThreshold, run.ID, r.logger)
	if err != nil {
		return err
	}
	run.ItemsResolved += stage2.Merged + stage2.Strengthened + stage2.Retracted

	// Stage 3: connection discovery.
	refreshedFacts, err := r.store.Facts().ListActive(ctx)
	if err != nil {
		return domain.Wrap("run.listActiveFactsAfterStage2", domain.ErrStorageError, err)
	}
	links, err := r.store.CausalLinks().ListAll(ctx)
	if err != nil {
		return domain.Wrap("run.listCausalLinks", domain.ErrStorageError, err)
	}
	connections := DiscoverConnections(ctx, r.llmClient, refreshedFacts, links, r.logger)
	for _, c := range connections {
		link := &domain.CausalLink{
			ID:             idgen.New("cl"),
			CauseType:      domain.CausalRefFact,
			CauseID:        c.CauseID,
			EffectType:     domain.CausalRefFact,
			EffectID:       c.EffectID,
			Mechanism:      c.Mechanism,
			Confidence:     c.Confidence,
			CausalStrength: domain.ClassifyStrength(c.Confidence),
		}
		if err := r.store.CausalLinks().Insert(ctx, link); err != nil {
			return domain.Wrap("run.insertDiscoveredLink", domain.ErrStorageError, err)
		}
		run.ItemsExtracted++
	}

	// Stage 4: forgetting recommendations.
	links, err = r.store.CausalLinks().ListAll(ctx)
	if err != nil {
		return domain.Wrap("run.listCausalLinksForForgetting", domain.ErrStorageError, err)
	}
	report, err := ApplyForgetting(ctx, r.store.Facts(), r.store.Episodes(), r.store.Changes(), links, nil,
		ForgettingConfig{StaleDays: r.staleDays}, run.ID, time.Now().UTC())
	if err != nil {
		return err
	}
	run.ItemsPruned += report.Forgotten + report.Demoted

	return nil
}

// resolveContradictions groups active facts by subject+predicate,
// applies the precedence resolver to every contradicting pair within
// a group, and retracts the loser (spec.md §4.6).
func (r *Runner) resolveContradictions(ctx context.Context, facts []domain.Fact, runID string) int {
	groups := make(map[string][]domain.Fact, len(facts))
	for _, f := range facts {
		key := f.Subject + ":" + f.Predicate
		groups[key] = append(groups[key], f)
	}

	resolved := 0
	handled := make(map[string]bool)
	for _, group := range groups {
		for i := 0; i < len(group); i++ {
			if handled[group[i].ID] {
				continue
			}
			for j := i + 1; j < len(group); j++ {
				if handled[group[j].ID] {
					continue
				}
				if !IsContradiction(group[i], group[j]) {
					continue
				}
				_, loser := Resolve(group[i], group[j])
				if err := r.store.Facts().Retract(ctx, loser.ID, ContradictionRetractReason); err != nil {
					r.logger.Warn("failed to retract contradicted fact", zap.String("fact_id", loser.ID), zap.Error(err))
					continue
				}
				if err := appendChange(ctx, r.store.Changes(), domain.ChangeRetract, "fact", loser.ID, "", ContradictionRetractReason, runID); err != nil {
					r.logger.Warn("failed to record contradiction change", zap.Error(err))
				}
				handled[loser.ID] = true
				resolved++
				if loser.ID == group[i].ID {
					break
				}
			}
		}
	}
	return resolved
}
