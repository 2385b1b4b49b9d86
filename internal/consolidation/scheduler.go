// Package consolidation implements the background memory-maintenance
// cycle: pattern discovery, fact consolidation, connection discovery,
// and forgetting recommendations (spec.md §4.6).
package consolidation

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Harshitk-cp/engram/internal/domain"
)

// Trigger names, recorded verbatim on the ConsolidationRun row.
const (
	TriggerInitial   = "initial_consolidation"
	TriggerManyNew   = "many_new_memories"
	TriggerIdleTime  = "idle_time_consolidation"
	TriggerScheduled = "scheduled_consolidation"
	TriggerDeepSleep = "deep_sleep_consolidation"
)

const (
	manyNewMemoriesThreshold = 50
	idleNewMemoriesThreshold = 10
	idleDuration             = 1 * time.Hour
	scheduledInterval        = 6 * time.Hour
	deepSleepInterval        = 24 * time.Hour
)

// Scheduler runs a Runner in the background whenever one of the five
// triggers fires, evaluated against the last ConsolidationRun
// (spec.md §4.6). Shape grounded on the teacher's
// ConsolidationService.Start/Stop ticker worker.
type Scheduler struct {
	store  domain.Store
	runner *Runner
	logger *zap.Logger

	checkInterval time.Duration
	stopCh        chan struct{}
	wg            sync.WaitGroup
}

func NewScheduler(store domain.Store, runner *Runner, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		store:         store,
		runner:        runner,
		logger:        logger,
		checkInterval: 5 * time.Minute,
		stopCh:        make(chan struct{}),
	}
}

// SetCheckInterval overrides the trigger-polling cadence; tests use a
// short interval rather than waiting on the 5-minute default.
func (s *Scheduler) SetCheckInterval(d time.Duration) {
	s.checkInterval = d
}

// Start begins the background polling loop.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.checkInterval)
		defer ticker.Stop()

		s.logger.Info("consolidation scheduler started", zap.Duration("check_interval", s.checkInterval))
		for {
			select {
			case <-ticker.C:
				s.tick()
			case <-s.stopCh:
				s.logger.Info("consolidation scheduler stopped")
				return
			}
		}
	}()
}

// Stop halts the background loop and waits for any in-flight tick.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	trigger, ok, err := s.CheckTriggers(ctx)
	if err != nil {
		s.logger.Error("failed to check consolidation triggers", zap.Error(err))
		return
	}
	if !ok {
		return
	}

	if _, err := s.runner.Run(ctx, trigger); err != nil {
		s.logger.Error("consolidation run failed", zap.String("trigger", trigger), zap.Error(err))
	}
}

// CheckTriggers evaluates the five triggers in priority order and
// returns the first one that fires (spec.md §4.6). A nil last run
// always fires TriggerInitial.
func (s *Scheduler) CheckTriggers(ctx context.Context) (string, bool, error) {
	last, err := s.store.Runs().GetLast(ctx)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return "", false, domain.Wrap("scheduler.checkTriggers", domain.ErrStorageError, err)
	}
	if last == nil {
		return TriggerInitial, true, nil
	}

	since := last.StartedAt
	if last.FinishedAt != nil {
		since = *last.FinishedAt
	}

	changes, err := s.store.Changes().ListAll(ctx, 0)
	if err != nil {
		return "", false, domain.Wrap("scheduler.checkTriggers", domain.ErrStorageError, err)
	}

	newCount := 0
	var lastChangeAt time.Time
	for _, c := range changes {
		if c.ChangeType == domain.ChangeAdd && c.CreatedAt.After(since) {
			newCount++
		}
		if c.CreatedAt.After(lastChangeAt) {
			lastChangeAt = c.CreatedAt
		}
	}

	elapsed := time.Since(since)

	switch {
	case elapsed >= deepSleepInterval:
		return TriggerDeepSleep, true, nil
	case newCount >= manyNewMemoriesThreshold:
		return TriggerManyNew, true, nil
	case !lastChangeAt.IsZero() && time.Since(lastChangeAt) >= idleDuration && newCount >= idleNewMemoriesThreshold:
		return TriggerIdleTime, true, nil
	case elapsed >= scheduledInterval:
		return TriggerScheduled, true, nil
	default:
		return "", false, nil
	}
}
