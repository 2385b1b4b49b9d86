package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Harshitk-cp/engram/internal/domain"
)

type changeStore struct {
	db *sql.DB
}

func (s *changeStore) Append(ctx context.Context, c *domain.MemoryChange) error {
	c.CreatedAt = now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memory_changes (id, change_type, target_type, target_id, previous_value,
			new_value, reason, trigger_episode_id, consolidation_run_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, string(c.ChangeType), c.TargetType, c.TargetID, c.PreviousValue, c.NewValue,
		c.Reason, c.TriggerEpisodeID, c.ConsolidationRunID, c.CreatedAt,
	)
	if err != nil {
		return domain.Wrap("change.Append", domain.ErrStorageError, err)
	}
	return nil
}

const changeColumns = `id, change_type, target_type, target_id, previous_value, new_value,
	reason, trigger_episode_id, consolidation_run_id, created_at`

func scanChanges(rows *sql.Rows) ([]domain.MemoryChange, error) {
	var out []domain.MemoryChange
	for rows.Next() {
		var c domain.MemoryChange
		var changeType string
		if err := rows.Scan(&c.ID, &changeType, &c.TargetType, &c.TargetID, &c.PreviousValue,
			&c.NewValue, &c.Reason, &c.TriggerEpisodeID, &c.ConsolidationRunID, &c.CreatedAt); err != nil {
			return nil, domain.Wrap("change.scan", domain.ErrStorageError, err)
		}
		c.ChangeType = domain.ChangeType(changeType)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *changeStore) ListByTarget(ctx context.Context, targetID string) ([]domain.MemoryChange, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+changeColumns+` FROM memory_changes WHERE target_id = ? ORDER BY created_at ASC`, targetID)
	if err != nil {
		return nil, domain.Wrap("change.ListByTarget", domain.ErrStorageError, err)
	}
	defer rows.Close()
	return scanChanges(rows)
}

func (s *changeStore) ListAll(ctx context.Context, limit int) ([]domain.MemoryChange, error) {
	query := `SELECT ` + changeColumns + ` FROM memory_changes ORDER BY created_at DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.Wrap("change.ListAll", domain.ErrStorageError, err)
	}
	defer rows.Close()
	return scanChanges(rows)
}

type consolidationRunStore struct {
	db *sql.DB
}

func (s *consolidationRunStore) Insert(ctx context.Context, r *domain.ConsolidationRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO consolidation_runs (id, status, trigger, started_at, finished_at,
			items_extracted, items_resolved, items_pruned, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, string(r.Status), r.Trigger, r.StartedAt, r.FinishedAt,
		r.ItemsExtracted, r.ItemsResolved, r.ItemsPruned, r.Error,
	)
	if err != nil {
		return domain.Wrap("run.Insert", domain.ErrStorageError, err)
	}
	return nil
}

func (s *consolidationRunStore) Update(ctx context.Context, r *domain.ConsolidationRun) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE consolidation_runs SET status = ?, finished_at = ?, items_extracted = ?,
			items_resolved = ?, items_pruned = ?, error = ?
		WHERE id = ?`,
		string(r.Status), r.FinishedAt, r.ItemsExtracted, r.ItemsResolved, r.ItemsPruned, r.Error, r.ID,
	)
	if err != nil {
		return domain.Wrap("run.Update", domain.ErrStorageError, err)
	}
	return checkRowsAffected(res, "run.Update")
}

const runColumns = `id, status, trigger, started_at, finished_at, items_extracted,
	items_resolved, items_pruned, error`

func scanRun(sc interface{ Scan(...any) error }) (*domain.ConsolidationRun, error) {
	var r domain.ConsolidationRun
	var status string
	err := sc.Scan(&r.ID, &status, &r.Trigger, &r.StartedAt, &r.FinishedAt,
		&r.ItemsExtracted, &r.ItemsResolved, &r.ItemsPruned, &r.Error)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.Wrap("run.get", domain.ErrNotFound, nil)
		}
		return nil, domain.Wrap("run.get", domain.ErrStorageError, err)
	}
	r.Status = domain.RunStatus(status)
	return &r, nil
}

func (s *consolidationRunStore) GetLast(ctx context.Context) (*domain.ConsolidationRun, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM consolidation_runs ORDER BY started_at DESC LIMIT 1`)
	return scanRun(row)
}

func (s *consolidationRunStore) ListSince(ctx context.Context, since time.Time) ([]domain.ConsolidationRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM consolidation_runs WHERE started_at >= ? ORDER BY started_at ASC`, since)
	if err != nil {
		return nil, domain.Wrap("run.ListSince", domain.ErrStorageError, err)
	}
	defer rows.Close()

	var out []domain.ConsolidationRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}
