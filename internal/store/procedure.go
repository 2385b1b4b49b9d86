package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Harshitk-cp/engram/internal/domain"
)

const procedureColumns = `id, trigger, action, expected_outcome, examples, times_used,
	times_succeeded, tags, trigger_embedding, created_at, updated_at`

type procedureStore struct {
	db *sql.DB
}

func (s *procedureStore) Insert(ctx context.Context, p *domain.Procedure) error {
	ts := now()
	p.CreatedAt, p.UpdatedAt = ts, ts

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO procedures (id, trigger, action, expected_outcome, examples, times_used,
			times_succeeded, tags, trigger_embedding, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Trigger, p.Action, p.ExpectedOutcome, encodeStrings(p.Examples), p.TimesUsed,
		p.TimesSucceeded, encodeStrings(p.Tags), encodeEmbedding(p.TriggerEmbedding), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return domain.Wrap("procedure.Insert", domain.ErrStorageError, err)
	}
	return nil
}

func scanProcedure(sc interface{ Scan(...any) error }) (*domain.Procedure, error) {
	var p domain.Procedure
	var examples, tags string
	var embedding []byte
	err := sc.Scan(&p.ID, &p.Trigger, &p.Action, &p.ExpectedOutcome, &examples, &p.TimesUsed,
		&p.TimesSucceeded, &tags, &embedding, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.Wrap("procedure.get", domain.ErrNotFound, nil)
		}
		return nil, domain.Wrap("procedure.get", domain.ErrStorageError, err)
	}
	p.Examples = decodeStrings(examples)
	p.Tags = decodeStrings(tags)
	p.TriggerEmbedding = decodeEmbedding(embedding)
	return &p, nil
}

func (s *procedureStore) GetByID(ctx context.Context, id string) (*domain.Procedure, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+procedureColumns+` FROM procedures WHERE id = ?`, id)
	return scanProcedure(row)
}

func (s *procedureStore) ListAll(ctx context.Context) ([]domain.Procedure, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+procedureColumns+` FROM procedures ORDER BY created_at ASC`)
	if err != nil {
		return nil, domain.Wrap("procedure.ListAll", domain.ErrStorageError, err)
	}
	defer rows.Close()

	var out []domain.Procedure
	for rows.Next() {
		p, err := scanProcedure(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *procedureStore) Update(ctx context.Context, p *domain.Procedure) error {
	p.UpdatedAt = now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE procedures SET trigger = ?, action = ?, expected_outcome = ?, examples = ?,
			times_used = ?, times_succeeded = ?, tags = ?, trigger_embedding = ?, updated_at = ?
		WHERE id = ?`,
		p.Trigger, p.Action, p.ExpectedOutcome, encodeStrings(p.Examples), p.TimesUsed,
		p.TimesSucceeded, encodeStrings(p.Tags), encodeEmbedding(p.TriggerEmbedding), p.UpdatedAt, p.ID,
	)
	if err != nil {
		return domain.Wrap("procedure.Update", domain.ErrStorageError, err)
	}
	return checkRowsAffected(res, "procedure.Update")
}
