package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Harshitk-cp/engram/internal/domain"
)

const factColumns = `id, subject, predicate, object, confidence, evidence, first_seen,
	last_confirmed, contradictions, user_affirmed, is_active, retracted_reason,
	access_count, embedding, created_at, updated_at`

type factStore struct {
	db *sql.DB
}

func (s *factStore) Insert(ctx context.Context, f *domain.Fact) error {
	ts := now()
	f.CreatedAt, f.UpdatedAt = ts, ts

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO facts (id, subject, predicate, object, confidence, evidence, first_seen,
			last_confirmed, contradictions, user_affirmed, is_active, retracted_reason,
			access_count, embedding, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Subject, f.Predicate, f.Object, f.Confidence, encodeStrings(f.Evidence), f.FirstSeen,
		f.LastConfirmed, encodeStrings(f.Contradictions), f.UserAffirmed, f.IsActive, f.RetractedReason,
		f.AccessCount, encodeEmbedding(f.Embedding), f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		return domain.Wrap("fact.Insert", domain.ErrStorageError, err)
	}
	return nil
}

func scanFact(sc interface{ Scan(...any) error }) (*domain.Fact, error) {
	var f domain.Fact
	var evidence, contradictions string
	var embedding []byte
	err := sc.Scan(&f.ID, &f.Subject, &f.Predicate, &f.Object, &f.Confidence, &evidence, &f.FirstSeen,
		&f.LastConfirmed, &contradictions, &f.UserAffirmed, &f.IsActive, &f.RetractedReason,
		&f.AccessCount, &embedding, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.Wrap("fact.get", domain.ErrNotFound, nil)
		}
		return nil, domain.Wrap("fact.get", domain.ErrStorageError, err)
	}
	f.Evidence = decodeStrings(evidence)
	f.Contradictions = decodeStrings(contradictions)
	f.Embedding = decodeEmbedding(embedding)
	return &f, nil
}

func (s *factStore) GetByID(ctx context.Context, id string) (*domain.Fact, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+factColumns+` FROM facts WHERE id = ?`, id)
	return scanFact(row)
}

func (s *factStore) Find(ctx context.Context, filter domain.FactFilter) ([]domain.Fact, error) {
	query := `SELECT ` + factColumns + ` FROM facts WHERE 1=1`
	var args []any

	if filter.Subject != "" {
		query += " AND subject = ?"
		args = append(args, filter.Subject)
	}
	if filter.Predicate != "" {
		query += " AND predicate = ?"
		args = append(args, filter.Predicate)
	}
	if filter.Object != "" {
		query += " AND object = ?"
		args = append(args, filter.Object)
	}
	if filter.ActiveOnly {
		query += " AND is_active = 1"
	}
	query += " ORDER BY last_confirmed DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.Wrap("fact.Find", domain.ErrStorageError, err)
	}
	defer rows.Close()
	return scanFacts(rows)
}

func scanFacts(rows *sql.Rows) ([]domain.Fact, error) {
	var out []domain.Fact
	for rows.Next() {
		f, err := scanFact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

func (s *factStore) ListActive(ctx context.Context) ([]domain.Fact, error) {
	return s.Find(ctx, domain.FactFilter{ActiveOnly: true})
}

func (s *factStore) ListActiveWithEmbeddings(ctx context.Context, limit int) ([]domain.Fact, error) {
	query := `SELECT ` + factColumns + ` FROM facts WHERE is_active = 1 AND embedding IS NOT NULL ORDER BY last_confirmed DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.Wrap("fact.ListActiveWithEmbeddings", domain.ErrStorageError, err)
	}
	defer rows.Close()
	return scanFacts(rows)
}

func (s *factStore) Retract(ctx context.Context, id string, reason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE facts SET is_active = 0, retracted_reason = ?, updated_at = ? WHERE id = ?`,
		reason, now(), id)
	if err != nil {
		return domain.Wrap("fact.Retract", domain.ErrStorageError, err)
	}
	return checkRowsAffected(res, "fact.Retract")
}

func (s *factStore) Reactivate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE facts SET is_active = 1, retracted_reason = '', updated_at = ? WHERE id = ?`,
		now(), id)
	if err != nil {
		return domain.Wrap("fact.Reactivate", domain.ErrStorageError, err)
	}
	return checkRowsAffected(res, "fact.Reactivate")
}

func (s *factStore) Update(ctx context.Context, f *domain.Fact) error {
	f.UpdatedAt = now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE facts SET subject = ?, predicate = ?, object = ?, confidence = ?, evidence = ?,
			first_seen = ?, last_confirmed = ?, contradictions = ?, user_affirmed = ?,
			is_active = ?, retracted_reason = ?, access_count = ?, embedding = ?, updated_at = ?
		WHERE id = ?`,
		f.Subject, f.Predicate, f.Object, f.Confidence, encodeStrings(f.Evidence),
		f.FirstSeen, f.LastConfirmed, encodeStrings(f.Contradictions), f.UserAffirmed,
		f.IsActive, f.RetractedReason, f.AccessCount, encodeEmbedding(f.Embedding), f.UpdatedAt,
		f.ID,
	)
	if err != nil {
		return domain.Wrap("fact.Update", domain.ErrStorageError, err)
	}
	return checkRowsAffected(res, "fact.Update")
}

func (s *factStore) IncrementAccess(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE facts SET access_count = access_count + 1, updated_at = ? WHERE id = ?`, now(), id)
	if err != nil {
		return domain.Wrap("fact.IncrementAccess", domain.ErrStorageError, err)
	}
	return checkRowsAffected(res, "fact.IncrementAccess")
}

func (s *factStore) FindExisting(ctx context.Context, subject, predicate, object string) (*domain.Fact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+factColumns+` FROM facts WHERE subject = ? AND predicate = ? AND object = ? AND is_active = 1 LIMIT 1`,
		subject, predicate, object)
	f, err := scanFact(row)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return f, nil
}
