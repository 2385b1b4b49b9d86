package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Harshitk-cp/engram/internal/domain"
)

// --- Foresight ---

type foresightStore struct {
	db *sql.DB
}

func (s *foresightStore) Insert(ctx context.Context, f *domain.Foresight) error {
	ts := now()
	f.CreatedAt, f.UpdatedAt = ts, ts
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO foresights (id, prediction, based_on, confidence, horizon, resolved,
			resolved_outcome, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Prediction, encodeStrings(f.BasedOn), f.Confidence, f.Horizon, f.Resolved,
		f.ResolvedOutcome, f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		return domain.Wrap("foresight.Insert", domain.ErrStorageError, err)
	}
	return nil
}

func (s *foresightStore) ListAll(ctx context.Context) ([]domain.Foresight, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, prediction, based_on, confidence, horizon, resolved, resolved_outcome,
			created_at, updated_at
		FROM foresights ORDER BY created_at ASC`)
	if err != nil {
		return nil, domain.Wrap("foresight.ListAll", domain.ErrStorageError, err)
	}
	defer rows.Close()

	var out []domain.Foresight
	for rows.Next() {
		var f domain.Foresight
		var basedOn string
		if err := rows.Scan(&f.ID, &f.Prediction, &basedOn, &f.Confidence, &f.Horizon,
			&f.Resolved, &f.ResolvedOutcome, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, domain.Wrap("foresight.scan", domain.ErrStorageError, err)
		}
		f.BasedOn = decodeStrings(basedOn)
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *foresightStore) Update(ctx context.Context, f *domain.Foresight) error {
	f.UpdatedAt = now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE foresights SET prediction = ?, based_on = ?, confidence = ?, horizon = ?,
			resolved = ?, resolved_outcome = ?, updated_at = ?
		WHERE id = ?`,
		f.Prediction, encodeStrings(f.BasedOn), f.Confidence, f.Horizon, f.Resolved,
		f.ResolvedOutcome, f.UpdatedAt, f.ID,
	)
	if err != nil {
		return domain.Wrap("foresight.Update", domain.ErrStorageError, err)
	}
	return checkRowsAffected(res, "foresight.Update")
}

// --- UserProfile ---

type userProfileStore struct {
	db *sql.DB
}

func (s *userProfileStore) Upsert(ctx context.Context, p *domain.UserProfile) error {
	ts := now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = ts
	}
	p.UpdatedAt = ts
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_profiles (id, display_name, attributes, importance, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET display_name = excluded.display_name,
			attributes = excluded.attributes, importance = excluded.importance,
			updated_at = excluded.updated_at`,
		p.ID, p.DisplayName, encodeMap(p.Attributes), p.Importance, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return domain.Wrap("userProfile.Upsert", domain.ErrStorageError, err)
	}
	return nil
}

func (s *userProfileStore) Get(ctx context.Context, id string) (*domain.UserProfile, error) {
	var p domain.UserProfile
	var attrs string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, attributes, importance, created_at, updated_at
		FROM user_profiles WHERE id = ?`, id,
	).Scan(&p.ID, &p.DisplayName, &attrs, &p.Importance, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.Wrap("userProfile.get", domain.ErrNotFound, nil)
		}
		return nil, domain.Wrap("userProfile.get", domain.ErrStorageError, err)
	}
	p.Attributes = decodeMap(attrs)
	return &p, nil
}

// --- Preference ---

type preferenceStore struct {
	db *sql.DB
}

func (s *preferenceStore) Insert(ctx context.Context, p *domain.Preference) error {
	ts := now()
	p.CreatedAt, p.UpdatedAt = ts, ts
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO preferences (id, category, subject, value, strength, confidence, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Category, p.Subject, p.Value, p.Strength, p.Confidence, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return domain.Wrap("preference.Insert", domain.ErrStorageError, err)
	}
	return nil
}

func (s *preferenceStore) ListAll(ctx context.Context) ([]domain.Preference, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category, subject, value, strength, confidence, created_at, updated_at
		FROM preferences ORDER BY created_at ASC`)
	if err != nil {
		return nil, domain.Wrap("preference.ListAll", domain.ErrStorageError, err)
	}
	defer rows.Close()

	var out []domain.Preference
	for rows.Next() {
		var p domain.Preference
		if err := rows.Scan(&p.ID, &p.Category, &p.Subject, &p.Value, &p.Strength, &p.Confidence,
			&p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, domain.Wrap("preference.scan", domain.ErrStorageError, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// --- Relationship ---

type relationshipStore struct {
	db *sql.DB
}

func (s *relationshipStore) Insert(ctx context.Context, r *domain.Relationship) error {
	ts := now()
	r.CreatedAt, r.UpdatedAt = ts, ts
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO relationships (id, party, kind, sentiment, confidence, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Party, r.Kind, r.Sentiment, r.Confidence, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return domain.Wrap("relationship.Insert", domain.ErrStorageError, err)
	}
	return nil
}

func (s *relationshipStore) ListAll(ctx context.Context) ([]domain.Relationship, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, party, kind, sentiment, confidence, created_at, updated_at
		FROM relationships ORDER BY created_at ASC`)
	if err != nil {
		return nil, domain.Wrap("relationship.ListAll", domain.ErrStorageError, err)
	}
	defer rows.Close()

	var out []domain.Relationship
	for rows.Next() {
		var r domain.Relationship
		if err := rows.Scan(&r.ID, &r.Party, &r.Kind, &r.Sentiment, &r.Confidence,
			&r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, domain.Wrap("relationship.scan", domain.ErrStorageError, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// --- CoreMemory ---

type coreMemoryStore struct {
	db *sql.DB
}

func (s *coreMemoryStore) Insert(ctx context.Context, c *domain.CoreMemory) error {
	ts := now()
	c.CreatedAt, c.UpdatedAt = ts, ts
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO core_memories (id, content, importance, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Content, c.Importance, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return domain.Wrap("coreMemory.Insert", domain.ErrStorageError, err)
	}
	return nil
}

func (s *coreMemoryStore) ListAll(ctx context.Context) ([]domain.CoreMemory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, importance, created_at, updated_at FROM core_memories ORDER BY created_at ASC`)
	if err != nil {
		return nil, domain.Wrap("coreMemory.ListAll", domain.ErrStorageError, err)
	}
	defer rows.Close()

	var out []domain.CoreMemory
	for rows.Next() {
		var c domain.CoreMemory
		if err := rows.Scan(&c.ID, &c.Content, &c.Importance, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, domain.Wrap("coreMemory.scan", domain.ErrStorageError, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
