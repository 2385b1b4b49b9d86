package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Harshitk-cp/engram/internal/domain"
)

const causalLinkColumns = `id, cause_type, cause_id, cause_description, effect_type, effect_id,
	effect_description, mechanism, confidence, evidence, temporal_delay_ns, causal_strength,
	created_at, updated_at`

type causalLinkStore struct {
	db *sql.DB
}

func (s *causalLinkStore) Insert(ctx context.Context, l *domain.CausalLink) error {
	ts := now()
	l.CreatedAt, l.UpdatedAt = ts, ts

	var delayNs *int64
	if l.TemporalDelay != nil {
		n := int64(*l.TemporalDelay)
		delayNs = &n
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO causal_links (id, cause_type, cause_id, cause_description, effect_type,
			effect_id, effect_description, mechanism, confidence, evidence, temporal_delay_ns,
			causal_strength, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, string(l.CauseType), l.CauseID, l.CauseDescription, string(l.EffectType), l.EffectID,
		l.EffectDescription, l.Mechanism, l.Confidence, encodeStrings(l.Evidence), delayNs,
		string(l.CausalStrength), l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return domain.Wrap("causalLink.Insert", domain.ErrStorageError, err)
	}
	return nil
}

func scanCausalLink(sc interface{ Scan(...any) error }) (*domain.CausalLink, error) {
	var l domain.CausalLink
	var causeType, effectType, evidence, strength string
	var delayNs *int64
	err := sc.Scan(&l.ID, &causeType, &l.CauseID, &l.CauseDescription, &effectType, &l.EffectID,
		&l.EffectDescription, &l.Mechanism, &l.Confidence, &evidence, &delayNs, &strength,
		&l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.Wrap("causalLink.get", domain.ErrNotFound, nil)
		}
		return nil, domain.Wrap("causalLink.get", domain.ErrStorageError, err)
	}
	l.CauseType = domain.CausalRefType(causeType)
	l.EffectType = domain.CausalRefType(effectType)
	l.Evidence = decodeStrings(evidence)
	l.CausalStrength = domain.CausalStrength(strength)
	if delayNs != nil {
		d := time.Duration(*delayNs)
		l.TemporalDelay = &d
	}
	return &l, nil
}

func (s *causalLinkStore) GetByID(ctx context.Context, id string) (*domain.CausalLink, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+causalLinkColumns+` FROM causal_links WHERE id = ?`, id)
	return scanCausalLink(row)
}

func (s *causalLinkStore) Find(ctx context.Context, filter domain.CausalLinkFilter) ([]domain.CausalLink, error) {
	query := `SELECT ` + causalLinkColumns + ` FROM causal_links WHERE 1=1`
	var args []any
	if filter.CauseID != "" {
		query += " AND cause_id = ?"
		args = append(args, filter.CauseID)
	}
	if filter.EffectID != "" {
		query += " AND effect_id = ?"
		args = append(args, filter.EffectID)
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.Wrap("causalLink.Find", domain.ErrStorageError, err)
	}
	defer rows.Close()
	return scanCausalLinks(rows)
}

func scanCausalLinks(rows *sql.Rows) ([]domain.CausalLink, error) {
	var out []domain.CausalLink
	for rows.Next() {
		l, err := scanCausalLink(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func (s *causalLinkStore) ListAll(ctx context.Context) ([]domain.CausalLink, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+causalLinkColumns+` FROM causal_links ORDER BY created_at ASC`)
	if err != nil {
		return nil, domain.Wrap("causalLink.ListAll", domain.ErrStorageError, err)
	}
	defer rows.Close()
	return scanCausalLinks(rows)
}

// FindEventByDescription implements the Open Question decision
// (DESIGN.md): synthetic "event"-typed cause ids are deduped within an
// agent by normalized description, so repeated mentions of the same
// unlinked event reuse one id instead of minting a new one each time.
func (s *causalLinkStore) FindEventByDescription(ctx context.Context, normalizedDescription string) (string, bool, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT cause_id FROM causal_links WHERE cause_type = 'event' AND lower(cause_description) = ? LIMIT 1`,
		normalizedDescription,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, domain.Wrap("causalLink.FindEventByDescription", domain.ErrStorageError, err)
	}
	return id, true, nil
}
