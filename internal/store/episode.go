package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Harshitk-cp/engram/internal/domain"
)

const episodeColumns = `id, timestamp, summary, participants, topic, keywords, emotional_salience,
	utility_score, source_session_id, source_message_ids, ttl, access_count,
	last_accessed_at, embedding, created_at, updated_at`

type episodeStore struct {
	db *sql.DB
}

func (s *episodeStore) Insert(ctx context.Context, e *domain.Episode) error {
	ts := now()
	e.CreatedAt, e.UpdatedAt = ts, ts

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO episodes (id, timestamp, summary, participants, topic, keywords,
			emotional_salience, utility_score, source_session_id, source_message_ids,
			ttl, access_count, last_accessed_at, embedding, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Timestamp, e.Summary, encodeStrings(e.Participants), e.Topic, encodeStrings(e.Keywords),
		e.EmotionalSalience, e.UtilityScore, e.SourceSessionID, encodeStrings(e.SourceMessageIDs),
		string(e.TTL), e.AccessCount, e.LastAccessedAt, encodeEmbedding(e.Embedding), e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return domain.Wrap("episode.Insert", domain.ErrStorageError, err)
	}
	return nil
}

func (s *episodeStore) GetByID(ctx context.Context, id string) (*domain.Episode, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+episodeColumns+` FROM episodes WHERE id = ?`, id)
	return scanEpisode(row)
}

func scanEpisode(row *sql.Row) (*domain.Episode, error) {
	var e domain.Episode
	var participants, keywords, sourceMsgIDs, ttl string
	var embedding []byte
	err := row.Scan(&e.ID, &e.Timestamp, &e.Summary, &participants, &e.Topic, &keywords,
		&e.EmotionalSalience, &e.UtilityScore, &e.SourceSessionID, &sourceMsgIDs, &ttl,
		&e.AccessCount, &e.LastAccessedAt, &embedding, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.Wrap("episode.get", domain.ErrNotFound, nil)
		}
		return nil, domain.Wrap("episode.get", domain.ErrStorageError, err)
	}
	e.Participants = decodeStrings(participants)
	e.Keywords = decodeStrings(keywords)
	e.SourceMessageIDs = decodeStrings(sourceMsgIDs)
	e.TTL = domain.TTL(ttl)
	e.Embedding = decodeEmbedding(embedding)
	return &e, nil
}

func (s *episodeStore) Query(ctx context.Context, filter domain.EpisodeFilter) ([]domain.Episode, error) {
	query := `SELECT ` + episodeColumns + ` FROM episodes WHERE 1=1`
	var args []any

	if filter.From != nil {
		query += " AND timestamp >= ?"
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		query += " AND timestamp <= ?"
		args = append(args, *filter.To)
	}
	if filter.Topic != "" {
		query += " AND topic = ?"
		args = append(args, filter.Topic)
	}
	if filter.ActiveOnly {
		query += " AND forgotten = 0"
	}
	query += " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.Wrap("episode.Query", domain.ErrStorageError, err)
	}
	defer rows.Close()
	return scanEpisodes(rows)
}

func scanEpisodes(rows *sql.Rows) ([]domain.Episode, error) {
	var out []domain.Episode
	for rows.Next() {
		var e domain.Episode
		var participants, keywords, sourceMsgIDs, ttl string
		var embedding []byte
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Summary, &participants, &e.Topic, &keywords,
			&e.EmotionalSalience, &e.UtilityScore, &e.SourceSessionID, &sourceMsgIDs, &ttl,
			&e.AccessCount, &e.LastAccessedAt, &embedding, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, domain.Wrap("episode.scan", domain.ErrStorageError, err)
		}
		e.Participants = decodeStrings(participants)
		e.Keywords = decodeStrings(keywords)
		e.SourceMessageIDs = decodeStrings(sourceMsgIDs)
		e.TTL = domain.TTL(ttl)
		e.Embedding = decodeEmbedding(embedding)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *episodeStore) RecordAccess(ctx context.Context, id string) error {
	ts := now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE episodes SET access_count = access_count + 1, last_accessed_at = ?, updated_at = ? WHERE id = ?`,
		ts, ts, id)
	if err != nil {
		return domain.Wrap("episode.RecordAccess", domain.ErrStorageError, err)
	}
	return checkRowsAffected(res, "episode.RecordAccess")
}

func (s *episodeStore) ListRecent(ctx context.Context, limit int) ([]domain.Episode, error) {
	return s.Query(ctx, domain.EpisodeFilter{Limit: limit})
}

func (s *episodeStore) ListAll(ctx context.Context) ([]domain.Episode, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+episodeColumns+` FROM episodes ORDER BY timestamp ASC`)
	if err != nil {
		return nil, domain.Wrap("episode.ListAll", domain.ErrStorageError, err)
	}
	defer rows.Close()
	return scanEpisodes(rows)
}

func (s *episodeStore) ListOlderThan(ctx context.Context, cutoff time.Time) ([]domain.Episode, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+episodeColumns+` FROM episodes WHERE timestamp < ? ORDER BY timestamp ASC`, cutoff)
	if err != nil {
		return nil, domain.Wrap("episode.ListOlderThan", domain.ErrStorageError, err)
	}
	defer rows.Close()
	return scanEpisodes(rows)
}

func (s *episodeStore) MarkForgotten(ctx context.Context, id string, reason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE episodes SET forgotten = 1, forgotten_reason = ?, updated_at = ? WHERE id = ?`,
		reason, now(), id)
	if err != nil {
		return domain.Wrap("episode.MarkForgotten", domain.ErrStorageError, err)
	}
	return checkRowsAffected(res, "episode.MarkForgotten")
}

func checkRowsAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return domain.Wrap(op, domain.ErrStorageError, err)
	}
	if n == 0 {
		return domain.Wrap(op, domain.ErrNotFound, nil)
	}
	return nil
}
