package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Harshitk-cp/engram/internal/domain"
)

const clusterColumns = `id, centroid, member_ids, member_types, theme, keywords, last_timestamp,
	created_at, updated_at`

type clusterStore struct {
	db *sql.DB
}

func (s *clusterStore) Insert(ctx context.Context, c *domain.MemoryCluster) error {
	ts := now()
	c.CreatedAt, c.UpdatedAt = ts, ts

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memory_clusters (id, centroid, member_ids, member_types, theme, keywords,
			last_timestamp, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, encodeEmbedding(c.Centroid), encodeStrings(c.MemberIDs), encodeStrings(memberTypesToStrings(c.MemberTypes)),
		c.Theme, encodeStrings(c.Keywords), c.LastTimestamp, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return domain.Wrap("cluster.Insert", domain.ErrStorageError, err)
	}
	return nil
}

func memberTypesToStrings(types []domain.MemberType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

func stringsToMemberTypes(ss []string) []domain.MemberType {
	out := make([]domain.MemberType, len(ss))
	for i, s := range ss {
		out[i] = domain.MemberType(s)
	}
	return out
}

func scanCluster(sc interface{ Scan(...any) error }) (*domain.MemoryCluster, error) {
	var c domain.MemoryCluster
	var centroid []byte
	var memberIDs, memberTypes, keywords string
	err := sc.Scan(&c.ID, &centroid, &memberIDs, &memberTypes, &c.Theme, &keywords,
		&c.LastTimestamp, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.Wrap("cluster.get", domain.ErrNotFound, nil)
		}
		return nil, domain.Wrap("cluster.get", domain.ErrStorageError, err)
	}
	c.Centroid = decodeEmbedding(centroid)
	c.MemberIDs = decodeStrings(memberIDs)
	c.MemberTypes = stringsToMemberTypes(decodeStrings(memberTypes))
	c.Keywords = decodeStrings(keywords)
	return &c, nil
}

func (s *clusterStore) GetByID(ctx context.Context, id string) (*domain.MemoryCluster, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+clusterColumns+` FROM memory_clusters WHERE id = ?`, id)
	return scanCluster(row)
}

func (s *clusterStore) ListAll(ctx context.Context) ([]domain.MemoryCluster, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+clusterColumns+` FROM memory_clusters ORDER BY last_timestamp DESC`)
	if err != nil {
		return nil, domain.Wrap("cluster.ListAll", domain.ErrStorageError, err)
	}
	defer rows.Close()
	return scanClusters(rows)
}

func scanClusters(rows *sql.Rows) ([]domain.MemoryCluster, error) {
	var out []domain.MemoryCluster
	for rows.Next() {
		c, err := scanCluster(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (s *clusterStore) ListValid(ctx context.Context, minSize int) ([]domain.MemoryCluster, error) {
	if minSize <= 0 {
		minSize = domain.DefaultMinClusterSize
	}
	all, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.MemoryCluster, 0, len(all))
	for _, c := range all {
		if c.Valid(minSize) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *clusterStore) Update(ctx context.Context, c *domain.MemoryCluster) error {
	c.UpdatedAt = now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE memory_clusters SET centroid = ?, member_ids = ?, member_types = ?, theme = ?,
			keywords = ?, last_timestamp = ?, updated_at = ?
		WHERE id = ?`,
		encodeEmbedding(c.Centroid), encodeStrings(c.MemberIDs), encodeStrings(memberTypesToStrings(c.MemberTypes)),
		c.Theme, encodeStrings(c.Keywords), c.LastTimestamp, c.UpdatedAt, c.ID,
	)
	if err != nil {
		return domain.Wrap("cluster.Update", domain.ErrStorageError, err)
	}
	return checkRowsAffected(res, "cluster.Update")
}

func (s *clusterStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memory_clusters WHERE id = ?`, id)
	if err != nil {
		return domain.Wrap("cluster.Delete", domain.ErrStorageError, err)
	}
	return checkRowsAffected(res, "cluster.Delete")
}
