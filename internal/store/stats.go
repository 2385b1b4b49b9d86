package store

import (
	"context"
	"database/sql"

	"github.com/Harshitk-cp/engram/internal/domain"
)

// computeStats implements domain.Store.GetStats with a handful of
// scalar aggregate queries (spec.md §4.1).
func computeStats(ctx context.Context, db *sql.DB) (*domain.Stats, error) {
	var st domain.Stats

	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM episodes`).Scan(&st.EpisodeCount); err != nil {
		return nil, domain.Wrap("stats.episodeCount", domain.ErrStorageError, err)
	}
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM facts WHERE is_active = 1`).Scan(&st.ActiveFactCount); err != nil {
		return nil, domain.Wrap("stats.activeFactCount", domain.ErrStorageError, err)
	}
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM facts WHERE is_active = 0`).Scan(&st.InactiveFactCount); err != nil {
		return nil, domain.Wrap("stats.inactiveFactCount", domain.ErrStorageError, err)
	}
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM causal_links`).Scan(&st.CausalLinkCount); err != nil {
		return nil, domain.Wrap("stats.causalLinkCount", domain.ErrStorageError, err)
	}
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM procedures`).Scan(&st.ProcedureCount); err != nil {
		return nil, domain.Wrap("stats.procedureCount", domain.ErrStorageError, err)
	}
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memory_clusters`).Scan(&st.ClusterCount); err != nil {
		return nil, domain.Wrap("stats.clusterCount", domain.ErrStorageError, err)
	}

	var avgConfidence sql.NullFloat64
	if err := db.QueryRowContext(ctx, `SELECT AVG(confidence) FROM facts WHERE is_active = 1`).Scan(&avgConfidence); err != nil {
		return nil, domain.Wrap("stats.avgConfidence", domain.ErrStorageError, err)
	}
	st.AverageConfidence = avgConfidence.Float64

	var oldest, newest sql.NullTime
	if err := db.QueryRowContext(ctx, `SELECT MIN(timestamp), MAX(timestamp) FROM episodes`).Scan(&oldest, &newest); err != nil {
		return nil, domain.Wrap("stats.episodeRange", domain.ErrStorageError, err)
	}
	if oldest.Valid {
		st.OldestTimestamp = oldest.Time
	}
	if newest.Valid {
		st.NewestTimestamp = newest.Time
	}

	return &st, nil
}
