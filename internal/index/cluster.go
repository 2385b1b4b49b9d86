package index

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Harshitk-cp/engram/internal/domain"
	"github.com/Harshitk-cp/engram/internal/idgen"
	"github.com/Harshitk-cp/engram/internal/vecmath"
)

// ClusterConfig carries the tunables spec.md §4.4/§6 expose for online
// clustering.
type ClusterConfig struct {
	SimilarityThreshold float64
	MaxClusters         int
	MinClusterSize      int
}

// ClusterManager performs the online incremental clustering update
// spec.md §4.4 describes, backed by a domain.ClusterStore. The member
// bookkeeping and centroid math live on domain.MemoryCluster itself
// (AddMember/MergeWeighted); this type owns the assignment policy:
// attach-to-best-match, or evict-then-create at the cap.
type ClusterManager struct {
	store  domain.ClusterStore
	logger *zap.Logger
	cfg    ClusterConfig
}

func NewClusterManager(store domain.ClusterStore, cfg ClusterConfig, logger *zap.Logger) *ClusterManager {
	return &ClusterManager{store: store, cfg: cfg, logger: logger}
}

// Assign attaches (id, typ) to the best-matching existing cluster, or
// creates a new one — evicting by merging the two most-similar
// clusters first if the store is already at maxClusters.
func (m *ClusterManager) Assign(ctx context.Context, id string, typ domain.MemberType, embedding []float32, timestamp time.Time, keywords []string) error {
	if len(embedding) == 0 {
		return nil
	}

	clusters, err := m.store.ListAll(ctx)
	if err != nil {
		return domain.Wrap("cluster.listAll", domain.ErrStorageError, err)
	}

	best, bestSim := bestMatch(clusters, embedding)

	if best != nil && bestSim >= m.cfg.SimilarityThreshold {
		best.AddMember(id, typ, embedding, timestamp, keywords)
		if err := m.store.Update(ctx, best); err != nil {
			return domain.Wrap("cluster.update", domain.ErrStorageError, err)
		}
		return nil
	}

	if m.cfg.MaxClusters > 0 && len(clusters) >= m.cfg.MaxClusters {
		if err := m.evictMostSimilarPair(ctx, clusters); err != nil {
			return err
		}
	}

	fresh := &domain.MemoryCluster{ID: idgen.New("cluster")}
	fresh.AddMember(id, typ, embedding, timestamp, keywords)
	if err := m.store.Insert(ctx, fresh); err != nil {
		return domain.Wrap("cluster.insert", domain.ErrStorageError, err)
	}
	return nil
}

// bestMatch returns the cluster whose centroid is most similar to
// embedding (dimension-matched) and that similarity, or (nil, 0) if no
// cluster has a matching-dimension centroid.
func bestMatch(clusters []domain.MemoryCluster, embedding []float32) (*domain.MemoryCluster, float64) {
	var best *domain.MemoryCluster
	bestSim := -1.0
	for i := range clusters {
		c := &clusters[i]
		if len(c.Centroid) != len(embedding) {
			continue
		}
		sim := vecmath.Cosine(embedding, c.Centroid)
		if sim > bestSim {
			bestSim = sim
			best = c
		}
	}
	if best == nil {
		return nil, 0
	}
	return best, bestSim
}

// evictMostSimilarPair merges the two most mutually-similar clusters
// (by centroid cosine, weighted-average merge) to make room under
// maxClusters (spec.md §4.4).
func (m *ClusterManager) evictMostSimilarPair(ctx context.Context, clusters []domain.MemoryCluster) error {
	if len(clusters) < 2 {
		return nil
	}

	bestI, bestJ, bestSim := -1, -1, -1.0
	for i := 0; i < len(clusters); i++ {
		for j := i + 1; j < len(clusters); j++ {
			if len(clusters[i].Centroid) != len(clusters[j].Centroid) || len(clusters[i].Centroid) == 0 {
				continue
			}
			sim := vecmath.Cosine(clusters[i].Centroid, clusters[j].Centroid)
			if sim > bestSim {
				bestSim, bestI, bestJ = sim, i, j
			}
		}
	}
	if bestI < 0 {
		// No comparable pair (dimension mismatch throughout); evict
		// nothing and let the cap be exceeded by one rather than lose data.
		m.logger.Warn("no comparable cluster pair to merge at cap, allowing cap overrun by one")
		return nil
	}

	survivor := clusters[bestI]
	survivor.MergeWeighted(&clusters[bestJ])
	if err := m.store.Update(ctx, &survivor); err != nil {
		return domain.Wrap("cluster.mergeUpdate", domain.ErrStorageError, err)
	}
	if err := m.store.Delete(ctx, clusters[bestJ].ID); err != nil {
		return domain.Wrap("cluster.mergeDelete", domain.ErrStorageError, err)
	}
	return nil
}
