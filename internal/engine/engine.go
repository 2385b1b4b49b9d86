// Package engine is the integration facade (spec.md §4.8): it owns
// initialization order (LLM provider -> embedding provider -> Store ->
// indexes), exposes one method per public use case, and wires every
// other package (extractor, synthesis, index, retrieval, consolidation,
// health) into a single per-agent object, grounded on the teacher's
// internal/api.NewApp wiring order and per-service constructor shape.
package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Harshitk-cp/engram/internal/consolidation"
	"github.com/Harshitk-cp/engram/internal/domain"
	"github.com/Harshitk-cp/engram/internal/extractor"
	"github.com/Harshitk-cp/engram/internal/health"
	"github.com/Harshitk-cp/engram/internal/idgen"
	"github.com/Harshitk-cp/engram/internal/index"
	"github.com/Harshitk-cp/engram/internal/retrieval"
	"github.com/Harshitk-cp/engram/internal/store"
	"github.com/Harshitk-cp/engram/internal/synthesis"
)

// Config carries the tunables the engine's pipelines read, set once at
// construction time by the caller (internal/config in cmd/engramd).
type Config struct {
	SimilarityThreshold        float64
	ClusterSimilarityThreshold float64
	MaxClusters                int
	MinClusterSize             int
	CausalChainMaxDepth        int
	CausalChainMinSimilarity   float64
	PrefetchLatencyTargetMs    int
	HybridAlpha                float64
	MinHybridScore             float64
	MaxResults                 int
	MinRetentionScore          float64
	StaleDays                  int
	MaxSimilarFacts            int
}

// Engine is the fully-wired per-agent object: one Store, one set of
// in-memory indexes, and every pipeline that reads or writes them.
// Different agents never share an Engine or its in-memory state
// (spec.md §5).
type Engine struct {
	agentID string
	cfg     Config
	logger  *zap.Logger

	store     domain.Store
	llmClient domain.LLMClient
	embedder  domain.EmbeddingClient

	extractor   *extractor.Extractor
	synthesizer *synthesis.Synthesizer

	bm25     *index.BM25Index
	vectors  *index.VectorIndex
	entities *index.EntityIndex
	clusters *index.ClusterManager

	intentPlanner *retrieval.IntentPlanner
	hybrid        *retrieval.HybridSearcher
	prefetcher    *retrieval.Prefetcher

	scheduler *consolidation.Scheduler
	runner    *consolidation.Runner
}

// New opens the agent's SQLite file, wires every pipeline against it,
// rebuilds the in-memory indexes from durable state, and starts the
// consolidation scheduler. dbPath is typically "<dataDir>/<agentId>.db".
func New(ctx context.Context, agentID, dbPath string, llmClient domain.LLMClient, embedder domain.EmbeddingClient, cfg Config, logger *zap.Logger) (*Engine, error) {
	st, err := store.Open(dbPath, logger)
	if err != nil {
		return nil, fmt.Errorf("open store for agent %s: %w", agentID, err)
	}

	bm25 := index.NewBM25Index()
	vectors := index.NewVectorIndex()
	entities := index.NewEntityIndex()
	clusters := index.NewClusterManager(st.Clusters(), index.ClusterConfig{
		SimilarityThreshold: cfg.ClusterSimilarityThreshold,
		MaxClusters:         cfg.MaxClusters,
		MinClusterSize:      cfg.MinClusterSize,
	}, logger)

	synth := synthesis.New(st.Facts(), st.Changes(), embedder, llmClient, synthesis.Config{
		SimilarityThreshold: cfg.SimilarityThreshold,
		MaxSimilarFacts:     cfg.MaxSimilarFacts,
	}, logger)

	runner := consolidation.NewRunner(st, llmClient, logger, cfg.SimilarityThreshold, cfg.StaleDays)
	scheduler := consolidation.NewScheduler(st, runner, logger)

	e := &Engine{
		agentID:       agentID,
		cfg:           cfg,
		logger:        logger,
		store:         st,
		llmClient:     llmClient,
		embedder:      embedder,
		extractor:     extractor.New(llmClient, logger),
		synthesizer:   synth,
		bm25:          bm25,
		vectors:       vectors,
		entities:      entities,
		clusters:      clusters,
		intentPlanner: retrieval.NewIntentPlanner(llmClient, logger),
		hybrid: retrieval.NewHybridSearcher(bm25, vectors, st.Facts(), embedder, retrieval.HybridConfig{
			Alpha:      cfg.HybridAlpha,
			MinScore:   cfg.MinHybridScore,
			MaxResults: cfg.MaxResults,
		}),
		prefetcher: retrieval.NewPrefetcher(st.Episodes(), entities),
		scheduler:  scheduler,
		runner:     runner,
	}

	if err := e.rebuildIndexes(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}

	scheduler.Start()
	return e, nil
}

// rebuildIndexes replays every active Fact and every Episode from the
// durable store into the in-memory BM25/vector/entity indexes. The
// indexes themselves hold no durable state; this runs once at startup
// so restart never loses recall.
func (e *Engine) rebuildIndexes(ctx context.Context) error {
	facts, err := e.store.Facts().ListActive(ctx)
	if err != nil {
		return domain.Wrap("engine.rebuildIndexes", domain.ErrStorageError, err)
	}
	for _, f := range facts {
		e.bm25.Add(f.ID, "fact", f.Subject+" "+f.Predicate+" "+f.Object)
		if domain.ValidEmbeddingDim(len(f.Embedding)) {
			e.vectors.Add(f.ID, "fact", f.Embedding)
		}
		e.entities.Add(f.ID, f.Subject, f.Object)
	}

	episodes, err := e.store.Episodes().ListAll(ctx)
	if err != nil {
		return domain.Wrap("engine.rebuildIndexes", domain.ErrStorageError, err)
	}
	for _, ep := range episodes {
		e.bm25.Add(ep.ID, "episode", ep.Summary)
		if domain.ValidEmbeddingDim(len(ep.Embedding)) {
			e.vectors.Add(ep.ID, "episode", ep.Embedding)
		}
	}
	return nil
}

// PrefetchMemories runs the sub-100ms fast path (spec.md §4.5.4).
func (e *Engine) PrefetchMemories(ctx context.Context, message string) (retrieval.PrefetchResult, error) {
	return e.prefetcher.Prefetch(ctx, message)
}

// SearchMemories runs full intent-planned hybrid search (spec.md
// §4.5.1/§4.5.2).
func (e *Engine) SearchMemories(ctx context.Context, query string) ([]retrieval.Result, error) {
	plan := e.intentPlanner.Plan(ctx, query)
	return e.hybrid.Search(ctx, plan, query)
}

// SearchCausalLinksByEffect traverses the causal chain explaining
// targetEffect (spec.md §4.5.3).
func (e *Engine) SearchCausalLinksByEffect(ctx context.Context, targetEffect string) (retrieval.CausalChain, error) {
	cfg := retrieval.CausalConfig{
		MaxDepth:      e.cfg.CausalChainMaxDepth,
		MinSimilarity: e.cfg.CausalChainMinSimilarity,
	}
	return retrieval.TraverseCausalChain(ctx, e.store.CausalLinks(), targetEffect, cfg, retrieval.HeuristicTextSimilarity)
}

// StoreFactOutcome is the outcome object explicit writes return
// (spec.md §7): writes never throw to the caller, they report success.
type StoreFactOutcome struct {
	ID      string
	Success bool
	Merged  bool
}

// StoreFact writes one explicit fact (marked user-affirmed when
// userAffirmed is set) through the synthesis dedup/merge pipeline and
// into the in-memory indexes.
func (e *Engine) StoreFact(ctx context.Context, subject, predicate, object string, confidence float32, userAffirmed bool) StoreFactOutcome {
	now := time.Now().UTC()
	f := &domain.Fact{
		ID:            idgen.New("fact"),
		Subject:       subject,
		Predicate:     predicate,
		Object:        object,
		Confidence:    confidence,
		UserAffirmed:  userAffirmed,
		IsActive:      true,
		FirstSeen:     now,
		LastConfirmed: now,
	}

	merged, err := e.synthesizer.Absorb(ctx, f, "")
	if err != nil {
		e.logger.Warn("storeFact failed", zap.Error(err), zap.String("subject", subject), zap.String("predicate", predicate))
		return StoreFactOutcome{Success: false}
	}

	e.indexFact(*f)
	e.assignFactCluster(ctx, *f)
	return StoreFactOutcome{ID: f.ID, Success: true, Merged: merged}
}

// GetStats returns the aggregate memory statistics for this agent.
func (e *Engine) GetStats(ctx context.Context) (*domain.Stats, error) {
	return e.store.GetStats(ctx)
}

// RunCleanup exposes C7's health pass to callers that want to inspect
// or repair data quality directly, outside a consolidation run.
func (e *Engine) RunCleanup(ctx context.Context, autoFix bool) (health.Report, error) {
	return health.RunCleanup(ctx, e.store.Facts(), e.store.Changes(), autoFix, e.logger)
}

// Close stops the background scheduler and releases the Store.
func (e *Engine) Close() error {
	e.scheduler.Stop()
	return e.store.Close()
}

func (e *Engine) indexFact(f domain.Fact) {
	e.bm25.Add(f.ID, "fact", f.Subject+" "+f.Predicate+" "+f.Object)
	if domain.ValidEmbeddingDim(len(f.Embedding)) {
		e.vectors.Add(f.ID, "fact", f.Embedding)
	}
	e.entities.Add(f.ID, f.Subject, f.Object)
}

func (e *Engine) assignFactCluster(ctx context.Context, f domain.Fact) {
	if !domain.ValidEmbeddingDim(len(f.Embedding)) {
		return
	}
	keywords := []string{f.Subject, f.Predicate, f.Object}
	if err := e.clusters.Assign(ctx, f.ID, domain.MemberFact, f.Embedding, f.LastConfirmed, keywords); err != nil {
		e.logger.Warn("cluster assignment failed", zap.String("fact_id", f.ID), zap.Error(err))
	}
}
