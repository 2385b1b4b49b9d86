package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Harshitk-cp/engram/internal/buildconfig"
	"github.com/Harshitk-cp/engram/internal/config"
	"github.com/Harshitk-cp/engram/internal/embedding"
	"github.com/Harshitk-cp/engram/internal/engine"
	"github.com/Harshitk-cp/engram/internal/httpapi"
	"github.com/Harshitk-cp/engram/internal/llm"
)

func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	logger.Info("engramd starting", zap.String("version", buildconfig.Version()), zap.String("commit", buildconfig.Commit()))

	if err := config.Load(); err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	dataDir := config.DataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		logger.Fatal("failed to create data dir", zap.String("dir", dataDir), zap.Error(err))
	}

	llmClient, err := llm.NewClient(config.LLMProvider(), config.LLMAPIKey())
	if err != nil {
		logger.Warn("LLM client initialization failed, falling back to mock", zap.Error(err))
		llmClient = llm.NewMockClient()
	} else {
		logger.Info("LLM client initialized", zap.String("provider", config.LLMProvider()))
	}

	embedder, err := embedding.NewClient(config.EmbeddingProvider(), config.EmbeddingAPIKey())
	if err != nil {
		logger.Warn("embedding client initialization failed, falling back to mock", zap.Error(err))
		embedder = embedding.NewMockClient()
	} else {
		logger.Info("embedding client initialized", zap.String("provider", config.EmbeddingProvider()))
	}

	cfg := engine.Config{
		SimilarityThreshold:        config.SimilarityThreshold(),
		ClusterSimilarityThreshold: config.ClusterSimilarityThreshold(),
		MaxClusters:                config.MaxClusters(),
		MinClusterSize:             config.MinClusterSize(),
		CausalChainMaxDepth:        config.CausalChainMaxDepth(),
		CausalChainMinSimilarity:   config.CausalChainMinSimilarity(),
		PrefetchLatencyTargetMs:    config.PrefetchLatencyTargetMs(),
		HybridAlpha:                config.HybridAlpha(),
		MinHybridScore:             config.MinHybridScore(),
		MaxResults:                 config.MaxResults(),
		MinRetentionScore:          config.MinRetentionScore(),
		StaleDays:                  config.StaleDays(),
		MaxSimilarFacts:            config.MaxSimilarFacts(),
	}

	mgr := engine.NewManager(dataDir, llmClient, embedder, cfg, logger)

	startedAt := time.Now()
	router := httpapi.NewRouter(mgr, logger, startedAt)

	addr := config.ServerAddr()
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	if err := mgr.Close(); err != nil {
		logger.Error("error closing agent engines", zap.Error(err))
	}

	logger.Info("server stopped")
}
