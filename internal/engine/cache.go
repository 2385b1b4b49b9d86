package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/Harshitk-cp/engram/internal/domain"
)

// initPromise lets a concurrent second Manager.Get for the same agent
// await the first call's in-flight construction instead of racing it
// (spec.md §5's initialization-race rule: idempotent and serialized).
type initPromise struct {
	done   chan struct{}
	engine *Engine
	err    error
}

// Manager caches one Engine per agent id, building each lazily on
// first use and tearing every one down on Close.
type Manager struct {
	dataDir   string
	llmClient domain.LLMClient
	embedder  domain.EmbeddingClient
	cfg       Config
	logger    *zap.Logger

	mu       sync.Mutex
	engines  map[string]*Engine
	inFlight map[string]*initPromise
}

// NewManager constructs the facade's per-agent cache. The LLM and
// embedding clients are shared collaborators across every agent; only
// the Store and in-memory indexes are per-agent.
func NewManager(dataDir string, llmClient domain.LLMClient, embedder domain.EmbeddingClient, cfg Config, logger *zap.Logger) *Manager {
	return &Manager{
		dataDir:   dataDir,
		llmClient: llmClient,
		embedder:  embedder,
		cfg:       cfg,
		logger:    logger,
		engines:   make(map[string]*Engine),
		inFlight:  make(map[string]*initPromise),
	}
}

// Get returns the cached Engine for agentID, constructing it on first
// call. A concurrent second call for the same agentID blocks on the
// first call's promise rather than opening a second Store handle onto
// the same file.
func (m *Manager) Get(ctx context.Context, agentID string) (*Engine, error) {
	m.mu.Lock()
	if e, ok := m.engines[agentID]; ok {
		m.mu.Unlock()
		return e, nil
	}
	if p, ok := m.inFlight[agentID]; ok {
		m.mu.Unlock()
		<-p.done
		return p.engine, p.err
	}

	p := &initPromise{done: make(chan struct{})}
	m.inFlight[agentID] = p
	m.mu.Unlock()

	dbPath := filepath.Join(m.dataDir, agentID+".db")
	e, err := New(ctx, agentID, dbPath, m.llmClient, m.embedder, m.cfg, m.logger)

	m.mu.Lock()
	p.engine, p.err = e, err
	if err == nil {
		m.engines[agentID] = e
	}
	delete(m.inFlight, agentID)
	m.mu.Unlock()
	close(p.done)

	return e, err
}

// ClearCache closes and evicts the engine for one agent, or every
// cached engine when agentID is empty.
func (m *Manager) ClearCache(agentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if agentID != "" {
		e, ok := m.engines[agentID]
		if !ok {
			return nil
		}
		delete(m.engines, agentID)
		return e.Close()
	}

	var firstErr error
	for id, e := range m.engines {
		if err := e.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close engine for agent %s: %w", id, err)
		}
		delete(m.engines, id)
	}
	return firstErr
}

// Close tears down every cached engine. Equivalent to
// ClearCache("") but named for the facade's close() use case
// (spec.md §4.8).
func (m *Manager) Close() error {
	return m.ClearCache("")
}
