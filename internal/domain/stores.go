package domain

import (
	"context"
	"time"
)

// Stats is the result of Store.GetStats (spec.md §4.1).
type Stats struct {
	EpisodeCount      int       `json:"episode_count"`
	ActiveFactCount   int       `json:"active_fact_count"`
	InactiveFactCount int       `json:"inactive_fact_count"`
	CausalLinkCount   int       `json:"causal_link_count"`
	ProcedureCount    int       `json:"procedure_count"`
	ClusterCount      int       `json:"cluster_count"`
	AverageConfidence float64   `json:"average_fact_confidence"`
	OldestTimestamp   time.Time `json:"oldest_timestamp"`
	NewestTimestamp   time.Time `json:"newest_timestamp"`
}

// EpisodeStore is the C1 read/write surface for Episodes.
type EpisodeStore interface {
	Insert(ctx context.Context, e *Episode) error
	GetByID(ctx context.Context, id string) (*Episode, error)
	Query(ctx context.Context, filter EpisodeFilter) ([]Episode, error)
	RecordAccess(ctx context.Context, id string) error
	ListRecent(ctx context.Context, limit int) ([]Episode, error)
	ListAll(ctx context.Context) ([]Episode, error)
	ListOlderThan(ctx context.Context, cutoff time.Time) ([]Episode, error)
	MarkForgotten(ctx context.Context, id string, reason string) error
}

// FactStore is the C1 read/write surface for Facts.
type FactStore interface {
	Insert(ctx context.Context, f *Fact) error
	GetByID(ctx context.Context, id string) (*Fact, error)
	Find(ctx context.Context, filter FactFilter) ([]Fact, error)
	ListActive(ctx context.Context) ([]Fact, error)
	ListActiveWithEmbeddings(ctx context.Context, limit int) ([]Fact, error)
	Retract(ctx context.Context, id string, reason string) error
	Reactivate(ctx context.Context, id string) error
	Update(ctx context.Context, f *Fact) error
	IncrementAccess(ctx context.Context, id string) error
	FindExisting(ctx context.Context, subject, predicate, object string) (*Fact, error)
}

// CausalLinkStore is the C1 read/write surface for CausalLinks.
type CausalLinkStore interface {
	Insert(ctx context.Context, l *CausalLink) error
	GetByID(ctx context.Context, id string) (*CausalLink, error)
	Find(ctx context.Context, filter CausalLinkFilter) ([]CausalLink, error)
	ListAll(ctx context.Context) ([]CausalLink, error)
	FindEventByDescription(ctx context.Context, normalizedDescription string) (string, bool, error)
}

// ProcedureStore is the C1 read/write surface for Procedures.
type ProcedureStore interface {
	Insert(ctx context.Context, p *Procedure) error
	GetByID(ctx context.Context, id string) (*Procedure, error)
	ListAll(ctx context.Context) ([]Procedure, error)
	Update(ctx context.Context, p *Procedure) error
}

// ClusterStore is the C1 read/write surface for MemoryClusters.
type ClusterStore interface {
	Insert(ctx context.Context, c *MemoryCluster) error
	GetByID(ctx context.Context, id string) (*MemoryCluster, error)
	ListAll(ctx context.Context) ([]MemoryCluster, error)
	ListValid(ctx context.Context, minSize int) ([]MemoryCluster, error)
	Update(ctx context.Context, c *MemoryCluster) error
	Delete(ctx context.Context, id string) error
}

// ChangeStore is the append-only audit log surface.
type ChangeStore interface {
	Append(ctx context.Context, c *MemoryChange) error
	ListByTarget(ctx context.Context, targetID string) ([]MemoryChange, error)
	ListAll(ctx context.Context, limit int) ([]MemoryChange, error)
}

// ConsolidationRunStore tracks ConsolidationRun rows.
type ConsolidationRunStore interface {
	Insert(ctx context.Context, r *ConsolidationRun) error
	Update(ctx context.Context, r *ConsolidationRun) error
	GetLast(ctx context.Context) (*ConsolidationRun, error)
	ListSince(ctx context.Context, since time.Time) ([]ConsolidationRun, error)
}

// ForesightStore, UserProfileStore, PreferenceStore, RelationshipStore,
// CoreMemoryStore hold the auxiliary record types (spec.md §3).
type ForesightStore interface {
	Insert(ctx context.Context, f *Foresight) error
	ListAll(ctx context.Context) ([]Foresight, error)
	Update(ctx context.Context, f *Foresight) error
}

type UserProfileStore interface {
	Upsert(ctx context.Context, p *UserProfile) error
	Get(ctx context.Context, id string) (*UserProfile, error)
}

type PreferenceStore interface {
	Insert(ctx context.Context, p *Preference) error
	ListAll(ctx context.Context) ([]Preference, error)
}

type RelationshipStore interface {
	Insert(ctx context.Context, r *Relationship) error
	ListAll(ctx context.Context) ([]Relationship, error)
}

type CoreMemoryStore interface {
	Insert(ctx context.Context, c *CoreMemory) error
	ListAll(ctx context.Context) ([]CoreMemory, error)
}

// Store aggregates the full C1 surface for one agent's embedded
// database file.
type Store interface {
	Episodes() EpisodeStore
	Facts() FactStore
	CausalLinks() CausalLinkStore
	Procedures() ProcedureStore
	Clusters() ClusterStore
	Changes() ChangeStore
	Runs() ConsolidationRunStore
	Foresights() ForesightStore
	UserProfiles() UserProfileStore
	Preferences() PreferenceStore
	Relationships() RelationshipStore
	CoreMemories() CoreMemoryStore

	GetStats(ctx context.Context) (*Stats, error)
	Close() error
}
