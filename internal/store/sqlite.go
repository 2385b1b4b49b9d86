// Package store implements the embedded per-agent memory store (spec.md
// §4.1): one SQLite database file per agent, schema-migrated with
// golang-migrate, exposing the domain.Store aggregate interface.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/Harshitk-cp/engram/internal/domain"
)

//go:embed migrations
var migrationsFS embed.FS

// SQLiteStore is the concrete domain.Store backed by a single SQLite
// file. One instance exists per agent (internal/engine maintains the
// cache).
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger

	episodes    *episodeStore
	facts       *factStore
	causalLinks *causalLinkStore
	procedures  *procedureStore
	clusters    *clusterStore
	changes     *changeStore
	runs        *consolidationRunStore
	foresights  *foresightStore
	profiles    *userProfileStore
	prefs       *preferenceStore
	relations   *relationshipStore
	cores       *coreMemoryStore
}

// Open opens (creating if absent) the SQLite file at path, applies
// pending migrations, and returns a ready-to-use Store. path is
// typically `<dataDir>/<agentId>.db` (spec.md §4.1).
func Open(path string, logger *zap.Logger) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_cache_size=-2000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// modernc.org/sqlite serializes access at the driver level; a
	// single connection avoids SQLITE_BUSY storms under WAL.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger}
	s.episodes = &episodeStore{db: db}
	s.facts = &factStore{db: db}
	s.causalLinks = &causalLinkStore{db: db}
	s.procedures = &procedureStore{db: db}
	s.clusters = &clusterStore{db: db}
	s.changes = &changeStore{db: db}
	s.runs = &consolidationRunStore{db: db}
	s.foresights = &foresightStore{db: db}
	s.profiles = &userProfileStore{db: db}
	s.prefs = &preferenceStore{db: db}
	s.relations = &relationshipStore{db: db}
	s.cores = &coreMemoryStore{db: db}

	logger.Info("store opened", zap.String("path", path))
	return s, nil
}

// runMigrations applies every pending embedded migration, mirroring
// the golang-migrate + embed.FS wiring used for Postgres elsewhere in
// the corpus, swapped to the sqlite3 migration driver.
func runMigrations(db *sql.DB) error {
	if _, err := fs.ReadDir(migrationsFS, "migrations"); err != nil {
		return fmt.Errorf("read embedded migrations: %w", err)
	}

	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite3 migration driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	// Do not call m.Close(): it would close db, which this store still
	// owns. Only the migration source needs releasing.
	return sourceDriver.Close()
}

func (s *SQLiteStore) Episodes() domain.EpisodeStore           { return s.episodes }
func (s *SQLiteStore) Facts() domain.FactStore                 { return s.facts }
func (s *SQLiteStore) CausalLinks() domain.CausalLinkStore     { return s.causalLinks }
func (s *SQLiteStore) Procedures() domain.ProcedureStore       { return s.procedures }
func (s *SQLiteStore) Clusters() domain.ClusterStore           { return s.clusters }
func (s *SQLiteStore) Changes() domain.ChangeStore             { return s.changes }
func (s *SQLiteStore) Runs() domain.ConsolidationRunStore      { return s.runs }
func (s *SQLiteStore) Foresights() domain.ForesightStore       { return s.foresights }
func (s *SQLiteStore) UserProfiles() domain.UserProfileStore   { return s.profiles }
func (s *SQLiteStore) Preferences() domain.PreferenceStore     { return s.prefs }
func (s *SQLiteStore) Relationships() domain.RelationshipStore { return s.relations }
func (s *SQLiteStore) CoreMemories() domain.CoreMemoryStore    { return s.cores }

func (s *SQLiteStore) GetStats(ctx context.Context) (*domain.Stats, error) {
	return computeStats(ctx, s.db)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// now is the clock helper the store methods use; it reads the clock on
// every call.
func now() time.Time { return time.Now().UTC() }
