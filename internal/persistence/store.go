// Package persistence implements the durable, single-node local store for
// messages, channels, membership, peers and the gossip dedup cache (spec
// §4.6). It is backed by SQLite in WAL journal mode via database/sql and
// github.com/mattn/go-sqlite3, with a single-writer/multi-reader
// discipline: all writes funnel through one mutex-guarded transaction
// helper while reads use the pool's normal concurrent connections.
package persistence

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pion/logging"
)

// GossipCacheEntry records when a message ID was first seen, for
// restart-surviving dedup (spec §3, §8 "restart resumes dedup").
type GossipCacheEntry struct {
	MessageID   string
	FirstSeenAt time.Time
}

// Store is the durable persistence core.
type Store struct {
	db  *sql.DB
	log logging.LeveledLogger

	writeMu sync.Mutex
}

// Config configures the Store.
type Config struct {
	// Path is the SQLite database file path.
	Path string

	// LoggerFactory creates the "persistence" sub-logger. Optional.
	LoggerFactory logging.LoggerFactory
}

// Open opens (creating if necessary) the SQLite database at cfg.Path in
// WAL journal mode and runs the additive schema migrations.
func Open(cfg Config) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", cfg.Path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("persistence: open: %w", err)
	}

	s := &Store{db: db}
	if cfg.LoggerFactory != nil {
		s.log = cfg.LoggerFactory.NewLogger("persistence")
	}

	for _, stmt := range schemaStatements {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("persistence: migrate: %w", err)
		}
	}

	if s.log != nil {
		s.log.Infof("opened store at %s", cfg.Path)
	}

	return s, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// withWriteTx serializes all write transactions behind a single mutex, per
// spec §4.6/§5's single-writer discipline, while parallel readers continue
// to use the pool directly (SQLite's WAL mode allows concurrent readers
// during a write).
func (s *Store) withWriteTx(fn func(tx *sql.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// unixSeconds converts a time.Time to the REAL-as-unix-seconds
// representation used throughout the schema (spec §6: "Timestamps ...
// stored as ... Unix seconds -- one choice, consistently").
func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func fromUnixSeconds(v float64) time.Time {
	return time.Unix(0, int64(v*1e9))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func intToBool(v int) bool {
	return v != 0
}
