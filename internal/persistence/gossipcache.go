package persistence

import (
	"database/sql"
	"time"
)

// InsertSeen records a message ID as seen, idempotently, so gossip dedup
// survives a restart within the cache entry TTL window (spec §8 "restart
// resumes dedup").
func (s *Store) InsertSeen(messageID string, firstSeenAt time.Time) error {
	return s.withWriteTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO gossip_cache (message_id, first_seen_at) VALUES (?, ?)
			ON CONFLICT(message_id) DO NOTHING`, messageID, unixSeconds(firstSeenAt))
		return err
	})
}

// HasSeen reports whether a message ID is present in the persisted
// gossip cache.
func (s *Store) HasSeen(messageID string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(1) FROM gossip_cache WHERE message_id = ?`, messageID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// LoadRecentCache loads entries newer than cutoff, used to warm the
// in-memory dedup cache on startup.
func (s *Store) LoadRecentCache(cutoff time.Time) ([]GossipCacheEntry, error) {
	rows, err := s.db.Query(`SELECT message_id, first_seen_at FROM gossip_cache WHERE first_seen_at >= ?`, unixSeconds(cutoff))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GossipCacheEntry
	for rows.Next() {
		var (
			id string
			ts float64
		)
		if err := rows.Scan(&id, &ts); err != nil {
			return nil, err
		}
		out = append(out, GossipCacheEntry{MessageID: id, FirstSeenAt: fromUnixSeconds(ts)})
	}
	return out, rows.Err()
}

// PruneCache deletes gossip_cache rows older than cutoff. Called
// periodically by the orchestrator's maintenance ticker (spec §4.6,
// cache_entry_ttl = 3600s).
func (s *Store) PruneCache(cutoff time.Time) (int64, error) {
	var n int64
	err := s.withWriteTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM gossip_cache WHERE first_seen_at < ?`, unixSeconds(cutoff))
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}
