package persistence

import (
	"context"
	"time"
)

// CacheEntryTTL is the dedup cache retention window (spec §4.4/§4.6).
const CacheEntryTTL = time.Hour

// Vacuum prunes expired gossip_cache rows and checkpoints the WAL file.
// Intended to be called periodically (spec §4.6: "Periodic maintenance
// prunes gossip_cache rows older than 1 hour and compacts storage").
func (s *Store) Vacuum(ctx context.Context) error {
	if _, err := s.PruneCache(time.Now().Add(-CacheEntryTTL)); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`)
	return err
}

// RunMaintenance blocks, calling Vacuum on the given interval, until ctx is
// canceled. Meant to be launched as a background goroutine by the
// orchestrator.
func (s *Store) RunMaintenance(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Vacuum(ctx); err != nil && s.log != nil {
				s.log.Warnf("maintenance vacuum failed: %v", err)
			}
		}
	}
}
