package persistence

import (
	"database/sql"
	"errors"
	"time"

	"github.com/tad-chat/tad/internal/model"
)

// CreateChannel inserts a new channel record. Idempotent on name: an
// existing channel is left untouched and no error is returned, matching
// the insert-or-ignore discipline spec §4.6 requires for the rest of the
// schema.
func (s *Store) CreateChannel(c *model.Channel) error {
	return s.withWriteTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO channels (name, encrypted, password_hash, salt, key, created_at, last_activity, message_count)
			VALUES (?, ?, ?, ?, ?, ?, ?, 0)
			ON CONFLICT(name) DO NOTHING`,
			c.Name, boolToInt(c.Encrypted), nullBytes(c.PasswordHash), nullBytes(c.Salt), nullBytes(c.Key),
			unixSeconds(c.CreatedAt), unixSeconds(c.LastActivity))
		return err
	})
}

// SaveChannelKey updates the in-memory-held symmetric key persisted for an
// owned or invited-into private channel.
func (s *Store) SaveChannelKey(name string, key []byte) error {
	return s.withWriteTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`UPDATE channels SET key = ?, encrypted = 1 WHERE name = ?`, key, name)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrChannelNotFound
		}
		return nil
	})
}

// GetChannel loads a channel by name.
func (s *Store) GetChannel(name string) (*model.Channel, error) {
	row := s.db.QueryRow(`
		SELECT name, encrypted, password_hash, salt, key, created_at, last_activity, message_count
		FROM channels WHERE name = ?`, name)
	return scanChannel(row)
}

// ListChannels returns all known channels.
func (s *Store) ListChannels() ([]*model.Channel, error) {
	rows, err := s.db.Query(`
		SELECT name, encrypted, password_hash, salt, key, created_at, last_activity, message_count
		FROM channels ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Channel
	for rows.Next() {
		c, err := scanChannelRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteChannel removes a channel; the ON DELETE CASCADE foreign keys on
// messages and channel_members remove their rows too (spec §4.6:
// "Deletion of a channel cascades to its messages and members").
func (s *Store) DeleteChannel(name string) error {
	return s.withWriteTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM channels WHERE name = ?`, name)
		return err
	})
}

// BumpActivity advances last_activity and increments message_count,
// called once per accepted message (spec §4.4 ingress step 6, egress
// step 4).
func (s *Store) BumpActivity(channel string, at time.Time) error {
	return s.withWriteTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			UPDATE channels SET last_activity = ?, message_count = message_count + 1
			WHERE name = ?`, unixSeconds(at), channel)
		return err
	})
}

// AddMember records a (channel, peer) membership row. Idempotent.
func (s *Store) AddMember(channel, peerID string, joinedAt time.Time) error {
	return s.withWriteTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO channel_members (channel, peer_id, joined_at, last_read)
			VALUES (?, ?, ?, 0)
			ON CONFLICT(channel, peer_id) DO NOTHING`, channel, peerID, unixSeconds(joinedAt))
		return err
	})
}

// RemoveMember deletes a (channel, peer) membership row.
func (s *Store) RemoveMember(channel, peerID string) error {
	return s.withWriteTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM channel_members WHERE channel = ? AND peer_id = ?`, channel, peerID)
		return err
	})
}

// IsMember reports whether peerID is recorded as a member of channel.
// For private channels this is the authoritative access-control check
// (spec §4.4 ingress step 5).
func (s *Store) IsMember(channel, peerID string) (bool, error) {
	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(1) FROM channel_members WHERE channel = ? AND peer_id = ?`, channel, peerID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListMembers returns every peer ID subscribed/authorized on a channel.
func (s *Store) ListMembers(channel string) ([]string, error) {
	rows, err := s.db.Query(`SELECT peer_id FROM channel_members WHERE channel = ?`, channel)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func scanChannel(row *sql.Row) (*model.Channel, error) {
	var (
		c                        model.Channel
		encrypted                int
		passwordHash, salt, key  []byte
		createdAt, lastActivity  float64
	)
	err := row.Scan(&c.Name, &encrypted, &passwordHash, &salt, &key, &createdAt, &lastActivity, &c.MessageCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrChannelNotFound
	}
	if err != nil {
		return nil, err
	}
	c.Encrypted = intToBool(encrypted)
	c.PasswordHash = passwordHash
	c.Salt = salt
	c.Key = key
	c.CreatedAt = fromUnixSeconds(createdAt)
	c.LastActivity = fromUnixSeconds(lastActivity)
	return &c, nil
}

func scanChannelRows(rows *sql.Rows) (*model.Channel, error) {
	var (
		c                       model.Channel
		encrypted               int
		passwordHash, salt, key []byte
		createdAt, lastActivity float64
	)
	if err := rows.Scan(&c.Name, &encrypted, &passwordHash, &salt, &key, &createdAt, &lastActivity, &c.MessageCount); err != nil {
		return nil, err
	}
	c.Encrypted = intToBool(encrypted)
	c.PasswordHash = passwordHash
	c.Salt = salt
	c.Key = key
	c.CreatedAt = fromUnixSeconds(createdAt)
	c.LastActivity = fromUnixSeconds(lastActivity)
	return &c, nil
}

func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
