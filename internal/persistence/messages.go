package persistence

import (
	"database/sql"
	"errors"
	"time"

	"github.com/tad-chat/tad/internal/message"
)

// SaveMessage inserts a message idempotently on id: replaying an already
// stored message is a no-op and leaves the table unchanged (spec §3, §8).
func (s *Store) SaveMessage(m *message.Message, receivedAt time.Time) error {
	return s.withWriteTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO messages (id, timestamp, sender_id, sender_name, channel, content, encrypted, signature, nonce, received_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING`,
			m.ID, m.Timestamp, m.SenderID, m.SenderName, m.Channel, m.Content,
			boolToInt(m.Encrypted), nullBytes(m.Signature), nullBytes(m.Nonce), unixSeconds(receivedAt))
		return err
	})
}

// GetMessage loads a single message by id.
func (s *Store) GetMessage(id string) (*message.Message, error) {
	row := s.db.QueryRow(`
		SELECT id, timestamp, sender_id, sender_name, channel, content, encrypted, signature, nonce
		FROM messages WHERE id = ?`, id)
	return scanMessage(row)
}

// ListMessages returns up to limit messages for a channel, oldest first.
func (s *Store) ListMessages(channel string, limit int) ([]*message.Message, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.Query(`
		SELECT id, timestamp, sender_id, sender_name, channel, content, encrypted, signature, nonce
		FROM messages WHERE channel = ? ORDER BY timestamp ASC LIMIT ?`, channel, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessageRowsAll(rows)
}

// MessagesSince returns messages for a channel with timestamp strictly
// greater than since, oldest first, capped at limit. Backs the
// sync_request/sync_response catch-up envelope pair.
func (s *Store) MessagesSince(channel string, since float64, limit int) ([]*message.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 200
	}
	rows, err := s.db.Query(`
		SELECT id, timestamp, sender_id, sender_name, channel, content, encrypted, signature, nonce
		FROM messages WHERE channel = ? AND timestamp > ? ORDER BY timestamp ASC LIMIT ?`, channel, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessageRowsAll(rows)
}

// SearchMessages performs a case-insensitive substring search over
// content, optionally scoped to one channel (empty string searches all).
// Spec §4.6: "Full-text search over content is a read-only operation;
// case-insensitive substring match is sufficient."
func (s *Store) SearchMessages(channel, query string, limit int) ([]*message.Message, error) {
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	var rows *sql.Rows
	var err error
	if channel == "" {
		rows, err = s.db.Query(`
			SELECT id, timestamp, sender_id, sender_name, channel, content, encrypted, signature, nonce
			FROM messages WHERE content LIKE '%' || ? || '%' COLLATE NOCASE
			ORDER BY timestamp DESC LIMIT ?`, query, limit)
	} else {
		rows, err = s.db.Query(`
			SELECT id, timestamp, sender_id, sender_name, channel, content, encrypted, signature, nonce
			FROM messages WHERE channel = ? AND content LIKE '%' || ? || '%' COLLATE NOCASE
			ORDER BY timestamp DESC LIMIT ?`, channel, query, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessageRowsAll(rows)
}

func scanMessage(row *sql.Row) (*message.Message, error) {
	var m message.Message
	err := row.Scan(&m.ID, &m.Timestamp, &m.SenderID, &m.SenderName, &m.Channel, &m.Content,
		wrapBoolScan(&m.Encrypted), &m.Signature, &m.Nonce)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func scanMessageRowsAll(rows *sql.Rows) ([]*message.Message, error) {
	var out []*message.Message
	for rows.Next() {
		var m message.Message
		if err := rows.Scan(&m.ID, &m.Timestamp, &m.SenderID, &m.SenderName, &m.Channel, &m.Content,
			wrapBoolScan(&m.Encrypted), &m.Signature, &m.Nonce); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// wrapBoolScan adapts a bool destination to SQLite's INTEGER 0/1
// representation via database/sql.Scanner.
func wrapBoolScan(dst *bool) *boolScanner {
	return &boolScanner{dst: dst}
}

type boolScanner struct {
	dst *bool
}

func (b *boolScanner) Scan(src any) error {
	switch v := src.(type) {
	case int64:
		*b.dst = v != 0
	case bool:
		*b.dst = v
	case nil:
		*b.dst = false
	default:
		return errors.New("persistence: unexpected type for bool column")
	}
	return nil
}
