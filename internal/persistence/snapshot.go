package persistence

import (
	"bufio"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
)

// snapshotRecord is one line of a Snapshot/Restore stream: a table name
// tag plus its row payload. This keeps the export/import schema stable and
// independent of the SQL column layout, per spec §1's "only the on-disk
// schema must remain stable" boundary with the (out-of-scope) export/
// import CLI tooling.
type snapshotRecord struct {
	Table string          `json:"table"`
	Row   json.RawMessage `json:"row"`
}

// Snapshot streams every table as newline-delimited JSON records to w, in
// a stable, tool-readable order: channels, messages, channel_members,
// peers, gossip_cache, config.
func (s *Store) Snapshot(w io.Writer) error {
	bw := bufio.NewWriter(w)
	defer bw.Flush()

	writeRows := func(table string, query string) error {
		rows, err := s.db.Query(query)
		if err != nil {
			return err
		}
		defer rows.Close()

		cols, err := rows.Columns()
		if err != nil {
			return err
		}

		for rows.Next() {
			vals := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range vals {
				ptrs[i] = &vals[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return err
			}

			m := make(map[string]any, len(cols))
			for i, c := range cols {
				m[c] = vals[i]
			}
			rowJSON, err := json.Marshal(m)
			if err != nil {
				return err
			}
			rec := snapshotRecord{Table: table, Row: rowJSON}
			line, err := json.Marshal(rec)
			if err != nil {
				return err
			}
			if _, err := bw.Write(line); err != nil {
				return err
			}
			if err := bw.WriteByte('\n'); err != nil {
				return err
			}
		}
		return rows.Err()
	}

	tables := []struct{ name, query string }{
		{"channels", `SELECT * FROM channels`},
		{"messages", `SELECT * FROM messages`},
		{"channel_members", `SELECT * FROM channel_members`},
		{"peers", `SELECT * FROM peers`},
		{"gossip_cache", `SELECT * FROM gossip_cache`},
		{"config", `SELECT * FROM config`},
	}
	for _, t := range tables {
		if err := writeRows(t.name, t.query); err != nil {
			return fmt.Errorf("persistence: snapshot %s: %w", t.name, err)
		}
	}
	return nil
}

// tableInsertColumns lists, in positional order, the columns each table's
// INSERT OR IGNORE statement expects — restoring is idempotent by primary
// key, same as live ingestion.
var tableInsertColumns = map[string][]string{
	"channels":        {"name", "encrypted", "password_hash", "salt", "key", "created_at", "last_activity", "message_count"},
	"messages":        {"id", "timestamp", "sender_id", "sender_name", "channel", "content", "encrypted", "signature", "nonce", "received_at"},
	"channel_members": {"channel", "peer_id", "joined_at", "last_read"},
	"peers":           {"peer_id", "address", "signing_key", "encrypt_key", "first_seen", "last_seen", "status", "blocked", "display_name"},
	"gossip_cache":    {"message_id", "first_seen_at"},
	"config":          {"key", "value"},
}

// Restore reads a Snapshot stream and inserts rows idempotently. Channels
// must be restored before messages/channel_members given the foreign-key
// cascade, which the fixed table order in Snapshot already guarantees for
// a file produced by this package.
func (s *Store) Restore(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	// BLOB columns reach Snapshot's JSON as base64 strings (encoding/json's
	// rendering of []byte); they are decoded back to bytes before insert.
	blobColumns := map[string]map[string]bool{
		"channels": {"password_hash": true, "salt": true, "key": true},
		"messages": {"signature": true, "nonce": true},
		"peers":    {"signing_key": true, "encrypt_key": true},
	}

	return s.withWriteTx(func(tx *sql.Tx) error {
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var rec snapshotRecord
			if err := json.Unmarshal(line, &rec); err != nil {
				return fmt.Errorf("persistence: restore: %w", err)
			}

			cols, ok := tableInsertColumns[rec.Table]
			if !ok {
				continue // forward-compatible: ignore unknown tables
			}

			var row map[string]any
			if err := json.Unmarshal(rec.Row, &row); err != nil {
				return fmt.Errorf("persistence: restore row: %w", err)
			}

			placeholders := make([]string, len(cols))
			args := make([]any, len(cols))
			for i, c := range cols {
				placeholders[i] = "?"
				args[i] = row[c]
				if str, isStr := row[c].(string); isStr && blobColumns[rec.Table][c] {
					b, err := base64.StdEncoding.DecodeString(str)
					if err != nil {
						return fmt.Errorf("persistence: restore %s.%s: %w", rec.Table, c, err)
					}
					args[i] = b
				}
			}
			query := fmt.Sprintf(
				"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT DO NOTHING",
				rec.Table, joinCols(cols), joinCols(placeholders))
			if _, err := tx.Exec(query, args...); err != nil {
				return fmt.Errorf("persistence: restore insert into %s: %w", rec.Table, err)
			}
		}
		return scanner.Err()
	})
}

func joinCols(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}
