package persistence

import (
	"database/sql"
	"errors"

	"github.com/tad-chat/tad/internal/model"
)

// UpsertPeer inserts or updates a peer row, keyed by peer_id.
func (s *Store) UpsertPeer(p *model.Peer) error {
	return s.withWriteTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO peers (peer_id, address, signing_key, encrypt_key, first_seen, last_seen, status, blocked, display_name)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(peer_id) DO UPDATE SET
				address = excluded.address,
				signing_key = excluded.signing_key,
				encrypt_key = excluded.encrypt_key,
				last_seen = excluded.last_seen,
				status = excluded.status,
				blocked = excluded.blocked,
				display_name = excluded.display_name`,
			p.NodeID, p.Address, nullBytes(p.SigningKey), nullBytes(p.EncryptKey),
			unixSeconds(p.FirstSeen), unixSeconds(p.LastSeen), string(p.Status), boolToInt(p.Blocked), p.DisplayName)
		return err
	})
}

// SetPeerStatus updates only status and last_seen for a known peer.
func (s *Store) SetPeerStatus(nodeID string, status model.PeerStatus, lastSeen float64) error {
	return s.withWriteTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE peers SET status = ?, last_seen = ? WHERE peer_id = ?`, string(status), lastSeen, nodeID)
		return err
	})
}

// SetBlocked updates the blocked flag for a peer.
func (s *Store) SetBlocked(nodeID string, blocked bool) error {
	return s.withWriteTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE peers SET blocked = ? WHERE peer_id = ?`, boolToInt(blocked), nodeID)
		return err
	})
}

// GetPeer loads a peer by node_id.
func (s *Store) GetPeer(nodeID string) (*model.Peer, error) {
	row := s.db.QueryRow(`
		SELECT peer_id, address, signing_key, encrypt_key, first_seen, last_seen, status, blocked, display_name
		FROM peers WHERE peer_id = ?`, nodeID)
	return scanPeer(row)
}

// ListPeers returns every known peer.
func (s *Store) ListPeers() ([]*model.Peer, error) {
	rows, err := s.db.Query(`
		SELECT peer_id, address, signing_key, encrypt_key, first_seen, last_seen, status, blocked, display_name
		FROM peers ORDER BY peer_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Peer
	for rows.Next() {
		var (
			p                     model.Peer
			status                string
			blocked               int
			firstSeen, lastSeen   float64
		)
		if err := rows.Scan(&p.NodeID, &p.Address, &p.SigningKey, &p.EncryptKey, &firstSeen, &lastSeen, &status, &blocked, &p.DisplayName); err != nil {
			return nil, err
		}
		p.Status = model.PeerStatus(status)
		p.Blocked = intToBool(blocked)
		p.FirstSeen = fromUnixSeconds(firstSeen)
		p.LastSeen = fromUnixSeconds(lastSeen)
		out = append(out, &p)
	}
	return out, rows.Err()
}

func scanPeer(row *sql.Row) (*model.Peer, error) {
	var (
		p                   model.Peer
		status              string
		blocked             int
		firstSeen, lastSeen float64
	)
	err := row.Scan(&p.NodeID, &p.Address, &p.SigningKey, &p.EncryptKey, &firstSeen, &lastSeen, &status, &blocked, &p.DisplayName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Status = model.PeerStatus(status)
	p.Blocked = intToBool(blocked)
	p.FirstSeen = fromUnixSeconds(firstSeen)
	p.LastSeen = fromUnixSeconds(lastSeen)
	return &p, nil
}
