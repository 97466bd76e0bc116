package persistence

// schemaStatements creates the tables from spec §4.6 if they do not exist.
// Additive migrations only (spec: "the column shapes ... are a
// compatibility surface"); never drop or rename a column here.
var schemaStatements = []string{
	`PRAGMA foreign_keys = ON`,
	`CREATE TABLE IF NOT EXISTS channels (
		name            TEXT PRIMARY KEY,
		encrypted       INTEGER NOT NULL DEFAULT 0,
		password_hash   BLOB,
		salt            BLOB,
		key             BLOB,
		created_at      REAL NOT NULL,
		last_activity   REAL NOT NULL,
		message_count   INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id          TEXT PRIMARY KEY,
		timestamp   REAL NOT NULL,
		sender_id   TEXT NOT NULL,
		sender_name TEXT,
		channel     TEXT NOT NULL REFERENCES channels(name) ON DELETE CASCADE,
		content     TEXT NOT NULL,
		encrypted   INTEGER NOT NULL DEFAULT 0,
		signature   BLOB,
		nonce       BLOB,
		received_at REAL NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_channel ON messages(channel, timestamp)`,
	`CREATE TABLE IF NOT EXISTS channel_members (
		channel     TEXT NOT NULL REFERENCES channels(name) ON DELETE CASCADE,
		peer_id     TEXT NOT NULL,
		joined_at   REAL NOT NULL,
		last_read   REAL NOT NULL DEFAULT 0,
		PRIMARY KEY (channel, peer_id)
	)`,
	`CREATE TABLE IF NOT EXISTS peers (
		peer_id       TEXT PRIMARY KEY,
		address       TEXT,
		signing_key   BLOB,
		encrypt_key   BLOB,
		first_seen    REAL NOT NULL,
		last_seen     REAL NOT NULL,
		status        TEXT NOT NULL DEFAULT 'unknown',
		blocked       INTEGER NOT NULL DEFAULT 0,
		display_name  TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS gossip_cache (
		message_id      TEXT PRIMARY KEY,
		first_seen_at   REAL NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS config (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
}
