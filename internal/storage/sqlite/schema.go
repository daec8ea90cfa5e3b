package sqlite

// schema defines the records, sync mappings, and config tables.
//
// The primary key on sync_mappings (entity_type, local_id) is the
// uniqueness invariant the sync engine relies on: the second of two
// racing mapping inserts fails here, and nowhere else.
const schema = `
CREATE TABLE IF NOT EXISTS records (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	phase       TEXT NOT NULL DEFAULT 'requirements',
	branch      TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMP NOT NULL,
	updated_at  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_mappings (
	entity_type    TEXT NOT NULL,
	local_id       TEXT NOT NULL,
	remote_id      TEXT NOT NULL,
	remote_number  INTEGER NOT NULL,
	node_id        TEXT NOT NULL DEFAULT '',
	parent_number  INTEGER NOT NULL DEFAULT 0,
	last_synced_at TIMESTAMP NOT NULL,
	status         TEXT NOT NULL DEFAULT 'success',
	error_detail   TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (entity_type, local_id)
);

CREATE INDEX IF NOT EXISTS idx_sync_mappings_number
	ON sync_mappings(entity_type, remote_number);

CREATE TABLE IF NOT EXISTS config (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`
