package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema creates the journal tables. Times and durations are stored as
// integer nanoseconds.
const Schema = `
CREATE TABLE IF NOT EXISTS connections (
    id TEXT PRIMARY KEY,
    connection_id TEXT NOT NULL,
    remote_addr TEXT NOT NULL,

    started_at INTEGER NOT NULL,
    finished_at INTEGER NOT NULL,
    recorded_at INTEGER NOT NULL,

    final_state TEXT NOT NULL,
    class TEXT NOT NULL,
    upstream_status INTEGER NOT NULL DEFAULT 0,
    status_code INTEGER NOT NULL DEFAULT 0,
    bytes_written INTEGER NOT NULL DEFAULT 0,
    head_lines INTEGER NOT NULL DEFAULT 0,

    handshake_ns INTEGER NOT NULL DEFAULT 0,
    read_ns INTEGER NOT NULL DEFAULT 0,
    dispatch_ns INTEGER NOT NULL DEFAULT 0,
    write_ns INTEGER NOT NULL DEFAULT 0,

    error TEXT
);

CREATE INDEX IF NOT EXISTS idx_connections_started_at ON connections(started_at);
CREATE INDEX IF NOT EXISTS idx_connections_class ON connections(class);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);
`

// InsertSchemaVersion records the schema version if absent.
const InsertSchemaVersion = `INSERT OR IGNORE INTO schema_version (version) VALUES (?)`

// GetSchemaVersion reads the highest recorded schema version.
const GetSchemaVersion = `SELECT MAX(version) FROM schema_version`

const selectColumns = `id, connection_id, remote_addr,
    started_at, finished_at, recorded_at,
    final_state, class, upstream_status, status_code, bytes_written, head_lines,
    handshake_ns, read_ns, dispatch_ns, write_ns,
    error`
