package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"mercator-hq/tlsrelay/pkg/journal"
)

// SQLiteConfig contains configuration for the SQLite storage backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 4
	MaxOpenConns int

	// WALMode enables Write-Ahead Logging.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/journal.db",
		MaxOpenConns: 4,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStorage implements journal.Storage on SQLite via the pure-Go
// modernc.org/sqlite driver.
type SQLiteStorage struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStorage opens (creating if needed) the database at config.Path
// and initializes the schema.
func NewSQLiteStorage(config *SQLiteConfig, logger *slog.Logger) (*SQLiteStorage, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "journal.storage.sqlite")

	if dir := filepath.Dir(config.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, journal.NewStorageError("sqlite", "mkdir", err)
		}
	}

	db, err := sql.Open("sqlite", config.Path)
	if err != nil {
		return nil, journal.NewStorageError("sqlite", "open", err)
	}
	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}

	s := &SQLiteStorage{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite journal initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
	)

	return s, nil
}

// initialize sets pragmas, creates the schema and checks its version.
func (s *SQLiteStorage) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return journal.NewStorageError("sqlite", "enable_wal", err)
		}
	}

	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
		return journal.NewStorageError("sqlite", "set_busy_timeout", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return journal.NewStorageError("sqlite", "create_schema", err)
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return journal.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version sql.NullInt64
	if err := s.db.QueryRow(GetSchemaVersion).Scan(&version); err != nil {
		return journal.NewStorageError("sqlite", "get_schema_version", err)
	}
	if !version.Valid || version.Int64 != SchemaVersion {
		return journal.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version.Int64))
	}

	return nil
}

// Store inserts record.
func (s *SQLiteStorage) Store(ctx context.Context, record *journal.Record) error {
	var errorVal any
	if record.Error != "" {
		errorVal = record.Error
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO connections (`+selectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.ConnectionID, record.RemoteAddr,
		record.StartedAt.UnixNano(), record.FinishedAt.UnixNano(), record.RecordedAt.UnixNano(),
		record.FinalState, record.Class, record.UpstreamStatus, record.StatusCode, record.BytesWritten, record.HeadLines,
		int64(record.HandshakeDuration), int64(record.ReadDuration), int64(record.DispatchDuration), int64(record.WriteDuration),
		errorVal,
	)
	if err != nil {
		return journal.NewStorageError("sqlite", "store", err)
	}
	return nil
}

// Query returns the records matching q.
func (s *SQLiteStorage) Query(ctx context.Context, q *journal.Query) ([]*journal.Record, error) {
	where, args := buildWhereClause(q)

	sqlQuery := "SELECT " + selectColumns + " FROM connections"
	if where != "" {
		sqlQuery += " WHERE " + where
	}

	order := "DESC"
	if q.SortOrder == "asc" {
		order = "ASC"
	}
	sqlQuery += " ORDER BY started_at " + order

	// SQLite requires a LIMIT before OFFSET; -1 means no limit.
	limit := -1
	if q.Limit > 0 {
		limit = q.Limit
	}
	sqlQuery += " LIMIT ? OFFSET ?"
	args = append(args, limit, q.Offset)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, journal.NewStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	records := []*journal.Record{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, journal.NewStorageError("sqlite", "scan", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, journal.NewStorageError("sqlite", "query", err)
	}

	return records, nil
}

// Count returns the number of records matching q.
func (s *SQLiteStorage) Count(ctx context.Context, q *journal.Query) (int64, error) {
	where, args := buildWhereClause(q)

	sqlQuery := "SELECT COUNT(*) FROM connections"
	if where != "" {
		sqlQuery += " WHERE " + where
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, sqlQuery, args...).Scan(&count); err != nil {
		return 0, journal.NewStorageError("sqlite", "count", err)
	}
	return count, nil
}

// Delete removes the records matching q.
func (s *SQLiteStorage) Delete(ctx context.Context, q *journal.Query) (int64, error) {
	where, args := buildWhereClause(q)

	sqlQuery := "DELETE FROM connections"
	if where != "" {
		sqlQuery += " WHERE " + where
	}

	result, err := s.db.ExecContext(ctx, sqlQuery, args...)
	if err != nil {
		return 0, journal.NewStorageError("sqlite", "delete", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, journal.NewStorageError("sqlite", "delete", err)
	}
	return count, nil
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	if err := s.db.Close(); err != nil {
		return journal.NewStorageError("sqlite", "close", err)
	}
	s.logger.Info("SQLite journal closed")
	return nil
}

// buildWhereClause builds a WHERE clause (without the keyword) and its
// arguments from q.
func buildWhereClause(q *journal.Query) (string, []any) {
	var conditions []string
	var args []any

	if q.StartTime != nil {
		conditions = append(conditions, "started_at >= ?")
		args = append(args, q.StartTime.UnixNano())
	}
	if q.EndTime != nil {
		conditions = append(conditions, "started_at <= ?")
		args = append(args, q.EndTime.UnixNano())
	}
	if q.Class != "" {
		conditions = append(conditions, "class = ?")
		args = append(args, q.Class)
	}
	if q.RemoteAddr != "" {
		conditions = append(conditions, "remote_addr = ?")
		args = append(args, q.RemoteAddr)
	}

	switch q.Status {
	case "success":
		conditions = append(conditions, "error IS NULL")
	case "error":
		conditions = append(conditions, "error IS NOT NULL")
	}

	return strings.Join(conditions, " AND "), args
}

func scanRecord(rows *sql.Rows) (*journal.Record, error) {
	var (
		record                               journal.Record
		startedAt, finishedAt, recordedAt    int64
		handshakeNs, readNs, dispatchNs, wNs int64
		errorVal                             sql.NullString
	)

	err := rows.Scan(
		&record.ID, &record.ConnectionID, &record.RemoteAddr,
		&startedAt, &finishedAt, &recordedAt,
		&record.FinalState, &record.Class, &record.UpstreamStatus, &record.StatusCode, &record.BytesWritten, &record.HeadLines,
		&handshakeNs, &readNs, &dispatchNs, &wNs,
		&errorVal,
	)
	if err != nil {
		return nil, err
	}

	record.StartedAt = time.Unix(0, startedAt)
	record.FinishedAt = time.Unix(0, finishedAt)
	record.RecordedAt = time.Unix(0, recordedAt)
	record.HandshakeDuration = time.Duration(handshakeNs)
	record.ReadDuration = time.Duration(readNs)
	record.DispatchDuration = time.Duration(dispatchNs)
	record.WriteDuration = time.Duration(wNs)
	if errorVal.Valid {
		record.Error = errorVal.String
	}

	return &record, nil
}
