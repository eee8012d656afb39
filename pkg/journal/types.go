package journal

import (
	"context"
	"io"
	"time"
)

// Record is the audit entry for one relayed connection. It holds metadata
// only; request and response bodies are never journaled.
type Record struct {
	// Identity
	ID           string `json:"id"`            // UUID v4
	ConnectionID string `json:"connection_id"` // From the relay handler
	RemoteAddr   string `json:"remote_addr"`

	// Timestamps
	StartedAt  time.Time `json:"started_at"`  // Connection accepted
	FinishedAt time.Time `json:"finished_at"` // Connection closed
	RecordedAt time.Time `json:"recorded_at"` // Record written

	// Result
	FinalState     string `json:"final_state"`     // Last state before close
	Class          string `json:"class"`           // success, upstream_error, ...
	UpstreamStatus int    `json:"upstream_status"` // 0 when the upstream was not reached
	StatusCode     int    `json:"status_code"`     // 0 when nothing was written
	BytesWritten   int    `json:"bytes_written"`
	HeadLines      int    `json:"head_lines"`

	// Stage timings
	HandshakeDuration time.Duration `json:"handshake_duration"`
	ReadDuration      time.Duration `json:"read_duration"`
	DispatchDuration  time.Duration `json:"dispatch_duration"`
	WriteDuration     time.Duration `json:"write_duration"`

	// Error text, empty on success
	Error string `json:"error,omitempty"`
}

// Duration returns the total connection lifetime.
func (r *Record) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Query defines filter parameters for journal records.
type Query struct {
	// Time range on StartedAt
	StartTime *time.Time `json:"start_time,omitempty"` // Inclusive
	EndTime   *time.Time `json:"end_time,omitempty"`   // Inclusive

	// Filters
	Class      string `json:"class,omitempty"`
	RemoteAddr string `json:"remote_addr,omitempty"`

	// Status is "success" or "error".
	Status string `json:"status,omitempty"`

	// Pagination
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`

	// SortOrder on StartedAt: "asc" or "desc" (default).
	SortOrder string `json:"sort_order,omitempty"`
}

// Storage defines the interface for journal storage backends.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Store persists a record.
	Store(ctx context.Context, record *Record) error

	// Query returns records matching q, newest first unless q.SortOrder is
	// "asc". Returns an empty slice if nothing matches.
	Query(ctx context.Context, q *Query) ([]*Record, error)

	// Count returns the number of records matching q.
	Count(ctx context.Context, q *Query) (int64, error)

	// Delete removes records matching q and returns how many were removed.
	// Used for retention enforcement.
	Delete(ctx context.Context, q *Query) (int64, error)

	// Close releases any resources held by the backend.
	Close() error
}

// Exporter writes records in some output format.
type Exporter interface {
	Export(ctx context.Context, records []*Record, w io.Writer) error
}
