package export

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"mercator-hq/tlsrelay/pkg/journal"
)

// CSVExporter exports journal records as CSV, one row per connection.
// Durations are written in milliseconds.
type CSVExporter struct {
	// IncludeHeader includes a header row with column names.
	IncludeHeader bool
}

// NewCSVExporter creates a new CSV exporter.
func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{IncludeHeader: includeHeader}
}

var csvHeader = []string{
	"id", "connection_id", "remote_addr",
	"started_at", "finished_at", "recorded_at",
	"final_state", "class", "upstream_status", "status_code", "bytes_written", "head_lines",
	"handshake_ms", "read_ms", "dispatch_ms", "write_ms",
	"error",
}

// Export writes records to w.
func (e *CSVExporter) Export(ctx context.Context, records []*journal.Record, w io.Writer) error {
	writer := csv.NewWriter(w)

	if e.IncludeHeader {
		if err := writer.Write(csvHeader); err != nil {
			return journal.NewExportError("csv", len(records), err)
		}
	}

	for i, record := range records {
		if err := ctx.Err(); err != nil {
			return journal.NewExportError("csv", i, err)
		}
		if err := writer.Write(recordToRow(record)); err != nil {
			return journal.NewExportError("csv", i, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return journal.NewExportError("csv", len(records), err)
	}
	return nil
}

func recordToRow(r *journal.Record) []string {
	formatTime := func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format(time.RFC3339Nano)
	}
	ms := func(d time.Duration) string {
		return strconv.FormatFloat(float64(d)/float64(time.Millisecond), 'f', 3, 64)
	}

	return []string{
		r.ID,
		r.ConnectionID,
		r.RemoteAddr,
		formatTime(r.StartedAt),
		formatTime(r.FinishedAt),
		formatTime(r.RecordedAt),
		r.FinalState,
		r.Class,
		strconv.Itoa(r.UpstreamStatus),
		strconv.Itoa(r.StatusCode),
		strconv.Itoa(r.BytesWritten),
		strconv.Itoa(r.HeadLines),
		ms(r.HandshakeDuration),
		ms(r.ReadDuration),
		ms(r.DispatchDuration),
		ms(r.WriteDuration),
		r.Error,
	}
}
