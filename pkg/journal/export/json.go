package export

import (
	"context"
	"encoding/json"
	"io"

	"mercator-hq/tlsrelay/pkg/journal"
)

// JSONExporter exports journal records as a JSON array.
type JSONExporter struct {
	// Pretty enables pretty-printing with indentation.
	Pretty bool
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(pretty bool) *JSONExporter {
	return &JSONExporter{Pretty: pretty}
}

// Export writes records to w. An empty input produces "[]".
func (e *JSONExporter) Export(ctx context.Context, records []*journal.Record, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return journal.NewExportError("json", len(records), err)
	}
	if records == nil {
		records = []*journal.Record{}
	}

	enc := json.NewEncoder(w)
	if e.Pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(records); err != nil {
		return journal.NewExportError("json", len(records), err)
	}
	return nil
}
