package export

import (
	"fmt"
	"strings"

	"mercator-hq/tlsrelay/pkg/journal"
)

// Formats lists the supported export formats.
var Formats = []string{"json", "csv"}

// New returns the exporter for format. JSON output is indented and CSV
// output carries a header row.
func New(format string) (journal.Exporter, error) {
	switch strings.ToLower(format) {
	case "json":
		return NewJSONExporter(true), nil
	case "csv":
		return NewCSVExporter(true), nil
	default:
		return nil, fmt.Errorf("unsupported export format %q (want one of %s)", format, strings.Join(Formats, ", "))
	}
}

var (
	_ journal.Exporter = (*JSONExporter)(nil)
	_ journal.Exporter = (*CSVExporter)(nil)
)
