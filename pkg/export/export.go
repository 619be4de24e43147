// Package export renders tabular rosters as CSV or PDF documents.
package export

import (
	"fmt"
	"strings"
)

// Format identifies an output document type.
type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

// ParseFormat resolves a user supplied format, defaulting to CSV.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatPDF:
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "text/csv"
}

// Filename builds an attachment name with the format's extension.
func (f Format) Filename(base string) string {
	return base + "." + string(f)
}

// Table is a titled grid of string cells. Each row must have len(Headers) cells.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

func (t Table) validate() error {
	if len(t.Headers) == 0 {
		return fmt.Errorf("table requires at least one header")
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Headers) {
			return fmt.Errorf("row %d has %d cells, expected %d", i, len(row), len(t.Headers))
		}
	}
	return nil
}

// Render encodes the table in the requested format.
func Render(format Format, table Table) ([]byte, error) {
	if err := table.validate(); err != nil {
		return nil, err
	}
	switch format {
	case FormatCSV:
		return renderCSV(table)
	case FormatPDF:
		return renderPDF(table)
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}
