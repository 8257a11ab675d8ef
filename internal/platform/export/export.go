// Package export writes tabular response data to CSV or XLSX and archives the
// files to S3.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Table is a header plus string rows, the shape every sink consumes.
type Table struct {
	Header []string
	Rows   [][]string
}

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// FileName builds e.g. "survey_responses_20260301_20260307.csv".
func (f Format) FileName(from, to time.Time) string {
	return fmt.Sprintf("survey_responses_%s_%s.%s", from.Format("20060102"), to.Format("20060102"), f)
}

// Write renders t in format f.
func Write(w io.Writer, f Format, t Table) error {
	switch f {
	case FormatXLSX:
		return WriteXLSX(w, "Responses", t)
	default:
		return WriteCSV(w, t)
	}
}
