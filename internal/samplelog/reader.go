package samplelog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"spreadmon/internal/model"
)

// ErrSourceUnavailable is returned when the sample log cannot be read at
// all. It is the only failure that crosses the aggregation boundary; a
// malformed row never does.
var ErrSourceUnavailable = errors.New("sample log unavailable")

// Layout identifies which historical log shape a row was decoded from.
type Layout int

const (
	// LayoutNamed is the current headered layout with named columns.
	LayoutNamed Layout = iota
	// LayoutPositional is the legacy headerless 9-column layout.
	LayoutPositional
)

// RawRow is one logical log row, tagged with the layout it came from.
// Named is populated only for LayoutNamed rows; Fields always holds the
// row as read. Rows are not validated here: partially populated or torn
// rows are passed through for the aggregation engine to discard.
type RawRow struct {
	Layout Layout
	Fields []string
	Named  map[string]string
}

// Get returns the named field value, or the empty string when the column
// is absent from the row.
func (r RawRow) Get(key string) string {
	return r.Named[key]
}

// Reader loads the full sample log on every call. The log is written by an
// independent collector process, so each read is a fresh full scan.
type Reader struct {
	path   string
	layout string // "auto", "named" or "positional"
}

// NewReader creates a Reader for the log at path. layout may be "named" or
// "positional" to force a layout, or "auto" (or empty) to sniff it from
// the first row.
func NewReader(path, layout string) *Reader {
	return &Reader{path: path, layout: layout}
}

// ReadAll reads the whole log and returns one RawRow per non-empty row,
// in file order. A missing or unreadable file yields ErrSourceUnavailable.
// Rows that fail CSV parsing are skipped; a torn trailing row written by a
// concurrent append comes back short and is left to the validity filter.
func (r *Reader) ReadAll() ([]RawRow, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1

	var (
		rows   []RawRow
		header []string
		first  = true
	)
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			continue
		}
		if err != nil {
			// Mid-file I/O failure: keep what was read so far. Total
			// unavailability was already ruled out by the successful open.
			break
		}
		if len(record) == 0 {
			continue
		}

		if first {
			first = false
			if r.sniffNamed(record) {
				header = record
				continue
			}
		}

		if header != nil {
			named := make(map[string]string, len(header))
			for i, col := range header {
				if i < len(record) {
					named[col] = record[i]
				}
			}
			rows = append(rows, RawRow{Layout: LayoutNamed, Fields: record, Named: named})
		} else {
			rows = append(rows, RawRow{Layout: LayoutPositional, Fields: record})
		}
	}
	return rows, nil
}

// sniffNamed decides whether the first row is a header. A forced layout
// wins; otherwise the row is a header exactly when its first field does
// not parse as a timestamp.
func (r *Reader) sniffNamed(record []string) bool {
	switch r.layout {
	case "named":
		return true
	case "positional":
		return false
	}
	_, err := model.ParseTimestamp(record[0])
	return err != nil
}
