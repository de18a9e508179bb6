package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	domain "github.com/galleryprints/catalog-api/internal/domain"
)

// ErrEmptyCSV reports a CSV payload with no data rows. It is batch-fatal.
var ErrEmptyCSV = errors.New("ingest: csv contains no data rows")

// RowError names the exact row and field an operator has to fix. Row numbers
// are 1-indexed over data rows, matching what a spreadsheet shows below the
// header.
type RowError struct {
	Row   int
	Field string
	Cause string
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: field %q: %s", e.Row, e.Field, e.Cause)
}

// ValidationError aggregates every invalid row in a batch. Validation is
// all-or-nothing: one bad row rejects the whole upload before any row is
// processed.
type ValidationError struct {
	Rows []RowError
}

func (e *ValidationError) Error() string {
	if len(e.Rows) == 1 {
		return "ingest: invalid csv: " + e.Rows[0].Error()
	}
	parts := make([]string, 0, len(e.Rows))
	for _, row := range e.Rows {
		parts = append(parts, row.Error())
	}
	return fmt.Sprintf("ingest: invalid csv (%d rows): %s", len(e.Rows), strings.Join(parts, "; "))
}

// csvColumns maps accepted header names to NormalizedRow fields. Headers are
// matched case-insensitively with surrounding whitespace ignored.
var csvColumns = map[string]struct{}{
	"filename":           {},
	"title":              {},
	"artist_name":        {},
	"work_type":          {},
	"dimensions_inches":  {},
	"retailer_exclusive": {},
	"source_type":        {},
	"source_id":          {},
	"source_label":       {},
	"gp_sku":             {},
	"fetch_url":          {},
}

// ParseCSV decodes and validates a full CSV payload. It returns either every
// row or a ValidationError describing every defect; it never returns a
// partial batch.
func ParseCSV(data []byte) ([]domain.NormalizedRow, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptyCSV
	}
	if err != nil {
		return nil, fmt.Errorf("ingest: csv header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		if _, known := csvColumns[name]; known {
			columns[name] = i
		}
	}
	if _, ok := columns["title"]; !ok {
		return nil, fmt.Errorf("ingest: csv header is missing required column %q", "title")
	}

	var (
		rows     []domain.NormalizedRow
		rowErrs  []RowError
		rowIndex int
	)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ingest: csv parse: %w", err)
		}
		rowIndex++

		cell := func(name string) string {
			i, ok := columns[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		row := domain.NormalizedRow{
			Filename:          cell("filename"),
			Title:             cell("title"),
			ArtistName:        cell("artist_name"),
			DimensionsInches:  cell("dimensions_inches"),
			RetailerExclusive: cell("retailer_exclusive"),
			SourceID:          cell("source_id"),
			SourceLabel:       cell("source_label"),
			GPSku:             cell("gp_sku"),
			FetchURL:          cell("fetch_url"),
		}

		if row.Title == "" {
			rowErrs = append(rowErrs, RowError{Row: rowIndex, Field: "title", Cause: "required field is missing"})
		}
		if row.Filename == "" && row.FetchURL == "" {
			rowErrs = append(rowErrs, RowError{Row: rowIndex, Field: "filename", Cause: "either filename or fetch_url is required"})
		}

		rawWorkType := cell("work_type")
		if rawWorkType == "" {
			rowErrs = append(rowErrs, RowError{Row: rowIndex, Field: "work_type", Cause: "required field is missing"})
		} else if workType, ok := domain.ParseWorkType(rawWorkType); ok {
			row.WorkType = workType
		} else {
			rowErrs = append(rowErrs, RowError{Row: rowIndex, Field: "work_type", Cause: fmt.Sprintf("unknown value %q", rawWorkType)})
		}

		if rawSource := cell("source_type"); rawSource != "" {
			if sourceType, ok := domain.ParseSourceType(rawSource); ok {
				row.SourceType = sourceType
			} else {
				rowErrs = append(rowErrs, RowError{Row: rowIndex, Field: "source_type", Cause: fmt.Sprintf("unknown value %q", rawSource)})
			}
		} else {
			row.SourceType = domain.SourceCSV
		}

		rows = append(rows, row)
	}

	if len(rowErrs) > 0 {
		return nil, &ValidationError{Rows: rowErrs}
	}
	if len(rows) == 0 {
		return nil, ErrEmptyCSV
	}
	return rows, nil
}
