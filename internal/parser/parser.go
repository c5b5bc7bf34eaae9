package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Logical field names. A ColumnMapping binds these to whatever headers the
// uploaded table actually uses.
const (
	FieldTextContent     = "text_content"
	FieldProductImageURL = "product_image_url"
	FieldImageStyle      = "image_style"
	FieldVideoFormats    = "video_formats"
	FieldProvider        = "animation_provider"
	FieldDuration        = "duration_sec"
	FieldSceneCount      = "scene_count"
)

// ColumnMapping maps logical field names to header names in the source table.
// Only text_content is mandatory; absent optional fields fall back to batch
// defaults downstream.
type ColumnMapping map[string]string

// RowSpec is one parsed row — the full recipe for a single marketing video.
// Zero values on the optional fields mean "use the batch default".
type RowSpec struct {
	RowIndex        int // 1-based position in the source table, excluding the header
	TextContent     string
	ProductImageURL string
	ImageStyle      string
	VideoFormats    []string
	Provider        string
	DurationSec     int
	SceneCount      int
}

// ValidationError reports a structural problem in the uploaded table. Row 0
// means the header itself is at fault.
type ValidationError struct {
	Row     int
	Column  string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Row == 0 {
		return fmt.Sprintf("invalid table: %s", e.Message)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// ParseTable converts raw rows into RowSpecs. The first row must be a header.
// Parsing is pure and deterministic: the same input always yields the same
// specs, so a re-upload of an unchanged table produces an identical batch.
func ParseTable(rows [][]string, mapping ColumnMapping) ([]RowSpec, error) {
	if len(rows) == 0 {
		return nil, &ValidationError{Message: "table is empty"}
	}
	if mapping == nil || mapping[FieldTextContent] == "" {
		return nil, &ValidationError{Message: "mapping must bind text_content to a column"}
	}

	header := rows[0]
	colIndex := make(map[string]int, len(header))
	for i, name := range header {
		colIndex[strings.TrimSpace(name)] = i
	}

	// Resolve every mapped field to a column index up front
	fieldCol := make(map[string]int, len(mapping))
	for field, headerName := range mapping {
		idx, ok := colIndex[strings.TrimSpace(headerName)]
		if !ok {
			return nil, &ValidationError{
				Column:  headerName,
				Message: fmt.Sprintf("mapped column %q not found in header", headerName),
			}
		}
		fieldCol[field] = idx
	}

	specs := make([]RowSpec, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rowNum := i + 1

		cell := func(field string) string {
			idx, ok := fieldCol[field]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}

		text := cell(FieldTextContent)
		if text == "" {
			return nil, &ValidationError{
				Row:     rowNum,
				Column:  mapping[FieldTextContent],
				Message: "text content is empty",
			}
		}

		spec := RowSpec{
			RowIndex:        rowNum,
			TextContent:     text,
			ProductImageURL: cell(FieldProductImageURL),
			ImageStyle:      cell(FieldImageStyle),
			Provider:        strings.ToLower(cell(FieldProvider)),
		}

		if formats := cell(FieldVideoFormats); formats != "" {
			parsed, err := parseFormats(formats)
			if err != nil {
				return nil, &ValidationError{Row: rowNum, Column: mapping[FieldVideoFormats], Message: err.Error()}
			}
			spec.VideoFormats = parsed
		}

		if dur := cell(FieldDuration); dur != "" {
			n, err := strconv.Atoi(dur)
			if err != nil || n <= 0 {
				return nil, &ValidationError{Row: rowNum, Column: mapping[FieldDuration], Message: fmt.Sprintf("invalid duration %q", dur)}
			}
			spec.DurationSec = n
		}

		if sc := cell(FieldSceneCount); sc != "" {
			n, err := strconv.Atoi(sc)
			if err != nil || n <= 0 {
				return nil, &ValidationError{Row: rowNum, Column: mapping[FieldSceneCount], Message: fmt.Sprintf("invalid scene count %q", sc)}
			}
			spec.SceneCount = n
		}

		specs = append(specs, spec)
	}

	if len(specs) == 0 {
		return nil, &ValidationError{Message: "table has a header but no data rows"}
	}

	return specs, nil
}

// parseFormats splits a formats cell ("1080x1920;1920x1080", comma or pipe
// separated) and validates each entry as WxH.
func parseFormats(raw string) ([]string, error) {
	raw = strings.ReplaceAll(raw, ",", "|")
	raw = strings.ReplaceAll(raw, ";", "|")
	parts := strings.Split(raw, "|")

	var formats []string
	seen := make(map[string]bool)
	for _, p := range parts {
		f := strings.TrimSpace(p)
		if f == "" {
			continue
		}
		w, h, ok := splitFormat(f)
		if !ok || w <= 0 || h <= 0 {
			return nil, fmt.Errorf("invalid video format %q (expected WIDTHxHEIGHT)", f)
		}
		norm := fmt.Sprintf("%dx%d", w, h)
		if !seen[norm] {
			seen[norm] = true
			formats = append(formats, norm)
		}
	}
	if len(formats) == 0 {
		return nil, fmt.Errorf("no valid video formats")
	}
	return formats, nil
}

func splitFormat(f string) (int, int, bool) {
	parts := strings.SplitN(strings.ToLower(f), "x", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	w, err1 := strconv.Atoi(parts[0])
	h, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return w, h, true
}

// ParseCSV reads an uploaded CSV stream and parses it like ParseTable. Quoted
// cells and embedded newlines follow RFC 4180.
func ParseCSV(r io.Reader, mapping ColumnMapping) ([]RowSpec, error) {
	rows, err := ReadCSV(r)
	if err != nil {
		return nil, err
	}
	return ParseTable(rows, mapping)
}

// ReadCSV decodes a CSV stream into the raw cell grid.
func ReadCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // ragged rows are handled per-cell in ParseTable
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	return rows, nil
}
