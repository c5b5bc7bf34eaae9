package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMapping() ColumnMapping {
	return ColumnMapping{
		FieldTextContent:     "Copy",
		FieldProductImageURL: "Image",
		FieldVideoFormats:    "Formats",
	}
}

func sampleRows() [][]string {
	return [][]string{
		{"Copy", "Image", "Formats"},
		{"Fresh roasted coffee, delivered weekly.", "https://cdn.example.com/coffee.png", "1080x1920"},
		{"Handmade ceramic mugs.", "", "1080x1920|1920x1080"},
	}
}

func TestParseTable(t *testing.T) {
	specs, err := ParseTable(sampleRows(), sampleMapping())
	require.NoError(t, err)
	require.Len(t, specs, 2)

	assert.Equal(t, 1, specs[0].RowIndex)
	assert.Equal(t, "Fresh roasted coffee, delivered weekly.", specs[0].TextContent)
	assert.Equal(t, "https://cdn.example.com/coffee.png", specs[0].ProductImageURL)
	assert.Equal(t, []string{"1080x1920"}, specs[0].VideoFormats)

	assert.Equal(t, 2, specs[1].RowIndex)
	assert.Empty(t, specs[1].ProductImageURL)
	assert.Equal(t, []string{"1080x1920", "1920x1080"}, specs[1].VideoFormats)
}

func TestParseTableDeterministic(t *testing.T) {
	first, err := ParseTable(sampleRows(), sampleMapping())
	require.NoError(t, err)
	second, err := ParseTable(sampleRows(), sampleMapping())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestParseTableMissingMappedColumn(t *testing.T) {
	mapping := ColumnMapping{FieldTextContent: "NoSuchColumn"}
	_, err := ParseTable(sampleRows(), mapping)
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 0, verr.Row)
	assert.Contains(t, verr.Error(), "NoSuchColumn")
}

func TestParseTableMissingMapping(t *testing.T) {
	_, err := ParseTable(sampleRows(), nil)
	require.Error(t, err)

	_, err = ParseTable(sampleRows(), ColumnMapping{FieldProductImageURL: "Image"})
	require.Error(t, err)
}

func TestParseTableEmptyTextContent(t *testing.T) {
	rows := [][]string{
		{"Copy"},
		{"First product."},
		{"   "},
	}
	_, err := ParseTable(rows, ColumnMapping{FieldTextContent: "Copy"})
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 2, verr.Row)
}

func TestParseTableShortRow(t *testing.T) {
	// A row missing trailing cells yields empty optional fields, not an error
	rows := [][]string{
		{"Copy", "Image", "Formats"},
		{"Only copy here"},
	}
	specs, err := ParseTable(rows, sampleMapping())
	require.NoError(t, err)
	assert.Empty(t, specs[0].ProductImageURL)
	assert.Nil(t, specs[0].VideoFormats)
}

func TestParseTableInvalidFormat(t *testing.T) {
	rows := [][]string{
		{"Copy", "Formats"},
		{"Some copy", "portrait"},
	}
	mapping := ColumnMapping{FieldTextContent: "Copy", FieldVideoFormats: "Formats"}
	_, err := ParseTable(rows, mapping)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "portrait")
}

func TestParseTableOverrides(t *testing.T) {
	rows := [][]string{
		{"Copy", "Provider", "Duration", "Scenes"},
		{"Some copy", "Seedance", "10", "4"},
		{"Other copy", "", "", ""},
	}
	mapping := ColumnMapping{
		FieldTextContent: "Copy",
		FieldProvider:    "Provider",
		FieldDuration:    "Duration",
		FieldSceneCount:  "Scenes",
	}

	specs, err := ParseTable(rows, mapping)
	require.NoError(t, err)

	assert.Equal(t, "seedance", specs[0].Provider)
	assert.Equal(t, 10, specs[0].DurationSec)
	assert.Equal(t, 4, specs[0].SceneCount)

	// Blank override cells leave zero values for batch defaults
	assert.Empty(t, specs[1].Provider)
	assert.Zero(t, specs[1].DurationSec)
	assert.Zero(t, specs[1].SceneCount)
}

func TestParseTableBadDuration(t *testing.T) {
	rows := [][]string{
		{"Copy", "Duration"},
		{"Some copy", "-3"},
	}
	mapping := ColumnMapping{FieldTextContent: "Copy", FieldDuration: "Duration"}
	_, err := ParseTable(rows, mapping)
	require.Error(t, err)
}

func TestParseCSVQuoting(t *testing.T) {
	input := "Copy,Image\n\"Soft, chunky knit blanket\",https://cdn.example.com/blanket.png\n\"Line one\nline two\",\n"

	rows, err := ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "Soft, chunky knit blanket", rows[1][0])
	assert.Equal(t, "Line one\nline two", rows[2][0])

	specs, err := ParseCSV(strings.NewReader(input), ColumnMapping{FieldTextContent: "Copy", FieldProductImageURL: "Image"})
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "Soft, chunky knit blanket", specs[0].TextContent)
	assert.Equal(t, "Line one\nline two", specs[1].TextContent)
}

func TestParseCSVDoubledQuotes(t *testing.T) {
	input := "Copy\n\"She said \"\"wow\"\" out loud.\"\n"
	specs, err := ParseCSV(strings.NewReader(input), ColumnMapping{FieldTextContent: "Copy"})
	require.NoError(t, err)
	assert.Equal(t, `She said "wow" out loud.`, specs[0].TextContent)
}

func TestParseFormatsDedup(t *testing.T) {
	formats, err := parseFormats("1080x1920, 1080x1920, 1920x1080")
	require.NoError(t, err)
	assert.Equal(t, []string{"1080x1920", "1920x1080"}, formats)
}

func TestParseFormatsSemicolons(t *testing.T) {
	formats, err := parseFormats("1080x1920;1920x1080")
	require.NoError(t, err)
	assert.Equal(t, []string{"1080x1920", "1920x1080"}, formats)
}
