package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/kgest/internal/document"
)

// csvBatchSize is the number of data rows grouped under one section.
const csvBatchSize = 20

// CSVParser handles CSV files. The first row is treated as column names and
// each data row becomes a bullet of "column: value" pairs.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*document.Document, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	out := &document.Document{
		Title:    strings.TrimSuffix(filename, ".csv"),
		Filename: filename,
	}
	if len(records) == 0 {
		return out, nil
	}

	headers := records[0]
	dataRows := records[1:]

	var b document.Builder
	for i := 0; i < len(dataRows); i += csvBatchSize {
		end := min(i+csvBatchSize, len(dataRows))
		// Row numbers are 1-based and count the header line.
		b.Heading(2, fmt.Sprintf("Rows %d-%d", i+2, end+1))
		for _, row := range dataRows[i:end] {
			b.Bullet(formatRow(headers, row))
		}
	}
	out.Markdown = b.String()
	return out, nil
}

func formatRow(headers, row []string) string {
	parts := make([]string, 0, len(row))
	for j, cell := range row {
		cell = strings.Join(strings.Fields(cell), " ")
		if j < len(headers) && headers[j] != "" {
			parts = append(parts, headers[j]+": "+cell)
		} else {
			parts = append(parts, cell)
		}
	}
	return strings.Join(parts, ", ")
}
