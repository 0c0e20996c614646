package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/veridoc/internal/document"
)

// CSVParser handles CSV files. Rows are grouped into batches and rendered
// as "Header: value" lines so a row batch reads as one verifiable block.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*document.Parsed, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	parsed := &document.Parsed{
		Filename:  filename,
		PageCount: 1,
	}
	if len(records) == 0 {
		return parsed, nil
	}

	// First row is headers.
	headers := records[0]
	dataRows := records[1:]

	const batchSize = 20
	for i := 0; i < len(dataRows); i += batchSize {
		end := i + batchSize
		if end > len(dataRows) {
			end = len(dataRows)
		}

		var text strings.Builder
		text.WriteString("Headers: " + strings.Join(headers, ", ") + "\n\n")
		for _, row := range dataRows[i:end] {
			for j, cell := range row {
				if j < len(headers) {
					text.WriteString(headers[j] + ": " + cell)
				} else {
					text.WriteString(cell)
				}
				if j < len(row)-1 {
					text.WriteString(", ")
				}
			}
			text.WriteString("\n")
		}

		parsed.Items = append(parsed.Items, itemOnPage(strings.TrimSpace(text.String()), 0))
	}

	return parsed, nil
}
