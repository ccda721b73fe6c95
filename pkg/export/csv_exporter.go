package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Table is a column-ordered tabular export.
type Table struct {
	Columns []string
	Rows    [][]string
}

// CSVExporter renders tables as RFC 4180 CSV.
type CSVExporter struct {
	comma rune
}

// NewCSVExporter builds a comma separated exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{comma: ','}
}

// RenderTable writes the header row followed by every data row. Rows shorter
// than the header are padded; longer rows are rejected.
func (e *CSVExporter) RenderTable(table Table) ([]byte, error) {
	if len(table.Columns) == 0 {
		return nil, fmt.Errorf("csv requires at least one column")
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	writer.Comma = e.comma
	if err := writer.Write(table.Columns); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	record := make([]string, len(table.Columns))
	for i, row := range table.Rows {
		if len(row) > len(table.Columns) {
			return nil, fmt.Errorf("row %d has %d fields, expected at most %d", i, len(row), len(table.Columns))
		}
		n := copy(record, row)
		for j := n; j < len(record); j++ {
			record[j] = ""
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write csv row %d: %w", i, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
