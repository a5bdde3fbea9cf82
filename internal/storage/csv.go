package storage

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/IshaanNene/wxscrape/internal/types"
)

// CSVExporter writes records as CSV rows with a UTF-8 BOM so spreadsheet
// applications detect the encoding of Chinese text.
type CSVExporter struct{}

// NewCSVExporter creates a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

func (e *CSVExporter) ContentType() string { return "text/csv; charset=utf-8" }

func (e *CSVExporter) Extension() string { return "csv" }

func (e *CSVExporter) Export(records []types.ArticleRecord) (*bytes.Buffer, error) {
	buf := new(bytes.Buffer)
	buf.WriteString("\ufeff")

	w := csv.NewWriter(buf)
	if err := w.Write(types.Columns()); err != nil {
		return nil, &types.ExportError{Format: "csv", Err: fmt.Errorf("write CSV header: %w", err)}
	}
	for _, rec := range records {
		if err := w.Write(rec.Row()); err != nil {
			return nil, &types.ExportError{Format: "csv", Err: fmt.Errorf("write CSV row: %w", err)}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, &types.ExportError{Format: "csv", Err: err}
	}
	return buf, nil
}
