package storage

import (
	"bytes"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/IshaanNene/wxscrape/internal/types"
)

// XLSXContentType is the MIME type of an Office Open XML spreadsheet.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const defaultSheet = "Sheet1"

// XLSXExporter writes records to a single-sheet workbook.
type XLSXExporter struct {
	sheet string
}

// NewXLSXExporter creates an exporter writing to the named sheet.
func NewXLSXExporter(sheet string) *XLSXExporter {
	if sheet == "" {
		sheet = defaultSheet
	}
	return &XLSXExporter{sheet: sheet}
}

func (e *XLSXExporter) ContentType() string { return XLSXContentType }

func (e *XLSXExporter) Extension() string { return "xlsx" }

// Export builds the workbook in memory. Failures are reported as *types.ExportError.
func (e *XLSXExporter) Export(records []types.ArticleRecord) (*bytes.Buffer, error) {
	buf, err := e.export(records)
	if err != nil {
		return nil, &types.ExportError{Format: "xlsx", Err: err}
	}
	return buf, nil
}

func (e *XLSXExporter) export(records []types.ArticleRecord) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	if e.sheet != defaultSheet {
		if err := f.SetSheetName(defaultSheet, e.sheet); err != nil {
			return nil, fmt.Errorf("rename sheet: %w", err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}

	sw, err := f.NewStreamWriter(e.sheet)
	if err != nil {
		return nil, fmt.Errorf("open stream writer: %w", err)
	}
	// Title, Summary, Link, Source
	for col, width := range []float64{40, 80, 50, 20} {
		if err := sw.SetColWidth(col+1, col+1, width); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}

	if err := sw.SetRow("A1", toCells(types.Columns()), excelize.RowOpts{StyleID: headerStyle}); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for i, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := sw.SetRow(cell, toCells(rec.Row())); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return nil, fmt.Errorf("flush sheet: %w", err)
	}

	return f.WriteToBuffer()
}

// ReadXLSX parses a workbook produced by XLSXExporter back into records.
// The first sheet is read and its header row must match types.Columns.
func ReadXLSX(r io.Reader) ([]types.ArticleRecord, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q has no header row", sheets[0])
	}
	if err := checkHeader(rows[0]); err != nil {
		return nil, err
	}

	records := make([]types.ArticleRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		records = append(records, types.RecordFromRow(row))
	}
	return records, nil
}

func checkHeader(header []string) error {
	cols := types.Columns()
	if len(header) != len(cols) {
		return fmt.Errorf("unexpected header %v, want %v", header, cols)
	}
	for i := range cols {
		if header[i] != cols[i] {
			return fmt.Errorf("unexpected header %v, want %v", header, cols)
		}
	}
	return nil
}

func toCells(values []string) []interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}
