package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"invoicelens/internal/domain"
	"invoicelens/internal/ingest"
)

// XLSXContentType is the Content-Type of XLSX exports.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const sheetName = "Invoices"

// WriteXLSX writes a workbook with a single Invoices sheet.
// Amount columns are written as numbers so spreadsheet formulas work on them.
func WriteXLSX(w io.Writer, rows []domain.ExportRow, detailed bool) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("export.WriteXLSX rename sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return fmt.Errorf("export.WriteXLSX stream: %w", err)
	}

	header := Columns(detailed)
	if err := sw.SetRow("A1", toCells(header)); err != nil {
		return fmt.Errorf("export.WriteXLSX header: %w", err)
	}

	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("export.WriteXLSX coordinates: %w", err)
		}
		if err := sw.SetRow(cell, xlsxRow(&rows[i], detailed)); err != nil {
			return fmt.Errorf("export.WriteXLSX row %d: %w", i, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("export.WriteXLSX flush: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("export.WriteXLSX write: %w", err)
	}
	return nil
}

// xlsxRow writes amounts, confidence and counts as numbers and everything else as text.
func xlsxRow(r *domain.ExportRow, detailed bool) []interface{} {
	cells := toCells(Row(r, detailed))
	inv := &r.Invoice
	cells[5] = amountCell(inv.Subtotal)
	cells[6] = amountCell(inv.Tax)
	cells[7] = amountCell(inv.Total)
	if detailed {
		n := len(basicColumns)
		if inv.Confidence != nil {
			cells[n] = *inv.Confidence
		}
		cells[n+2] = r.LineItems
		cells[n+3] = r.Extractions
		cells[n+4] = r.Anomalies
	}
	return cells
}

func amountCell(a ingest.Amount) interface{} {
	if !a.Valid() {
		return nil
	}
	return a.Float64()
}

func toCells(values []string) []interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}
