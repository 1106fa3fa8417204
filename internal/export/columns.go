// Package export renders invoice listings as CSV and XLSX files.
package export

import (
	"fmt"
	"strconv"
	"time"

	"invoicelens/internal/domain"
	"invoicelens/internal/ingest"
)

// basicColumns are written for every export.
var basicColumns = []string{
	"ID",
	"Filename",
	"Vendor",
	"Invoice No",
	"Date",
	"Subtotal",
	"Tax",
	"Total",
	"Currency",
	"Status",
	"Created At",
}

// detailColumns are appended when a detailed export is requested.
var detailColumns = []string{
	"Confidence",
	"Flagged",
	"Line Items",
	"Extractions",
	"Anomalies",
}

// Columns returns the header row for a basic or detailed export.
func Columns(detailed bool) []string {
	cols := append([]string{}, basicColumns...)
	if detailed {
		cols = append(cols, detailColumns...)
	}
	return cols
}

// Row converts an export row to its cell values, matching Columns(detailed).
func Row(r *domain.ExportRow, detailed bool) []string {
	inv := &r.Invoice
	row := []string{
		inv.ID.String(),
		inv.Filename,
		inv.Vendor,
		inv.InvoiceNo,
		inv.InvoiceDate.String(),
		formatAmount(inv.Subtotal),
		formatAmount(inv.Tax),
		formatAmount(inv.Total),
		inv.Currency,
		string(inv.Status),
		inv.CreatedAt.UTC().Format(time.RFC3339),
	}
	if !detailed {
		return row
	}
	return append(row,
		formatConfidence(inv.Confidence),
		formatBool(inv.Flagged),
		strconv.Itoa(r.LineItems),
		strconv.Itoa(r.Extractions),
		strconv.Itoa(r.Anomalies),
	)
}

func formatAmount(a ingest.Amount) string {
	if !a.Valid() {
		return ""
	}
	return a.String()
}

func formatConfidence(c *float64) string {
	if c == nil {
		return ""
	}
	return strconv.FormatFloat(*c, 'f', 4, 64)
}

func formatBool(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

// BuildFilename returns the download filename: invoices_export_YYYYMMDD_HHMMSS.<ext>.
func BuildFilename(ext string, at time.Time) string {
	return fmt.Sprintf("invoices_export_%s.%s", at.UTC().Format("20060102_150405"), ext)
}
