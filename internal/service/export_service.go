package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"invoicelens/internal/domain"
	"invoicelens/internal/export"
	"invoicelens/internal/port"
)

// ExportFormat is the file format of an invoice export.
type ExportFormat string

const (
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatXLSX ExportFormat = "xlsx"
)

// ParseExportFormat parses a format name, case-insensitively.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(s)) {
	case ExportFormatCSV:
		return ExportFormatCSV, nil
	case ExportFormatXLSX:
		return ExportFormatXLSX, nil
	}
	return "", fmt.Errorf("%w: unknown export format %q", domain.ErrInvalidFilter, s)
}

// ContentType returns the MIME type of the format.
func (f ExportFormat) ContentType() string {
	if f == ExportFormatXLSX {
		return export.XLSXContentType
	}
	return export.CSVContentType
}

// ExportRequest selects what an export contains.
type ExportRequest struct {
	Format   ExportFormat
	Filters  domain.InvoiceFilters
	Detailed bool
}

// ExportService defines the invoice export contract.
type ExportService interface {
	// Export writes every invoice matching the request to w and returns the number written.
	Export(ctx context.Context, w io.Writer, req ExportRequest) (int, error)
}

type exportService struct {
	invoiceRepo port.InvoiceRepository
}

// NewExportService creates a new ExportService implementation.
func NewExportService(invoiceRepo port.InvoiceRepository) ExportService {
	return &exportService{invoiceRepo: invoiceRepo}
}

func (s *exportService) Export(ctx context.Context, w io.Writer, req ExportRequest) (int, error) {
	rows, err := s.invoiceRepo.ListForExport(ctx, req.Filters)
	if err != nil {
		return 0, err
	}

	switch req.Format {
	case ExportFormatCSV:
		err = export.WriteCSV(w, rows, req.Detailed)
	case ExportFormatXLSX:
		err = export.WriteXLSX(w, rows, req.Detailed)
	default:
		return 0, fmt.Errorf("%w: unknown export format %q", domain.ErrInvalidFilter, req.Format)
	}
	if err != nil {
		log.Printf("exportService.Export: writing %s export: %v", req.Format, err)
		return 0, err
	}

	log.Printf("exportService.Export: wrote %d invoices as %s (detailed=%t)", len(rows), req.Format, req.Detailed)
	return len(rows), nil
}
