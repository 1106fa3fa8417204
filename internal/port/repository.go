package port

import (
	"context"
	"time"

	"github.com/google/uuid"

	"invoicelens/internal/domain"
)

// NormalizedInvoice is everything written when an invoice finishes processing.
type NormalizedInvoice struct {
	Invoice   *domain.Invoice
	LineItems []domain.LineItem
	Anomalies []domain.Anomaly
}

// InvoiceRepository defines the contract for invoice persistence.
type InvoiceRepository interface {
	Create(ctx context.Context, inv *domain.Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error)
	List(ctx context.Context, filters domain.InvoiceFilters, offset, limit int) ([]domain.Invoice, int, error)
	UpdateStatus(ctx context.Context, inv *domain.Invoice) error
	// SaveNormalized replaces the invoice fields, line items and anomalies in one transaction.
	SaveNormalized(ctx context.Context, n NormalizedInvoice) error
	ListLineItems(ctx context.Context, invoiceID uuid.UUID) ([]domain.LineItem, error)
	ListAnomalies(ctx context.Context, invoiceID uuid.UUID) ([]domain.Anomaly, error)
	// ClaimQueued moves up to limit queued invoices whose retry time has passed to processing.
	ClaimQueued(ctx context.Context, now time.Time, limit int) ([]domain.Invoice, error)
	ListForExport(ctx context.Context, filters domain.InvoiceFilters) ([]domain.ExportRow, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ExtractionRepository defines the contract for extraction attempt persistence.
type ExtractionRepository interface {
	Create(ctx context.Context, e *domain.Extraction) error
	ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]domain.Extraction, error)
	LatestSuccessful(ctx context.Context, invoiceID uuid.UUID) (*domain.Extraction, error)
}

// MetricsRepository defines the aggregation queries behind the analytics endpoints.
type MetricsRepository interface {
	KPICounts(ctx context.Context) (*domain.KPICounts, error)
	TopVendors(ctx context.Context, limit int) ([]domain.VendorTotal, error)
	DailyTotals(ctx context.Context, from, to time.Time) ([]domain.PeriodTotal, error)
	MonthlyTotals(ctx context.Context, from time.Time) ([]domain.PeriodTotal, error)
	VendorPerformance(ctx context.Context) ([]domain.VendorPerformance, error)
	ExtractionMethodStats(ctx context.Context, highConfidence float64) ([]domain.MethodStats, error)
	AnomalyCounts(ctx context.Context, highSeverity float64) (*domain.AnomalySummaryCounts, error)
	AnomalyFieldBreakdown(ctx context.Context) ([]domain.FieldAnomalyCount, error)
}

// APIKeyRepository defines the contract for API key persistence.
type APIKeyRepository interface {
	Create(ctx context.Context, key *domain.APIKey) error
	GetByPrefix(ctx context.Context, prefix string) (*domain.APIKey, error)
	List(ctx context.Context) ([]domain.APIKey, error)
	TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error
	Revoke(ctx context.Context, id uuid.UUID, at time.Time) error
}
