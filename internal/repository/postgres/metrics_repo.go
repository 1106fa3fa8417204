package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"invoicelens/internal/domain"
	"invoicelens/internal/port"
)

type metricsRepo struct {
	db *sqlx.DB
}

// NewMetricsRepo creates a new PostgreSQL-backed MetricsRepository.
func NewMetricsRepo(db *sqlx.DB) port.MetricsRepository {
	return &metricsRepo{db: db}
}

const kpiCountsQuery = `SELECT
	COUNT(*) AS total_invoices,
	COUNT(CASE WHEN status = 'processed' THEN 1 END) AS processed_count,
	COUNT(CASE WHEN flagged THEN 1 END) AS flagged_invoices,
	COALESCE(SUM(total), 0)::float8 AS total_value,
	COALESCE(AVG(confidence), 0)::float8 AS avg_confidence,
	(SELECT COUNT(*) FROM anomalies) AS total_anomalies
FROM invoices`

func (r *metricsRepo) KPICounts(ctx context.Context) (*domain.KPICounts, error) {
	var counts domain.KPICounts
	if err := r.db.GetContext(ctx, &counts, kpiCountsQuery); err != nil {
		return nil, fmt.Errorf("metricsRepo.KPICounts: %w", err)
	}
	return &counts, nil
}

func (r *metricsRepo) TopVendors(ctx context.Context, limit int) ([]domain.VendorTotal, error) {
	vendors := []domain.VendorTotal{}
	err := r.db.SelectContext(ctx, &vendors,
		`SELECT vendor, COALESCE(SUM(total), 0)::float8 AS total_value, COUNT(*) AS invoice_count
		 FROM invoices
		 WHERE vendor <> '' AND total IS NOT NULL
		 GROUP BY vendor
		 ORDER BY total_value DESC, vendor
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("metricsRepo.TopVendors: %w", err)
	}
	return vendors, nil
}

func (r *metricsRepo) DailyTotals(ctx context.Context, from, to time.Time) ([]domain.PeriodTotal, error) {
	totals := []domain.PeriodTotal{}
	err := r.db.SelectContext(ctx, &totals,
		`SELECT date_trunc('day', created_at) AS period,
			COUNT(*) AS invoice_count,
			COALESCE(SUM(total), 0)::float8 AS total_value
		 FROM invoices
		 WHERE created_at >= $1 AND created_at <= $2
		 GROUP BY period
		 ORDER BY period`, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("metricsRepo.DailyTotals: %w", err)
	}
	return totals, nil
}

func (r *metricsRepo) MonthlyTotals(ctx context.Context, from time.Time) ([]domain.PeriodTotal, error) {
	totals := []domain.PeriodTotal{}
	err := r.db.SelectContext(ctx, &totals,
		`SELECT date_trunc('month', created_at) AS period,
			COUNT(*) AS invoice_count,
			COALESCE(SUM(total), 0)::float8 AS total_value
		 FROM invoices
		 WHERE created_at >= $1
		 GROUP BY period
		 ORDER BY period`, from.UTC())
	if err != nil {
		return nil, fmt.Errorf("metricsRepo.MonthlyTotals: %w", err)
	}
	return totals, nil
}

func (r *metricsRepo) VendorPerformance(ctx context.Context) ([]domain.VendorPerformance, error) {
	rows := []domain.VendorPerformance{}
	err := r.db.SelectContext(ctx, &rows,
		`SELECT vendor,
			COUNT(*) AS invoice_count,
			COALESCE(SUM(total), 0)::float8 AS total_value,
			COALESCE(AVG(total), 0)::float8 AS avg_invoice_value,
			COALESCE(AVG(confidence), 0)::float8 AS avg_confidence,
			COUNT(CASE WHEN flagged THEN 1 END) AS flagged_count,
			MIN(created_at) AS first_invoice,
			MAX(created_at) AS last_invoice
		 FROM invoices
		 WHERE vendor <> ''
		 GROUP BY vendor
		 ORDER BY total_value DESC, vendor`)
	if err != nil {
		return nil, fmt.Errorf("metricsRepo.VendorPerformance: %w", err)
	}
	return rows, nil
}

func (r *metricsRepo) ExtractionMethodStats(ctx context.Context, highConfidence float64) ([]domain.MethodStats, error) {
	stats := []domain.MethodStats{}
	err := r.db.SelectContext(ctx, &stats,
		`SELECT method,
			COUNT(*) AS extraction_count,
			COALESCE(AVG(confidence), 0)::float8 AS avg_confidence,
			COUNT(CASE WHEN confidence >= $1 THEN 1 END) AS high_count
		 FROM extractions
		 GROUP BY method
		 ORDER BY method`, highConfidence)
	if err != nil {
		return nil, fmt.Errorf("metricsRepo.ExtractionMethodStats: %w", err)
	}
	return stats, nil
}

func (r *metricsRepo) AnomalyCounts(ctx context.Context, highSeverity float64) (*domain.AnomalySummaryCounts, error) {
	var counts domain.AnomalySummaryCounts
	err := r.db.GetContext(ctx, &counts,
		`SELECT COUNT(*) AS total, COUNT(CASE WHEN score >= $1 THEN 1 END) AS high_severity
		 FROM anomalies`, highSeverity)
	if err != nil {
		return nil, fmt.Errorf("metricsRepo.AnomalyCounts: %w", err)
	}
	return &counts, nil
}

func (r *metricsRepo) AnomalyFieldBreakdown(ctx context.Context) ([]domain.FieldAnomalyCount, error) {
	rows := []domain.FieldAnomalyCount{}
	err := r.db.SelectContext(ctx, &rows,
		`SELECT field, COUNT(*) AS anomaly_count, AVG(score)::float8 AS avg_score
		 FROM anomalies
		 GROUP BY field
		 ORDER BY anomaly_count DESC, field`)
	if err != nil {
		return nil, fmt.Errorf("metricsRepo.AnomalyFieldBreakdown: %w", err)
	}
	return rows, nil
}
