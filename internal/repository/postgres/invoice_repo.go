package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"invoicelens/internal/domain"
	"invoicelens/internal/port"
)

type invoiceRepo struct {
	db *sqlx.DB
}

// NewInvoiceRepo creates a new PostgreSQL-backed InvoiceRepository.
func NewInvoiceRepo(db *sqlx.DB) port.InvoiceRepository {
	return &invoiceRepo{db: db}
}

func (r *invoiceRepo) Create(ctx context.Context, inv *domain.Invoice) error {
	now := time.Now().UTC()
	inv.CreatedAt = now
	inv.UpdatedAt = now

	query := `INSERT INTO invoices (
		id, filename, source_bucket, source_key, content_type, file_size,
		vendor, invoice_no, invoice_date, subtotal, tax, total, currency,
		status, confidence, flagged, attempts, retry_after, failure, error,
		created_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6,
		$7, $8, $9, $10, $11, $12, $13,
		$14, $15, $16, $17, $18, $19, $20,
		$21, $22
	)`

	_, err := r.db.ExecContext(ctx, query,
		inv.ID, inv.Filename, inv.SourceBucket, inv.SourceKey, inv.ContentType, inv.FileSize,
		inv.Vendor, inv.InvoiceNo, inv.InvoiceDate, inv.Subtotal, inv.Tax, inv.Total, inv.Currency,
		inv.Status, inv.Confidence, inv.Flagged, inv.Attempts, inv.RetryAfter, inv.Failure, inv.Error,
		inv.CreatedAt, inv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("invoiceRepo.Create: %w", err)
	}
	return nil
}

func (r *invoiceRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	var inv domain.Invoice
	err := r.db.GetContext(ctx, &inv, "SELECT * FROM invoices WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("invoiceRepo.GetByID: %w", err)
	}
	return &inv, nil
}

func (r *invoiceRepo) List(ctx context.Context, filters domain.InvoiceFilters, offset, limit int) ([]domain.Invoice, int, error) {
	where, args := whereClause(filters, "")

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM invoices"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("invoiceRepo.List count: %w", err)
	}

	n := len(args)
	query := fmt.Sprintf("SELECT * FROM invoices%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d", where, n+1, n+2)
	invoices := []domain.Invoice{}
	if err := r.db.SelectContext(ctx, &invoices, query, append(args, limit, offset)...); err != nil {
		return nil, 0, fmt.Errorf("invoiceRepo.List: %w", err)
	}
	return invoices, total, nil
}

func (r *invoiceRepo) UpdateStatus(ctx context.Context, inv *domain.Invoice) error {
	inv.UpdatedAt = time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`UPDATE invoices SET
			status = $1, attempts = $2, retry_after = $3, failure = $4, error = $5, updated_at = $6
		 WHERE id = $7`,
		inv.Status, inv.Attempts, inv.RetryAfter, inv.Failure, inv.Error, inv.UpdatedAt, inv.ID)
	if err != nil {
		return fmt.Errorf("invoiceRepo.UpdateStatus: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *invoiceRepo) SaveNormalized(ctx context.Context, n port.NormalizedInvoice) error {
	inv := n.Invoice
	now := time.Now().UTC()
	inv.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("invoiceRepo.SaveNormalized begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx,
		`UPDATE invoices SET
			vendor = $1, invoice_no = $2, invoice_date = $3, subtotal = $4, tax = $5, total = $6,
			currency = $7, status = $8, confidence = $9, flagged = $10, attempts = $11,
			retry_after = $12, failure = $13, error = $14, updated_at = $15
		 WHERE id = $16`,
		inv.Vendor, inv.InvoiceNo, inv.InvoiceDate, inv.Subtotal, inv.Tax, inv.Total,
		inv.Currency, inv.Status, inv.Confidence, inv.Flagged, inv.Attempts,
		inv.RetryAfter, inv.Failure, inv.Error, inv.UpdatedAt,
		inv.ID)
	if err != nil {
		return fmt.Errorf("invoiceRepo.SaveNormalized invoice: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return domain.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM line_items WHERE invoice_id = $1", inv.ID); err != nil {
		return fmt.Errorf("invoiceRepo.SaveNormalized clear line items: %w", err)
	}
	if len(n.LineItems) > 0 {
		for i := range n.LineItems {
			n.LineItems[i].CreatedAt = now
		}
		_, err := tx.NamedExecContext(ctx,
			`INSERT INTO line_items (id, invoice_id, position, description, qty, unit_price, line_total, created_at)
			 VALUES (:id, :invoice_id, :position, :description, :qty, :unit_price, :line_total, :created_at)`,
			n.LineItems)
		if err != nil {
			return fmt.Errorf("invoiceRepo.SaveNormalized line items: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM anomalies WHERE invoice_id = $1", inv.ID); err != nil {
		return fmt.Errorf("invoiceRepo.SaveNormalized clear anomalies: %w", err)
	}
	if len(n.Anomalies) > 0 {
		for i := range n.Anomalies {
			n.Anomalies[i].CreatedAt = now
		}
		_, err := tx.NamedExecContext(ctx,
			`INSERT INTO anomalies (id, invoice_id, kind, field, line_index, expected, actual, reason, score, created_at)
			 VALUES (:id, :invoice_id, :kind, :field, :line_index, :expected, :actual, :reason, :score, :created_at)`,
			n.Anomalies)
		if err != nil {
			return fmt.Errorf("invoiceRepo.SaveNormalized anomalies: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("invoiceRepo.SaveNormalized commit: %w", err)
	}
	return nil
}

func (r *invoiceRepo) ListLineItems(ctx context.Context, invoiceID uuid.UUID) ([]domain.LineItem, error) {
	items := []domain.LineItem{}
	err := r.db.SelectContext(ctx, &items,
		"SELECT * FROM line_items WHERE invoice_id = $1 ORDER BY position", invoiceID)
	if err != nil {
		return nil, fmt.Errorf("invoiceRepo.ListLineItems: %w", err)
	}
	return items, nil
}

func (r *invoiceRepo) ListAnomalies(ctx context.Context, invoiceID uuid.UUID) ([]domain.Anomaly, error) {
	anomalies := []domain.Anomaly{}
	err := r.db.SelectContext(ctx, &anomalies,
		"SELECT * FROM anomalies WHERE invoice_id = $1 ORDER BY score DESC, created_at", invoiceID)
	if err != nil {
		return nil, fmt.Errorf("invoiceRepo.ListAnomalies: %w", err)
	}
	return anomalies, nil
}

// ClaimQueued locks due rows with SKIP LOCKED so several workers can poll the same table.
func (r *invoiceRepo) ClaimQueued(ctx context.Context, now time.Time, limit int) ([]domain.Invoice, error) {
	invoices := []domain.Invoice{}
	err := r.db.SelectContext(ctx, &invoices,
		`UPDATE invoices SET status = $1, updated_at = $2
		 WHERE id IN (
			SELECT id FROM invoices
			WHERE status = $3 AND (retry_after IS NULL OR retry_after <= $2)
			ORDER BY retry_after NULLS FIRST, created_at
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		 )
		 RETURNING *`,
		domain.InvoiceStatusProcessing, now.UTC(), domain.InvoiceStatusQueued, limit)
	if err != nil {
		return nil, fmt.Errorf("invoiceRepo.ClaimQueued: %w", err)
	}
	return invoices, nil
}

// exportRow flattens the invoice columns next to the per-invoice counts.
type exportRow struct {
	domain.Invoice
	LineItemCount   int `db:"line_item_count"`
	ExtractionCount int `db:"extraction_count"`
	AnomalyCount    int `db:"anomaly_count"`
}

func (r *invoiceRepo) ListForExport(ctx context.Context, filters domain.InvoiceFilters) ([]domain.ExportRow, error) {
	where, args := whereClause(filters, "i")
	query := `SELECT i.*,
		(SELECT COUNT(*) FROM line_items li WHERE li.invoice_id = i.id) AS line_item_count,
		(SELECT COUNT(*) FROM extractions e WHERE e.invoice_id = i.id) AS extraction_count,
		(SELECT COUNT(*) FROM anomalies a WHERE a.invoice_id = i.id) AS anomaly_count
		FROM invoices i` + where + ` ORDER BY i.created_at DESC`

	var rows []exportRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("invoiceRepo.ListForExport: %w", err)
	}

	out := make([]domain.ExportRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.ExportRow{
			Invoice:     row.Invoice,
			LineItems:   row.LineItemCount,
			Extractions: row.ExtractionCount,
			Anomalies:   row.AnomalyCount,
		})
	}
	return out, nil
}

func (r *invoiceRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM invoices WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("invoiceRepo.Delete: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}
