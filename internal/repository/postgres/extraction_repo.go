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

type extractionRepo struct {
	db *sqlx.DB
}

// NewExtractionRepo creates a new PostgreSQL-backed ExtractionRepository.
func NewExtractionRepo(db *sqlx.DB) port.ExtractionRepository {
	return &extractionRepo{db: db}
}

func (r *extractionRepo) Create(ctx context.Context, e *domain.Extraction) error {
	e.CreatedAt = time.Now().UTC()

	// A failed attempt has no document; store SQL NULL rather than an empty JSONB value.
	var result interface{}
	if len(e.JSONResult) > 0 {
		result = []byte(e.JSONResult)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO extractions (
			id, invoice_id, method, model, prompt, json_result, confidence,
			failure, error, duration_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.InvoiceID, e.Method, e.Model, e.Prompt, result, e.Confidence,
		e.Failure, e.Error, e.DurationMS, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("extractionRepo.Create: %w", err)
	}
	return nil
}

func (r *extractionRepo) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]domain.Extraction, error) {
	extractions := []domain.Extraction{}
	err := r.db.SelectContext(ctx, &extractions,
		"SELECT * FROM extractions WHERE invoice_id = $1 ORDER BY created_at DESC", invoiceID)
	if err != nil {
		return nil, fmt.Errorf("extractionRepo.ListByInvoice: %w", err)
	}
	return extractions, nil
}

func (r *extractionRepo) LatestSuccessful(ctx context.Context, invoiceID uuid.UUID) (*domain.Extraction, error) {
	var e domain.Extraction
	err := r.db.GetContext(ctx, &e,
		`SELECT * FROM extractions
		 WHERE invoice_id = $1 AND failure = '' AND json_result IS NOT NULL
		 ORDER BY created_at DESC LIMIT 1`, invoiceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotExtracted
		}
		return nil, fmt.Errorf("extractionRepo.LatestSuccessful: %w", err)
	}
	return &e, nil
}
