package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"invoicelens/internal/ingest"
)

// dateLayout is the wire and storage form of an invoice date.
const dateLayout = "2006-01-02"

// Date is a nullable calendar date stored in a DATE column and rendered as YYYY-MM-DD.
type Date struct {
	Time  time.Time
	Valid bool
}

// ParseDate parses a YYYY-MM-DD string. A nil or empty input yields a null Date.
func ParseDate(s *string) (Date, error) {
	if s == nil || *s == "" {
		return Date{}, nil
	}
	t, err := time.Parse(dateLayout, *s)
	if err != nil {
		return Date{}, fmt.Errorf("domain.ParseDate: %w", err)
	}
	return Date{Time: t, Valid: true}, nil
}

// String returns the date as YYYY-MM-DD, or "" when null.
func (d Date) String() string {
	if !d.Valid {
		return ""
	}
	return d.Time.Format(dateLayout)
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	if !d.Valid {
		return nil, nil
	}
	return d.Time.Format(dateLayout), nil
}

// Scan implements sql.Scanner.
func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
	case time.Time:
		*d = Date{Time: v, Valid: true}
	case string:
		return d.scanText(v)
	case []byte:
		return d.scanText(string(v))
	default:
		return fmt.Errorf("domain.Date: cannot scan %T", src)
	}
	return nil
}

func (d *Date) scanText(s string) error {
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return fmt.Errorf("domain.Date: %w", err)
	}
	*d = Date{Time: t, Valid: true}
	return nil
}

// MarshalJSON renders the date as "YYYY-MM-DD" or null.
func (d Date) MarshalJSON() ([]byte, error) {
	if !d.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts "YYYY-MM-DD" or null.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("domain.Date: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Invoice is an uploaded invoice document together with its canonical fields.
type Invoice struct {
	ID           uuid.UUID     `db:"id" json:"id"`
	Filename     string        `db:"filename" json:"filename"`
	SourceBucket string        `db:"source_bucket" json:"source_bucket"`
	SourceKey    string        `db:"source_key" json:"source_key"`
	ContentType  string        `db:"content_type" json:"content_type"`
	FileSize     int64         `db:"file_size" json:"file_size"`
	Vendor       string        `db:"vendor" json:"vendor"`
	InvoiceNo    string        `db:"invoice_no" json:"invoice_no"`
	InvoiceDate  Date          `db:"invoice_date" json:"date" swaggertype:"string"`
	Subtotal     ingest.Amount `db:"subtotal" json:"subtotal" swaggertype:"number"`
	Tax          ingest.Amount `db:"tax" json:"tax" swaggertype:"number"`
	Total        ingest.Amount `db:"total" json:"total" swaggertype:"number"`
	Currency     string        `db:"currency" json:"currency"`
	Status       InvoiceStatus `db:"status" json:"status"`
	Confidence   *float64      `db:"confidence" json:"confidence"`
	Flagged      bool          `db:"flagged" json:"flagged"`
	Attempts     int           `db:"attempts" json:"attempts"`
	RetryAfter   *time.Time    `db:"retry_after" json:"retry_after,omitempty"`
	Failure      string        `db:"failure" json:"failure,omitempty"`
	Error        string        `db:"error" json:"error,omitempty"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}

// ApplyCanonical copies the canonical fields onto the invoice and marks it processed.
func (inv *Invoice) ApplyCanonical(c *ingest.CanonicalInvoice) error {
	date, err := ParseDate(c.Date)
	if err != nil {
		return err
	}
	confidence := c.Confidence
	inv.Vendor = c.Vendor
	inv.InvoiceNo = c.InvoiceNo
	inv.InvoiceDate = date
	inv.Subtotal = c.Subtotal
	inv.Tax = c.Tax
	inv.Total = c.Total
	inv.Currency = c.Currency
	inv.Confidence = &confidence
	inv.Flagged = c.Flagged()
	inv.Status = InvoiceStatusProcessed
	inv.RetryAfter = nil
	inv.Failure = ""
	inv.Error = ""
	return nil
}

// SourceKey returns the object key an original document is stored under:
// invoices/YYYY/MM/<invoice id>/<filename>.
func SourceKey(invoiceID uuid.UUID, filename string, at time.Time) string {
	return fmt.Sprintf("invoices/%04d/%02d/%s/%s", at.Year(), int(at.Month()), invoiceID, filename)
}

// LineItem is a persisted canonical line item.
type LineItem struct {
	ID          uuid.UUID     `db:"id" json:"id"`
	InvoiceID   uuid.UUID     `db:"invoice_id" json:"invoice_id"`
	Position    int           `db:"position" json:"position"`
	Description string        `db:"description" json:"description"`
	Qty         ingest.Amount `db:"qty" json:"qty" swaggertype:"number"`
	UnitPrice   ingest.Amount `db:"unit_price" json:"unit_price" swaggertype:"number"`
	LineTotal   ingest.Amount `db:"line_total" json:"line_total" swaggertype:"number"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
}

// Extraction records one extraction attempt and the document it returned.
type Extraction struct {
	ID         uuid.UUID        `db:"id" json:"id"`
	InvoiceID  uuid.UUID        `db:"invoice_id" json:"invoice_id"`
	Method     ExtractionMethod `db:"method" json:"method"`
	Model      string           `db:"model" json:"model"`
	Prompt     string           `db:"prompt" json:"-"`
	JSONResult json.RawMessage  `db:"json_result" json:"json_result" swaggertype:"object"`
	Confidence *float64         `db:"confidence" json:"confidence"`
	Failure    string           `db:"failure" json:"failure,omitempty"`
	Error      string           `db:"error" json:"error,omitempty"`
	DurationMS int64            `db:"duration_ms" json:"duration_ms"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
}

// Succeeded reports whether the attempt returned a usable document.
func (e *Extraction) Succeeded() bool {
	return e.Failure == "" && len(e.JSONResult) > 0
}

// Anomaly is a persisted anomaly flag.
type Anomaly struct {
	ID        uuid.UUID          `db:"id" json:"id"`
	InvoiceID uuid.UUID          `db:"invoice_id" json:"invoice_id"`
	Kind      ingest.AnomalyKind `db:"kind" json:"kind"`
	Field     string             `db:"field" json:"field"`
	LineIndex *int               `db:"line_index" json:"line_index,omitempty"`
	Expected  ingest.Amount      `db:"expected" json:"expected" swaggertype:"number"`
	Actual    ingest.Amount      `db:"actual" json:"actual" swaggertype:"number"`
	Reason    string             `db:"reason" json:"reason"`
	Score     float64            `db:"score" json:"score"`
	CreatedAt time.Time          `db:"created_at" json:"created_at"`
}

// NewLineItems converts canonical line items into rows for the given invoice.
func NewLineItems(invoiceID uuid.UUID, items []ingest.CanonicalLineItem) []LineItem {
	rows := make([]LineItem, 0, len(items))
	for i, item := range items {
		rows = append(rows, LineItem{
			ID:          uuid.New(),
			InvoiceID:   invoiceID,
			Position:    i,
			Description: item.Description,
			Qty:         item.Qty,
			UnitPrice:   item.UnitPrice,
			LineTotal:   item.LineTotal,
		})
	}
	return rows
}

// NewAnomalies converts canonical anomalies into rows for the given invoice.
func NewAnomalies(invoiceID uuid.UUID, flags []ingest.Anomaly) []Anomaly {
	rows := make([]Anomaly, 0, len(flags))
	for _, a := range flags {
		rows = append(rows, Anomaly{
			ID:        uuid.New(),
			InvoiceID: invoiceID,
			Kind:      a.Kind,
			Field:     a.FieldPath(),
			LineIndex: a.LineIndex,
			Expected:  a.Expected,
			Actual:    a.Actual,
			Reason:    a.Message,
			Score:     a.Score(),
		})
	}
	return rows
}

// InvoiceDetail is an invoice with everything attached to it.
type InvoiceDetail struct {
	Invoice          *Invoice    `json:"invoice"`
	LineItems        []LineItem  `json:"line_items"`
	Anomalies        []Anomaly   `json:"anomalies"`
	LatestExtraction *Extraction `json:"latest_extraction,omitempty"`
	DownloadURL      string      `json:"download_url,omitempty"`
}

// InvoiceFilters narrows an invoice listing. Zero values mean no filter.
type InvoiceFilters struct {
	Vendor   string
	DateFrom *time.Time
	DateTo   *time.Time
	Flagged  *bool
	Status   InvoiceStatus
}

// ExportRow is an invoice as written to the export files.
type ExportRow struct {
	Invoice     Invoice
	LineItems   int
	Extractions int
	Anomalies   int
}

// APIKey is a stored machine credential. Only the bcrypt hash of the secret is kept.
type APIKey struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	Name       string     `db:"name" json:"name"`
	Prefix     string     `db:"prefix" json:"prefix"`
	KeyHash    string     `db:"key_hash" json:"-"`
	LastUsedAt *time.Time `db:"last_used_at" json:"last_used_at"`
	RevokedAt  *time.Time `db:"revoked_at" json:"revoked_at"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}
