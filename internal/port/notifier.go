package port

import (
	"context"

	"github.com/google/uuid"
)

// FlaggedInvoiceAlert describes an invoice that needs a human reviewer.
type FlaggedInvoiceAlert struct {
	InvoiceID  uuid.UUID
	Filename   string
	Vendor     string
	Total      string
	Confidence float64
	Reasons    []string
	MaxScore   float64
}

// Notifier delivers reviewer alerts.
type Notifier interface {
	NotifyFlagged(ctx context.Context, alert FlaggedInvoiceAlert) error
}
