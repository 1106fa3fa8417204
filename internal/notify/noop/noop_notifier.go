package noop

import (
	"context"
	"log"
	"strings"

	"invoicelens/internal/port"
)

type noopNotifier struct {
	baseURL string
}

// NewNotifier creates a Notifier that only logs flagged invoices.
func NewNotifier(baseURL string) port.Notifier {
	return &noopNotifier{baseURL: baseURL}
}

func (n *noopNotifier) NotifyFlagged(_ context.Context, alert port.FlaggedInvoiceAlert) error {
	log.Printf("[NOOP NOTIFY] invoice %s (%s, vendor %q) flagged, max score %.2f: %s -> %s/invoices/%s",
		alert.InvoiceID, alert.Filename, alert.Vendor, alert.MaxScore,
		strings.Join(alert.Reasons, "; "), n.baseURL, alert.InvoiceID)
	return nil
}
