package service

import (
	"context"
	"time"
)

// SetInvoiceServiceClock replaces the clock of an InvoiceService built by NewInvoiceService.
func SetInvoiceServiceClock(s InvoiceService, now func() time.Time) {
	s.(*invoiceService).now = now
}

// SetMetricsServiceClock replaces the clock of a MetricsService built by NewMetricsService.
func SetMetricsServiceClock(s MetricsService, now func() time.Time) {
	s.(*metricsService).now = now
}

// SetAPIKeyServiceClock replaces the clock of an APIKeyService built by NewAPIKeyService.
func SetAPIKeyServiceClock(s APIKeyService, now func() time.Time) {
	s.(*apiKeyService).now = now
}

// SetQueueWorkerClock replaces the clock of an ExtractionQueueWorker.
func SetQueueWorkerClock(w *ExtractionQueueWorker, now func() time.Time) {
	w.now = now
}

// PollOnce runs a single poll of the worker with the given concurrency budget.
func PollOnce(w *ExtractionQueueWorker, sem chan struct{}) {
	w.poll(context.Background(), sem)
}
