package service

import (
	"context"
	"log"
	"sync"
	"time"

	"invoicelens/internal/port"
)

// ExtractionQueueConfig holds settings for the extraction queue worker.
type ExtractionQueueConfig struct {
	PollInterval time.Duration
	Concurrency  int
	// JobTimeout bounds one queued attempt, download and persistence included.
	JobTimeout time.Duration
}

// ExtractionQueueWorker polls for rate-limited invoices whose retry time has passed and
// hands them back to the invoice service.
type ExtractionQueueWorker struct {
	invoiceRepo    port.InvoiceRepository
	invoiceService InvoiceService
	cfg            ExtractionQueueConfig
	now            func() time.Time
	wg             sync.WaitGroup
}

// NewExtractionQueueWorker creates a new ExtractionQueueWorker.
func NewExtractionQueueWorker(invoiceRepo port.InvoiceRepository, invoiceService InvoiceService, cfg ExtractionQueueConfig) *ExtractionQueueWorker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 5 * time.Minute
	}
	return &ExtractionQueueWorker{
		invoiceRepo:    invoiceRepo,
		invoiceService: invoiceService,
		cfg:            cfg,
		now:            time.Now,
	}
}

// Start runs the polling loop until ctx is canceled. It blocks until every
// in-flight attempt has finished.
func (w *ExtractionQueueWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	sem := make(chan struct{}, w.cfg.Concurrency)

	log.Printf("extractionQueueWorker: started (poll=%s, concurrency=%d)", w.cfg.PollInterval, w.cfg.Concurrency)

	for {
		select {
		case <-ctx.Done():
			log.Printf("extractionQueueWorker: shutting down, waiting for in-flight extractions...")
			w.wg.Wait()
			log.Printf("extractionQueueWorker: shutdown complete")
			return
		case <-ticker.C:
			w.poll(ctx, sem)
		}
	}
}

func (w *ExtractionQueueWorker) poll(ctx context.Context, sem chan struct{}) {
	available := cap(sem) - len(sem)
	if available <= 0 {
		return
	}

	invoices, err := w.invoiceRepo.ClaimQueued(ctx, w.now().UTC(), available)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("extractionQueueWorker: ClaimQueued error: %v", err)
		}
		return
	}

	for i := range invoices {
		inv := invoices[i]
		inv.Attempts++

		sem <- struct{}{}
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			defer func() { <-sem }()

			// Detached from ctx so shutdown lets in-flight attempts finish.
			jobCtx, cancel := context.WithTimeout(context.Background(), w.cfg.JobTimeout)
			defer cancel()

			log.Printf("extractionQueueWorker: dispatching invoice %s (attempt %d)", inv.ID, inv.Attempts)
			if err := w.invoiceService.ProcessQueued(jobCtx, &inv); err != nil {
				log.Printf("extractionQueueWorker: invoice %s: %v", inv.ID, err)
			}
		}()
	}
}

// Wait blocks until every dispatched attempt has finished.
func (w *ExtractionQueueWorker) Wait() {
	w.wg.Wait()
}
