package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"invoicelens/internal/config"
	"invoicelens/internal/domain"
	"invoicelens/internal/extractor"
	"invoicelens/internal/ingest"
	"invoicelens/internal/port"
)

// defaultRetryDelay is used when a rate-limited provider gave no Retry-After hint.
const defaultRetryDelay = 60 * time.Second

// ExtractInvoiceInput is the DTO for invoice uploads.
type ExtractInvoiceInput struct {
	File   multipart.File
	Header *multipart.FileHeader
}

// ImportInput is a stored extraction document to normalize without calling a provider.
type ImportInput struct {
	Filename string
	Document []byte
	Commit   bool
}

// ImportResult is the outcome of an import. Invoice is nil unless the import was committed.
type ImportResult struct {
	Canonical *ingest.CanonicalInvoice
	Invoice   *domain.Invoice
}

// InvoiceServiceConfig holds the limits and thresholds the invoice service applies.
type InvoiceServiceConfig struct {
	Bucket            string
	PresignExpiry     int64
	MaxBytes          int64
	Extensions        []string
	MaxPDFPages       int
	ProcessingTimeout time.Duration
	MaxAttempts       int
	NotifyMinScore    float64
	Tolerance         decimal.Decimal
}

// NewInvoiceServiceConfig collects the invoice service settings from the application config.
func NewInvoiceServiceConfig(cfg *config.Config, tolerance decimal.Decimal) InvoiceServiceConfig {
	return InvoiceServiceConfig{
		Bucket:            cfg.S3.Bucket,
		PresignExpiry:     cfg.S3.PresignExpiry,
		MaxBytes:          cfg.Upload.MaxBytes(),
		Extensions:        cfg.Upload.Extensions,
		MaxPDFPages:       cfg.Upload.MaxPDFPages,
		ProcessingTimeout: cfg.Extractor.ProcessingTimeout(),
		MaxAttempts:       cfg.Queue.MaxAttempts,
		NotifyMinScore:    cfg.Notify.MinScore,
		Tolerance:         tolerance,
	}
}

// InvoiceService defines the invoice ingestion contract.
type InvoiceService interface {
	// Extract validates and stores an uploaded document, then extracts and normalizes it.
	// A rate-limited extraction leaves the invoice queued and returns it without error.
	Extract(ctx context.Context, input ExtractInvoiceInput) (*domain.InvoiceDetail, error)
	// ProcessQueued retries extraction of a claimed invoice from its stored original.
	ProcessQueued(ctx context.Context, inv *domain.Invoice) error
	// Reprocess replays normalization over the latest successful extraction.
	Reprocess(ctx context.Context, id uuid.UUID) (*domain.InvoiceDetail, error)
	// Normalize runs the validator over a posted payload without persisting anything.
	Normalize(ctx context.Context, payload []byte) (*ingest.CanonicalInvoice, error)
	// Import normalizes a stored extraction document, persisting it when input.Commit is set.
	Import(ctx context.Context, input ImportInput) (*ImportResult, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.InvoiceDetail, error)
	List(ctx context.Context, filters domain.InvoiceFilters, offset, limit int) ([]domain.Invoice, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type invoiceService struct {
	invoiceRepo    port.InvoiceRepository
	extractionRepo port.ExtractionRepository
	storage        port.ObjectStorage
	extractor      port.Extractor
	inspector      port.DocumentInspector
	notifier       port.Notifier
	validator      *ingest.Validator
	cfg            InvoiceServiceConfig
	now            func() time.Time
}

// NewInvoiceService creates a new InvoiceService implementation.
func NewInvoiceService(
	invoiceRepo port.InvoiceRepository,
	extractionRepo port.ExtractionRepository,
	storage port.ObjectStorage,
	ext port.Extractor,
	inspector port.DocumentInspector,
	notifier port.Notifier,
	validator *ingest.Validator,
	cfg InvoiceServiceConfig,
) InvoiceService {
	return &invoiceService{
		invoiceRepo:    invoiceRepo,
		extractionRepo: extractionRepo,
		storage:        storage,
		extractor:      ext,
		inspector:      inspector,
		notifier:       notifier,
		validator:      validator,
		cfg:            cfg,
		now:            time.Now,
	}
}

func (s *invoiceService) Extract(ctx context.Context, input ExtractInvoiceInput) (*domain.InvoiceDetail, error) {
	filename := filepath.Base(input.Header.Filename)
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if !s.extensionAllowed(ext) {
		return nil, domain.ErrUnsupportedFileType
	}
	if s.cfg.MaxBytes > 0 && input.Header.Size > s.cfg.MaxBytes {
		return nil, domain.ErrFileTooLarge
	}

	data, err := readLimited(input.File, s.cfg.MaxBytes)
	if err != nil {
		return nil, err
	}
	contentType, err := s.validateContent(data)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	inv := &domain.Invoice{
		ID:           uuid.New(),
		Filename:     filename,
		SourceBucket: s.cfg.Bucket,
		ContentType:  contentType,
		FileSize:     int64(len(data)),
		Status:       domain.InvoiceStatusProcessing,
		Attempts:     1,
	}
	inv.SourceKey = domain.SourceKey(inv.ID, filename, now)

	log.Printf("invoiceService.Extract: uploading %s (%s, %d bytes) as invoice %s",
		filename, contentType, inv.FileSize, inv.ID)

	if _, err := s.storage.Upload(ctx, port.UploadInput{
		Bucket:      inv.SourceBucket,
		Key:         inv.SourceKey,
		Body:        bytes.NewReader(data),
		ContentType: contentType,
		Size:        inv.FileSize,
		Metadata:    map[string]string{"invoice-id": inv.ID.String()},
	}); err != nil {
		log.Printf("invoiceService.Extract: S3 upload failed for invoice %s: %v", inv.ID, err)
		return nil, domain.ErrUploadFailed
	}

	if err := s.invoiceRepo.Create(ctx, inv); err != nil {
		log.Printf("invoiceService.Extract: failed to create invoice %s: %v", inv.ID, err)
		if delErr := s.storage.Delete(ctx, inv.SourceBucket, inv.SourceKey); delErr != nil {
			log.Printf("invoiceService.Extract: failed to remove orphaned object %s: %v", inv.SourceKey, delErr)
		}
		return nil, fmt.Errorf("creating invoice: %w", err)
	}

	return s.process(ctx, inv, data)
}

func (s *invoiceService) ProcessQueued(ctx context.Context, inv *domain.Invoice) error {
	data, err := s.storage.Download(ctx, inv.SourceBucket, inv.SourceKey)
	if err != nil {
		log.Printf("invoiceService.ProcessQueued: download failed for invoice %s: %v", inv.ID, err)
		s.markFailed(ctx, inv, port.FailureUpstream, fmt.Sprintf("downloading original: %v", err))
		return fmt.Errorf("downloading invoice %s: %w", inv.ID, err)
	}
	_, err = s.process(ctx, inv, data)
	return err
}

// process runs one extraction attempt and records its outcome. Persistence uses ctx, not
// the extraction deadline, so that a timed-out attempt is still recorded.
func (s *invoiceService) process(ctx context.Context, inv *domain.Invoice, data []byte) (*domain.InvoiceDetail, error) {
	extractCtx, cancel := s.extractionContext(ctx)
	start := time.Now()
	result := s.extractor.Extract(extractCtx, port.ExtractInput{
		FileBytes:   data,
		ContentType: inv.ContentType,
		Filename:    inv.Filename,
	})
	cancel()
	elapsed := time.Since(start)

	if !result.OK() {
		s.recordAttempt(ctx, inv.ID, result, nil, elapsed)
		return s.handleExtractFailure(ctx, inv, result)
	}

	canonical, err := s.validator.Normalize(result.Payload, s.cfg.Tolerance)
	if err != nil {
		failed := extractor.Failed(fmt.Errorf("%w: %v", extractor.ErrMalformedResponse, err),
			result.Method, result.Model, result.Prompt)
		s.recordAttempt(ctx, inv.ID, failed, nil, elapsed)
		return s.handleExtractFailure(ctx, inv, failed)
	}

	confidence := canonical.Confidence
	if result.ModelConfidence != nil {
		confidence = *result.ModelConfidence
	}
	s.recordAttempt(ctx, inv.ID, result, &confidence, elapsed)

	detail, err := s.saveCanonical(ctx, inv, canonical)
	if err != nil {
		s.markFailed(ctx, inv, port.FailureUpstream, err.Error())
		return nil, err
	}
	log.Printf("invoiceService.process: invoice %s processed (confidence %.2f, %d anomalies)",
		inv.ID, canonical.Confidence, len(canonical.Anomalies))

	s.notifyIfFlagged(ctx, inv, canonical)
	return detail, nil
}

func (s *invoiceService) extractionContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.ProcessingTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.ProcessingTimeout)
}

// handleExtractFailure queues rate-limited invoices that still have attempts left and fails the rest.
func (s *invoiceService) handleExtractFailure(ctx context.Context, inv *domain.Invoice, result *port.ExtractResult) (*domain.InvoiceDetail, error) {
	reason := failureMessage(result)

	if result.Failure == port.FailureRateLimited && inv.Attempts < s.cfg.MaxAttempts {
		delay := result.RetryAfter
		if delay <= 0 {
			delay = defaultRetryDelay
		}
		retryAt := s.now().Add(delay)
		inv.Status = domain.InvoiceStatusQueued
		inv.RetryAfter = &retryAt
		inv.Failure = string(result.Failure)
		inv.Error = reason

		log.Printf("invoiceService.process: invoice %s rate limited (attempt %d/%d), retry after %v",
			inv.ID, inv.Attempts, s.cfg.MaxAttempts, delay)

		if err := s.invoiceRepo.UpdateStatus(ctx, inv); err != nil {
			log.Printf("invoiceService.process: failed to queue invoice %s: %v", inv.ID, err)
			return nil, fmt.Errorf("queueing invoice: %w", err)
		}
		return &domain.InvoiceDetail{Invoice: inv}, nil
	}

	log.Printf("invoiceService.process: extraction failed for invoice %s (attempt %d): %s: %s",
		inv.ID, inv.Attempts, result.Failure, reason)
	s.markFailed(ctx, inv, result.Failure, reason)
	return nil, fmt.Errorf("%w: %s", domain.ErrExtractionFailed, result.Failure)
}

func (s *invoiceService) markFailed(ctx context.Context, inv *domain.Invoice, kind port.FailureKind, reason string) {
	inv.Status = domain.InvoiceStatusFailed
	inv.RetryAfter = nil
	inv.Failure = string(kind)
	inv.Error = reason
	if err := s.invoiceRepo.UpdateStatus(ctx, inv); err != nil {
		log.Printf("invoiceService.markFailed: failed to update invoice %s: %v", inv.ID, err)
	}
}

// recordAttempt stores an extractions row. Failures to record are logged, not returned.
func (s *invoiceService) recordAttempt(ctx context.Context, invoiceID uuid.UUID, result *port.ExtractResult, confidence *float64, elapsed time.Duration) {
	rec := &domain.Extraction{
		ID:         uuid.New(),
		InvoiceID:  invoiceID,
		Method:     domain.ExtractionMethod(result.Method),
		Model:      result.Model,
		Prompt:     result.Prompt,
		JSONResult: result.Raw,
		Confidence: confidence,
		Failure:    string(result.Failure),
		DurationMS: elapsed.Milliseconds(),
	}
	if result.Err != nil {
		rec.Error = result.Err.Error()
	}
	if err := s.extractionRepo.Create(ctx, rec); err != nil {
		log.Printf("invoiceService.recordAttempt: failed to record extraction for invoice %s: %v", invoiceID, err)
	}
}

// saveCanonical applies and persists a canonical invoice. On error inv is left as it was.
func (s *invoiceService) saveCanonical(ctx context.Context, inv *domain.Invoice, canonical *ingest.CanonicalInvoice) (*domain.InvoiceDetail, error) {
	prev := *inv
	if err := inv.ApplyCanonical(canonical); err != nil {
		*inv = prev
		return nil, fmt.Errorf("applying canonical invoice: %w", err)
	}
	detail := &domain.InvoiceDetail{
		Invoice:   inv,
		LineItems: domain.NewLineItems(inv.ID, canonical.LineItems),
		Anomalies: domain.NewAnomalies(inv.ID, canonical.Anomalies),
	}
	if err := s.invoiceRepo.SaveNormalized(ctx, port.NormalizedInvoice{
		Invoice:   detail.Invoice,
		LineItems: detail.LineItems,
		Anomalies: detail.Anomalies,
	}); err != nil {
		*inv = prev
		log.Printf("invoiceService.saveCanonical: failed to save invoice %s: %v", inv.ID, err)
		return nil, fmt.Errorf("saving normalized invoice: %w", err)
	}
	return detail, nil
}

func (s *invoiceService) notifyIfFlagged(ctx context.Context, inv *domain.Invoice, canonical *ingest.CanonicalInvoice) {
	maxScore := canonical.MaxSeverity()
	if !canonical.Flagged() || maxScore < s.cfg.NotifyMinScore {
		return
	}
	reasons := make([]string, 0, len(canonical.Anomalies))
	for i := range canonical.Anomalies {
		reasons = append(reasons, canonical.Anomalies[i].Message)
	}
	alert := port.FlaggedInvoiceAlert{
		InvoiceID:  inv.ID,
		Filename:   inv.Filename,
		Vendor:     inv.Vendor,
		Total:      inv.Total.String(),
		Confidence: canonical.Confidence,
		Reasons:    reasons,
		MaxScore:   maxScore,
	}
	if err := s.notifier.NotifyFlagged(ctx, alert); err != nil {
		log.Printf("invoiceService.notifyIfFlagged: failed to notify for invoice %s: %v", inv.ID, err)
	}
}

func (s *invoiceService) Reprocess(ctx context.Context, id uuid.UUID) (*domain.InvoiceDetail, error) {
	inv, err := s.invoiceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status == domain.InvoiceStatusProcessing {
		return nil, domain.ErrInvoiceBusy
	}

	latest, err := s.extractionRepo.LatestSuccessful(ctx, id)
	if err != nil {
		return nil, err
	}
	payload, _, err := extractor.DecodeDocument(latest.JSONResult)
	if err != nil {
		log.Printf("invoiceService.Reprocess: stored extraction %s for invoice %s is unreadable: %v", latest.ID, id, err)
		return nil, fmt.Errorf("decoding stored extraction: %w", err)
	}
	canonical, err := s.validator.Normalize(payload, s.cfg.Tolerance)
	if err != nil {
		return nil, err
	}

	log.Printf("invoiceService.Reprocess: replaying extraction %s for invoice %s", latest.ID, id)
	detail, err := s.saveCanonical(ctx, inv, canonical)
	if err != nil {
		return nil, err
	}
	detail.LatestExtraction = latest
	return detail, nil
}

func (s *invoiceService) Normalize(_ context.Context, payload []byte) (*ingest.CanonicalInvoice, error) {
	return s.validator.NormalizeJSON(payload, s.cfg.Tolerance)
}

func (s *invoiceService) Import(ctx context.Context, input ImportInput) (*ImportResult, error) {
	payload, confidence, err := extractor.DecodeDocument(input.Document)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ingest.ErrInvalidArgument, input.Filename, err)
	}
	canonical, err := s.validator.Normalize(payload, s.cfg.Tolerance)
	if err != nil {
		return nil, err
	}
	result := &ImportResult{Canonical: canonical}
	if !input.Commit {
		return result, nil
	}

	inv := &domain.Invoice{
		ID:          uuid.New(),
		Filename:    filepath.Base(input.Filename),
		ContentType: "application/json",
		FileSize:    int64(len(input.Document)),
		Status:      domain.InvoiceStatusProcessing,
		Attempts:    1,
	}
	if err := s.invoiceRepo.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("creating invoice: %w", err)
	}

	if confidence == nil {
		confidence = &canonical.Confidence
	}
	s.recordAttempt(ctx, inv.ID, &port.ExtractResult{
		Method: string(domain.ExtractionMethodImport),
		Raw:    input.Document,
	}, confidence, 0)

	if _, err := s.saveCanonical(ctx, inv, canonical); err != nil {
		s.markFailed(ctx, inv, port.FailureUpstream, err.Error())
		return nil, err
	}
	result.Invoice = inv
	return result, nil
}

func (s *invoiceService) GetByID(ctx context.Context, id uuid.UUID) (*domain.InvoiceDetail, error) {
	inv, err := s.invoiceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := s.invoiceRepo.ListLineItems(ctx, id)
	if err != nil {
		return nil, err
	}
	anomalies, err := s.invoiceRepo.ListAnomalies(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := &domain.InvoiceDetail{Invoice: inv, LineItems: items, Anomalies: anomalies}

	latest, err := s.extractionRepo.LatestSuccessful(ctx, id)
	switch {
	case err == nil:
		detail.LatestExtraction = latest
	case !errors.Is(err, domain.ErrNotExtracted):
		return nil, err
	}

	if inv.SourceKey != "" {
		url, err := s.storage.GetPresignedURL(ctx, inv.SourceBucket, inv.SourceKey, s.cfg.PresignExpiry)
		if err != nil {
			log.Printf("invoiceService.GetByID: presign failed for invoice %s: %v", id, err)
		} else {
			detail.DownloadURL = url
		}
	}
	return detail, nil
}

func (s *invoiceService) List(ctx context.Context, filters domain.InvoiceFilters, offset, limit int) ([]domain.Invoice, int, error) {
	return s.invoiceRepo.List(ctx, filters, offset, limit)
}

func (s *invoiceService) Delete(ctx context.Context, id uuid.UUID) error {
	inv, err := s.invoiceRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if inv.SourceKey != "" {
		if err := s.storage.Delete(ctx, inv.SourceBucket, inv.SourceKey); err != nil {
			log.Printf("invoiceService.Delete: failed to delete original for invoice %s: %v", id, err)
		}
	}
	return s.invoiceRepo.Delete(ctx, id)
}

func (s *invoiceService) extensionAllowed(ext string) bool {
	if _, ok := domain.AllowedExtensions[ext]; !ok {
		return false
	}
	if len(s.cfg.Extensions) == 0 {
		return true
	}
	for _, e := range s.cfg.Extensions {
		if e == ext {
			return true
		}
	}
	// tif is accepted wherever tiff is.
	return ext == "tif" && s.extensionAllowed("tiff")
}

// validateContent sniffs the document type and checks PDFs with the inspector.
// It returns the canonical MIME type of the document.
func (s *invoiceService) validateContent(data []byte) (string, error) {
	fileType, ok := domain.AllowedContentTypes[sniffContentType(data)]
	if !ok {
		return "", domain.ErrUnsupportedFileType
	}
	if fileType == domain.FileTypePDF {
		info, err := s.inspector.InspectPDF(data)
		if err != nil {
			return "", err
		}
		if info.Encrypted {
			return "", fmt.Errorf("%w: pdf is encrypted", domain.ErrInvalidDocument)
		}
		if s.cfg.MaxPDFPages > 0 && info.PageCount > s.cfg.MaxPDFPages {
			return "", domain.ErrTooManyPages
		}
	}
	contentType := domain.AllowedFileTypes[fileType]
	if err := extractor.CheckImageSize(contentType, data); err != nil {
		return "", err
	}
	return contentType, nil
}

// sniffContentType extends http.DetectContentType with TIFF, which it does not recognise.
func sniffContentType(data []byte) string {
	if bytes.HasPrefix(data, []byte("II*\x00")) || bytes.HasPrefix(data, []byte("MM\x00*")) {
		return "image/tiff"
	}
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	ct := http.DetectContentType(head)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return ct
}

func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("reading upload: %w", err)
		}
		return data, nil
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, domain.ErrFileTooLarge
	}
	return data, nil
}

func failureMessage(result *port.ExtractResult) string {
	if result.Err != nil {
		return result.Err.Error()
	}
	return string(result.Failure)
}
