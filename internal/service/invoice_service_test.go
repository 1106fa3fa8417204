package service_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"image"
	"mime/multipart"
	"net/textproto"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"

	"invoicelens/internal/domain"
	"invoicelens/internal/ingest"
	"invoicelens/internal/port"
	"invoicelens/internal/service"
	"invoicelens/mocks"
)

var fixedNow = time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)

type invoiceFixture struct {
	invoiceRepo    *mocks.MockInvoiceRepo
	extractionRepo *mocks.MockExtractionRepo
	storage        *mocks.MockObjectStorage
	extractor      *mocks.MockExtractor
	inspector      *mocks.MockDocumentInspector
	notifier       *mocks.MockNotifier
	svc            service.InvoiceService
}

func testInvoiceConfig() service.InvoiceServiceConfig {
	return service.InvoiceServiceConfig{
		Bucket:            "test-bucket",
		PresignExpiry:     900,
		MaxBytes:          1 << 20,
		Extensions:        []string{"png", "jpg", "jpeg", "tiff", "bmp", "pdf"},
		MaxPDFPages:       5,
		ProcessingTimeout: time.Minute,
		MaxAttempts:       3,
		NotifyMinScore:    0.7,
		Tolerance:         ingest.DefaultTolerance,
	}
}

func newInvoiceFixture(t *testing.T, cfg service.InvoiceServiceConfig) *invoiceFixture {
	t.Helper()
	validator, err := ingest.NewValidator(ingest.DefaultPolicy())
	require.NoError(t, err)

	f := &invoiceFixture{
		invoiceRepo:    new(mocks.MockInvoiceRepo),
		extractionRepo: new(mocks.MockExtractionRepo),
		storage:        new(mocks.MockObjectStorage),
		extractor:      new(mocks.MockExtractor),
		inspector:      new(mocks.MockDocumentInspector),
		notifier:       new(mocks.MockNotifier),
	}
	f.svc = service.NewInvoiceService(f.invoiceRepo, f.extractionRepo, f.storage, f.extractor,
		f.inspector, f.notifier, validator, cfg)
	service.SetInvoiceServiceClock(f.svc, func() time.Time { return fixedNow })
	return f
}

func (f *invoiceFixture) assertExpectations(t *testing.T) {
	f.invoiceRepo.AssertExpectations(t)
	f.extractionRepo.AssertExpectations(t)
	f.storage.AssertExpectations(t)
	f.extractor.AssertExpectations(t)
	f.inspector.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

// createMultipartFile creates a multipart file header and content for testing.
func createMultipartFile(t *testing.T, filename string, content []byte) (multipart.File, *multipart.FileHeader) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", "application/octet-stream")

	part, err := writer.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	reader := multipart.NewReader(body, writer.Boundary())
	form, err := reader.ReadForm(int64(len(content) + 1024))
	require.NoError(t, err)
	header := form.File["file"][0]
	file, err := header.Open()
	require.NoError(t, err)
	t.Cleanup(func() { _ = file.Close() })
	return file, header
}

func pngContent() []byte {
	header := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	return append(header, bytes.Repeat([]byte{0x00}, 100)...)
}

func pdfContent() []byte {
	return []byte("%PDF-1.4 test content that is at least a few bytes long for detection purposes")
}

func tiffContent() []byte {
	var buf bytes.Buffer
	if err := tiff.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8)), nil); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// oversizedBMP is a BMP header claiming 40000x40000 pixels with no pixel data.
func oversizedBMP() []byte {
	buf := new(bytes.Buffer)
	buf.WriteString("BM")
	_ = binary.Write(buf, binary.LittleEndian, []uint32{118, 0, 54, 40})
	_ = binary.Write(buf, binary.LittleEndian, []int32{40000, 40000})
	_ = binary.Write(buf, binary.LittleEndian, []uint16{1, 24})
	_ = binary.Write(buf, binary.LittleEndian, []uint32{0, 0, 2835, 2835, 0, 0})
	buf.Write(make([]byte, 64))
	return buf.Bytes()
}

// mismatchedPayload sums to 88 but claims a total of 95.
func mismatchedPayload() ingest.Payload {
	return ingest.Payload{
		"vendor":     "Acme Supplies",
		"invoice_no": "INV-1",
		"date":       "2024-03-01",
		"subtotal":   json.Number("80"),
		"tax":        json.Number("8"),
		"total":      json.Number("95"),
		"currency":   "usd",
	}
}

func cleanPayload() ingest.Payload {
	p := mismatchedPayload()
	p["total"] = json.Number("88")
	return p
}

func okResult(p ingest.Payload) *port.ExtractResult {
	return &port.ExtractResult{
		Payload: p,
		Raw:     json.RawMessage(`{"vendor_name":{"value":"Acme Supplies","confidence":0.9}}`),
		Model:   "gemini-1.5-flash",
		Method:  "gemini",
		Prompt:  "extract",
	}
}

func TestInvoiceService_Extract_ProcessedAndFlagged(t *testing.T) {
	f := newInvoiceFixture(t, testInvoiceConfig())
	file, header := createMultipartFile(t, "acme.png", pngContent())

	f.storage.On("Upload", mock.Anything, mock.MatchedBy(func(in port.UploadInput) bool {
		return in.Bucket == "test-bucket" && in.ContentType == "image/png" &&
			bytes.HasPrefix([]byte(in.Key), []byte("invoices/2024/03/")) && in.Metadata["invoice-id"] != ""
	})).Return(&port.UploadOutput{Location: "s3://test-bucket/x"}, nil)
	f.invoiceRepo.On("Create", mock.Anything, mock.MatchedBy(func(inv *domain.Invoice) bool {
		return inv.Status == domain.InvoiceStatusProcessing && inv.Attempts == 1
	})).Return(nil)
	f.extractor.On("Extract", mock.Anything, mock.MatchedBy(func(in port.ExtractInput) bool {
		return in.ContentType == "image/png" && in.Filename == "acme.png"
	})).Return(okResult(mismatchedPayload()))
	f.extractionRepo.On("Create", mock.Anything, mock.MatchedBy(func(e *domain.Extraction) bool {
		return e.Method == domain.ExtractionMethodGemini && e.Failure == "" && e.Confidence != nil
	})).Return(nil)
	f.invoiceRepo.On("SaveNormalized", mock.Anything, mock.AnythingOfType("port.NormalizedInvoice")).Return(nil)
	f.notifier.On("NotifyFlagged", mock.Anything, mock.MatchedBy(func(a port.FlaggedInvoiceAlert) bool {
		return a.Vendor == "Acme Supplies" && a.Total == "95.00" && len(a.Reasons) == 1 && a.MaxScore == 0.8
	})).Return(nil)

	detail, err := f.svc.Extract(context.Background(), service.ExtractInvoiceInput{File: file, Header: header})
	require.NoError(t, err)

	assert.Equal(t, domain.InvoiceStatusProcessed, detail.Invoice.Status)
	assert.True(t, detail.Invoice.Flagged)
	assert.Equal(t, "USD", detail.Invoice.Currency)
	assert.Equal(t, "2024-03-01", detail.Invoice.InvoiceDate.String())
	require.Len(t, detail.Anomalies, 1)
	assert.Equal(t, ingest.AnomalyTotalMismatch, detail.Anomalies[0].Kind)
	f.assertExpectations(t)
}

func TestInvoiceService_Extract_CleanInvoiceDoesNotNotify(t *testing.T) {
	f := newInvoiceFixture(t, testInvoiceConfig())
	file, header := createMultipartFile(t, "acme.png", pngContent())

	f.storage.On("Upload", mock.Anything, mock.Anything).Return(&port.UploadOutput{}, nil)
	f.invoiceRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.extractor.On("Extract", mock.Anything, mock.Anything).Return(okResult(cleanPayload()))
	f.extractionRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.invoiceRepo.On("SaveNormalized", mock.Anything, mock.Anything).Return(nil)

	detail, err := f.svc.Extract(context.Background(), service.ExtractInvoiceInput{File: file, Header: header})
	require.NoError(t, err)

	assert.False(t, detail.Invoice.Flagged)
	assert.Empty(t, detail.Anomalies)
	require.NotNil(t, detail.Invoice.Confidence)
	assert.InDelta(t, 1.0, *detail.Invoice.Confidence, 1e-9)
	f.notifier.AssertNotCalled(t, "NotifyFlagged", mock.Anything, mock.Anything)
}

func TestInvoiceService_Extract_RateLimitedIsQueued(t *testing.T) {
	f := newInvoiceFixture(t, testInvoiceConfig())
	file, header := createMultipartFile(t, "acme.png", pngContent())

	f.storage.On("Upload", mock.Anything, mock.Anything).Return(&port.UploadOutput{}, nil)
	f.invoiceRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.extractor.On("Extract", mock.Anything, mock.Anything).Return(&port.ExtractResult{
		Method:     "gemini",
		Failure:    port.FailureRateLimited,
		RetryAfter: 30 * time.Second,
		Err:        errors.New("quota exceeded"),
	})
	f.extractionRepo.On("Create", mock.Anything, mock.MatchedBy(func(e *domain.Extraction) bool {
		return e.Failure == string(port.FailureRateLimited) && e.Error == "quota exceeded"
	})).Return(nil)
	f.invoiceRepo.On("UpdateStatus", mock.Anything, mock.MatchedBy(func(inv *domain.Invoice) bool {
		return inv.Status == domain.InvoiceStatusQueued
	})).Return(nil)

	detail, err := f.svc.Extract(context.Background(), service.ExtractInvoiceInput{File: file, Header: header})
	require.NoError(t, err)

	assert.Equal(t, domain.InvoiceStatusQueued, detail.Invoice.Status)
	require.NotNil(t, detail.Invoice.RetryAfter)
	assert.Equal(t, fixedNow.Add(30*time.Second), *detail.Invoice.RetryAfter)
	assert.Equal(t, "rate_limited", detail.Invoice.Failure)
	f.invoiceRepo.AssertNotCalled(t, "SaveNormalized", mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestInvoiceService_Extract_RateLimitedAtAttemptLimitFails(t *testing.T) {
	cfg := testInvoiceConfig()
	cfg.MaxAttempts = 1
	f := newInvoiceFixture(t, cfg)
	file, header := createMultipartFile(t, "acme.png", pngContent())

	f.storage.On("Upload", mock.Anything, mock.Anything).Return(&port.UploadOutput{}, nil)
	f.invoiceRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.extractor.On("Extract", mock.Anything, mock.Anything).Return(&port.ExtractResult{
		Failure: port.FailureRateLimited,
	})
	f.extractionRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.invoiceRepo.On("UpdateStatus", mock.Anything, mock.MatchedBy(func(inv *domain.Invoice) bool {
		return inv.Status == domain.InvoiceStatusFailed && inv.RetryAfter == nil
	})).Return(nil)

	_, err := f.svc.Extract(context.Background(), service.ExtractInvoiceInput{File: file, Header: header})
	assert.ErrorIs(t, err, domain.ErrExtractionFailed)
	f.assertExpectations(t)
}

func TestInvoiceService_Extract_MalformedFails(t *testing.T) {
	f := newInvoiceFixture(t, testInvoiceConfig())
	file, header := createMultipartFile(t, "acme.png", pngContent())

	f.storage.On("Upload", mock.Anything, mock.Anything).Return(&port.UploadOutput{}, nil)
	f.invoiceRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.extractor.On("Extract", mock.Anything, mock.Anything).Return(&port.ExtractResult{
		Failure: port.FailureMalformedResponse,
		Err:     errors.New("not json"),
	})
	f.extractionRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.invoiceRepo.On("UpdateStatus", mock.Anything, mock.MatchedBy(func(inv *domain.Invoice) bool {
		return inv.Status == domain.InvoiceStatusFailed && inv.Failure == "malformed_response"
	})).Return(nil)

	_, err := f.svc.Extract(context.Background(), service.ExtractInvoiceInput{File: file, Header: header})
	assert.ErrorIs(t, err, domain.ErrExtractionFailed)
	f.assertExpectations(t)
}

func TestInvoiceService_Extract_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  []byte
		setup    func(f *invoiceFixture)
		wantErr  error
	}{
		{name: "extension", filename: "notes.txt", content: []byte("hello"), wantErr: domain.ErrUnsupportedFileType},
		{name: "sniffed type", filename: "fake.png", content: []byte("plain text pretending to be an image"), wantErr: domain.ErrUnsupportedFileType},
		{name: "too large", filename: "big.png", content: append(pngContent(), make([]byte, 1<<20)...), wantErr: domain.ErrFileTooLarge},
		{
			name: "too many pages", filename: "long.pdf", content: pdfContent(),
			setup: func(f *invoiceFixture) {
				f.inspector.On("InspectPDF", mock.Anything).Return(&port.DocumentInfo{PageCount: 12}, nil)
			},
			wantErr: domain.ErrTooManyPages,
		},
		{
			name: "unreadable pdf", filename: "broken.pdf", content: pdfContent(),
			setup: func(f *invoiceFixture) {
				f.inspector.On("InspectPDF", mock.Anything).Return(nil, domain.ErrInvalidDocument)
			},
			wantErr: domain.ErrInvalidDocument,
		},
		{
			name: "encrypted pdf", filename: "locked.pdf", content: pdfContent(),
			setup: func(f *invoiceFixture) {
				f.inspector.On("InspectPDF", mock.Anything).Return(&port.DocumentInfo{PageCount: 1, Encrypted: true}, nil)
			},
			wantErr: domain.ErrInvalidDocument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newInvoiceFixture(t, testInvoiceConfig())
			if tt.setup != nil {
				tt.setup(f)
			}
			file, header := createMultipartFile(t, tt.filename, tt.content)

			_, err := f.svc.Extract(context.Background(), service.ExtractInvoiceInput{File: file, Header: header})
			assert.ErrorIs(t, err, tt.wantErr)
			f.storage.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
			f.invoiceRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		})
	}
}

func TestInvoiceService_Extract_ExtensionNotConfigured(t *testing.T) {
	cfg := testInvoiceConfig()
	cfg.Extensions = []string{"pdf"}
	f := newInvoiceFixture(t, cfg)
	file, header := createMultipartFile(t, "acme.png", pngContent())

	_, err := f.svc.Extract(context.Background(), service.ExtractInvoiceInput{File: file, Header: header})
	assert.ErrorIs(t, err, domain.ErrUnsupportedFileType)
}

func TestInvoiceService_Extract_TIFFIsSniffed(t *testing.T) {
	f := newInvoiceFixture(t, testInvoiceConfig())
	file, header := createMultipartFile(t, "scan.tif", tiffContent())

	f.storage.On("Upload", mock.Anything, mock.MatchedBy(func(in port.UploadInput) bool {
		return in.ContentType == "image/tiff"
	})).Return(&port.UploadOutput{}, nil)
	f.invoiceRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.extractor.On("Extract", mock.Anything, mock.Anything).Return(okResult(cleanPayload()))
	f.extractionRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.invoiceRepo.On("SaveNormalized", mock.Anything, mock.Anything).Return(nil)

	detail, err := f.svc.Extract(context.Background(), service.ExtractInvoiceInput{File: file, Header: header})
	require.NoError(t, err)
	assert.Equal(t, "image/tiff", detail.Invoice.ContentType)
	f.assertExpectations(t)
}

func TestInvoiceService_Extract_OversizedImageRejected(t *testing.T) {
	f := newInvoiceFixture(t, testInvoiceConfig())
	file, header := createMultipartFile(t, "scan.bmp", oversizedBMP())

	_, err := f.svc.Extract(context.Background(), service.ExtractInvoiceInput{File: file, Header: header})
	assert.ErrorIs(t, err, domain.ErrInvalidDocument)
	f.storage.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
	f.extractor.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)
}

func TestInvoiceService_Extract_UploadFailed(t *testing.T) {
	f := newInvoiceFixture(t, testInvoiceConfig())
	file, header := createMultipartFile(t, "acme.png", pngContent())

	f.storage.On("Upload", mock.Anything, mock.Anything).Return(nil, errors.New("s3 down"))

	_, err := f.svc.Extract(context.Background(), service.ExtractInvoiceInput{File: file, Header: header})
	assert.ErrorIs(t, err, domain.ErrUploadFailed)
	f.invoiceRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestInvoiceService_Extract_CreateFailureRemovesObject(t *testing.T) {
	f := newInvoiceFixture(t, testInvoiceConfig())
	file, header := createMultipartFile(t, "acme.png", pngContent())

	var key string
	f.storage.On("Upload", mock.Anything, mock.MatchedBy(func(in port.UploadInput) bool {
		key = in.Key
		return true
	})).Return(&port.UploadOutput{}, nil)
	f.invoiceRepo.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection refused"))
	f.storage.On("Delete", mock.Anything, "test-bucket", mock.MatchedBy(func(k string) bool {
		return k == key
	})).Return(nil)

	_, err := f.svc.Extract(context.Background(), service.ExtractInvoiceInput{File: file, Header: header})
	assert.ErrorContains(t, err, "creating invoice")
	f.extractor.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestInvoiceService_Extract_SaveFailureMarksFailed(t *testing.T) {
	f := newInvoiceFixture(t, testInvoiceConfig())
	file, header := createMultipartFile(t, "acme.png", pngContent())

	f.storage.On("Upload", mock.Anything, mock.Anything).Return(&port.UploadOutput{}, nil)
	f.invoiceRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.extractor.On("Extract", mock.Anything, mock.Anything).Return(okResult(cleanPayload()))
	f.extractionRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.invoiceRepo.On("SaveNormalized", mock.Anything, mock.Anything).Return(errors.New("numeric field overflow"))
	f.invoiceRepo.On("UpdateStatus", mock.Anything, mock.MatchedBy(func(inv *domain.Invoice) bool {
		return inv.Status == domain.InvoiceStatusFailed && inv.Failure == "upstream_error" &&
			inv.Vendor == "" && !inv.Total.Valid() && inv.Confidence == nil
	})).Return(nil)

	_, err := f.svc.Extract(context.Background(), service.ExtractInvoiceInput{File: file, Header: header})
	assert.ErrorContains(t, err, "numeric field overflow")
	f.notifier.AssertNotCalled(t, "NotifyFlagged", mock.Anything, mock.Anything)
	f.assertExpectations(t)
}

func TestInvoiceService_ProcessQueued_DownloadFailureMarksFailed(t *testing.T) {
	f := newInvoiceFixture(t, testInvoiceConfig())
	inv := &domain.Invoice{ID: uuid.New(), SourceBucket: "test-bucket", SourceKey: "k", Attempts: 2}

	f.storage.On("Download", mock.Anything, "test-bucket", "k").Return(nil, domain.ErrNotFound)
	f.invoiceRepo.On("UpdateStatus", mock.Anything, mock.MatchedBy(func(i *domain.Invoice) bool {
		return i.Status == domain.InvoiceStatusFailed && i.Failure == "upstream_error"
	})).Return(nil)

	err := f.svc.ProcessQueued(context.Background(), inv)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	f.assertExpectations(t)
}

func TestInvoiceService_ProcessQueued_Succeeds(t *testing.T) {
	f := newInvoiceFixture(t, testInvoiceConfig())
	inv := &domain.Invoice{ID: uuid.New(), SourceBucket: "test-bucket", SourceKey: "k",
		ContentType: "image/png", Status: domain.InvoiceStatusProcessing, Attempts: 2}

	f.storage.On("Download", mock.Anything, "test-bucket", "k").Return(pngContent(), nil)
	f.extractor.On("Extract", mock.Anything, mock.Anything).Return(okResult(cleanPayload()))
	f.extractionRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.invoiceRepo.On("SaveNormalized", mock.Anything, mock.MatchedBy(func(n port.NormalizedInvoice) bool {
		return n.Invoice.ID == inv.ID && n.Invoice.Attempts == 2 && n.Invoice.RetryAfter == nil
	})).Return(nil)

	require.NoError(t, f.svc.ProcessQueued(context.Background(), inv))
	assert.Equal(t, domain.InvoiceStatusProcessed, inv.Status)
	f.assertExpectations(t)
}

func TestInvoiceService_Reprocess(t *testing.T) {
	id := uuid.New()
	stored := &domain.Extraction{
		ID:         uuid.New(),
		InvoiceID:  id,
		JSONResult: json.RawMessage(`{"vendor":"Acme Supplies","invoice_no":"INV-1","date":"01/03/2024","total":88}`),
	}

	t.Run("replays stored extraction", func(t *testing.T) {
		f := newInvoiceFixture(t, testInvoiceConfig())
		f.invoiceRepo.On("GetByID", mock.Anything, id).
			Return(&domain.Invoice{ID: id, Status: domain.InvoiceStatusProcessed}, nil)
		f.extractionRepo.On("LatestSuccessful", mock.Anything, id).Return(stored, nil)
		f.invoiceRepo.On("SaveNormalized", mock.Anything, mock.Anything).Return(nil)

		detail, err := f.svc.Reprocess(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, "Acme Supplies", detail.Invoice.Vendor)
		assert.Equal(t, "88.00", detail.Invoice.Total.String())
		assert.Equal(t, stored, detail.LatestExtraction)
		f.notifier.AssertNotCalled(t, "NotifyFlagged", mock.Anything, mock.Anything)
	})

	t.Run("save failure keeps previous state", func(t *testing.T) {
		f := newInvoiceFixture(t, testInvoiceConfig())
		inv := &domain.Invoice{ID: id, Status: domain.InvoiceStatusFailed, Vendor: "Old Vendor"}
		f.invoiceRepo.On("GetByID", mock.Anything, id).Return(inv, nil)
		f.extractionRepo.On("LatestSuccessful", mock.Anything, id).Return(stored, nil)
		f.invoiceRepo.On("SaveNormalized", mock.Anything, mock.Anything).Return(errors.New("deadlock detected"))

		_, err := f.svc.Reprocess(context.Background(), id)
		assert.ErrorContains(t, err, "deadlock detected")
		assert.Equal(t, domain.InvoiceStatusFailed, inv.Status)
		assert.Equal(t, "Old Vendor", inv.Vendor)
		f.invoiceRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything)
	})

	t.Run("busy", func(t *testing.T) {
		f := newInvoiceFixture(t, testInvoiceConfig())
		f.invoiceRepo.On("GetByID", mock.Anything, id).
			Return(&domain.Invoice{ID: id, Status: domain.InvoiceStatusProcessing}, nil)

		_, err := f.svc.Reprocess(context.Background(), id)
		assert.ErrorIs(t, err, domain.ErrInvoiceBusy)
	})

	t.Run("never extracted", func(t *testing.T) {
		f := newInvoiceFixture(t, testInvoiceConfig())
		f.invoiceRepo.On("GetByID", mock.Anything, id).
			Return(&domain.Invoice{ID: id, Status: domain.InvoiceStatusFailed}, nil)
		f.extractionRepo.On("LatestSuccessful", mock.Anything, id).Return(nil, domain.ErrNotExtracted)

		_, err := f.svc.Reprocess(context.Background(), id)
		assert.ErrorIs(t, err, domain.ErrNotExtracted)
	})
}

func TestInvoiceService_Normalize(t *testing.T) {
	f := newInvoiceFixture(t, testInvoiceConfig())

	out, err := f.svc.Normalize(context.Background(), []byte(`{"vendor":"  ","total":1000}`))
	require.NoError(t, err)
	assert.True(t, out.Has(ingest.AnomalyEmptyVendor))
	assert.True(t, out.Has(ingest.AnomalySuspiciousRoundNumber))

	_, err = f.svc.Normalize(context.Background(), []byte(`[1,2,3]`))
	assert.ErrorIs(t, err, ingest.ErrInvalidArgument)
}

func TestInvoiceService_Import(t *testing.T) {
	doc := []byte(`{"ai_extraction":{"overall_confidence":0.75,"schema":{
		"vendor_name":{"value":"Globex","confidence":0.9},
		"invoice_number":{"value":"G-7","confidence":0.8},
		"total_amount":{"value":120.5,"confidence":0.7}}}}`)

	t.Run("dry run", func(t *testing.T) {
		f := newInvoiceFixture(t, testInvoiceConfig())
		res, err := f.svc.Import(context.Background(), service.ImportInput{Filename: "g7.json", Document: doc})
		require.NoError(t, err)
		assert.Nil(t, res.Invoice)
		assert.Equal(t, "Globex", res.Canonical.Vendor)
		assert.Equal(t, "120.50", res.Canonical.Total.String())
		f.invoiceRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("commit", func(t *testing.T) {
		f := newInvoiceFixture(t, testInvoiceConfig())
		f.invoiceRepo.On("Create", mock.Anything, mock.MatchedBy(func(inv *domain.Invoice) bool {
			return inv.Filename == "g7.json" && inv.SourceKey == ""
		})).Return(nil)
		f.extractionRepo.On("Create", mock.Anything, mock.MatchedBy(func(e *domain.Extraction) bool {
			return e.Method == domain.ExtractionMethodImport && e.Confidence != nil && *e.Confidence == 0.75
		})).Return(nil)
		f.invoiceRepo.On("SaveNormalized", mock.Anything, mock.Anything).Return(nil)

		res, err := f.svc.Import(context.Background(), service.ImportInput{Filename: "dir/g7.json", Document: doc, Commit: true})
		require.NoError(t, err)
		require.NotNil(t, res.Invoice)
		assert.Equal(t, domain.InvoiceStatusProcessed, res.Invoice.Status)
		f.assertExpectations(t)
	})

	t.Run("unreadable", func(t *testing.T) {
		f := newInvoiceFixture(t, testInvoiceConfig())
		_, err := f.svc.Import(context.Background(), service.ImportInput{Filename: "bad.json", Document: []byte("nope")})
		assert.ErrorIs(t, err, ingest.ErrInvalidArgument)
	})
}

func TestInvoiceService_GetByID(t *testing.T) {
	f := newInvoiceFixture(t, testInvoiceConfig())
	id := uuid.New()

	f.invoiceRepo.On("GetByID", mock.Anything, id).
		Return(&domain.Invoice{ID: id, SourceBucket: "test-bucket", SourceKey: "k"}, nil)
	f.invoiceRepo.On("ListLineItems", mock.Anything, id).Return([]domain.LineItem{{InvoiceID: id}}, nil)
	f.invoiceRepo.On("ListAnomalies", mock.Anything, id).Return([]domain.Anomaly{}, nil)
	f.extractionRepo.On("LatestSuccessful", mock.Anything, id).Return(nil, domain.ErrNotExtracted)
	f.storage.On("GetPresignedURL", mock.Anything, "test-bucket", "k", int64(900)).Return("https://signed", nil)

	detail, err := f.svc.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, detail.LineItems, 1)
	assert.Nil(t, detail.LatestExtraction)
	assert.Equal(t, "https://signed", detail.DownloadURL)
	f.assertExpectations(t)
}

func TestInvoiceService_GetByID_NotFound(t *testing.T) {
	f := newInvoiceFixture(t, testInvoiceConfig())
	id := uuid.New()
	f.invoiceRepo.On("GetByID", mock.Anything, id).Return(nil, domain.ErrNotFound)

	_, err := f.svc.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestInvoiceService_Delete(t *testing.T) {
	f := newInvoiceFixture(t, testInvoiceConfig())
	id := uuid.New()

	f.invoiceRepo.On("GetByID", mock.Anything, id).
		Return(&domain.Invoice{ID: id, SourceBucket: "test-bucket", SourceKey: "k"}, nil)
	f.storage.On("Delete", mock.Anything, "test-bucket", "k").Return(errors.New("transient"))
	f.invoiceRepo.On("Delete", mock.Anything, id).Return(nil)

	require.NoError(t, f.svc.Delete(context.Background(), id))
	f.assertExpectations(t)
}
