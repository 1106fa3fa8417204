package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"invoicelens/internal/domain"
	"invoicelens/internal/service"
)

const filterDateLayout = "2006-01-02"

// maxNormalizeBody caps the JSON payload accepted by the dry-run endpoint.
const maxNormalizeBody = 1 << 20

// InvoiceHandler handles invoice upload, listing and normalization endpoints.
type InvoiceHandler struct {
	invoiceService service.InvoiceService
}

// NewInvoiceHandler creates a new InvoiceHandler.
func NewInvoiceHandler(invoiceService service.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoiceService: invoiceService}
}

// Extract handles POST /api/v1/invoices/extract
// @Summary Upload and extract an invoice
// @Description Upload an invoice (png, jpg, jpeg, tiff, bmp or pdf, max 16MB). The document is stored,
// @Description extracted and normalized; the response carries the canonical invoice and its anomalies.
// @Description A rate limited extraction is queued and answered with 202.
// @Tags invoices
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Invoice document"
// @Success 201 {object} Response{data=domain.InvoiceDetail} "Invoice processed"
// @Success 202 {object} Response{data=domain.InvoiceDetail} "Extraction queued for retry"
// @Failure 400 {object} ErrorResponseBody "Missing file, unsupported type or unreadable document"
// @Failure 401 {object} ErrorResponseBody "Unauthorized"
// @Failure 413 {object} ErrorResponseBody "File too large"
// @Failure 429 {object} ErrorResponseBody "Rate limit exceeded"
// @Failure 502 {object} ErrorResponseBody "Extraction failed"
// @Security ApiKeyAuth
// @Router /invoices/extract [post]
func (h *InvoiceHandler) Extract(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "MISSING_FILE", "file field is required")
		return
	}
	defer func() { _ = file.Close() }()

	detail, err := h.invoiceService.Extract(c.Request.Context(), service.ExtractInvoiceInput{
		File:   file,
		Header: header,
	})
	if err != nil {
		HandleError(c, err)
		return
	}

	if detail.Invoice.Status == domain.InvoiceStatusQueued {
		RespondAccepted(c, detail)
		return
	}
	RespondCreated(c, detail)
}

// List handles GET /api/v1/invoices
// @Summary List invoices
// @Description List invoices, newest first, with optional filters
// @Tags invoices
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Page size (max 100)" default(20)
// @Param vendor query string false "Vendor name (case-insensitive substring)"
// @Param date_from query string false "Earliest invoice date (YYYY-MM-DD)"
// @Param date_to query string false "Latest invoice date (YYYY-MM-DD)"
// @Param flagged query bool false "Only flagged or only clean invoices"
// @Param status query string false "Invoice status" Enums(pending, queued, processing, processed, failed)
// @Success 200 {object} Response{data=[]domain.Invoice,meta=PagMeta} "List of invoices"
// @Failure 400 {object} ErrorResponseBody "Invalid filter"
// @Failure 401 {object} ErrorResponseBody "Unauthorized"
// @Security ApiKeyAuth
// @Router /invoices [get]
func (h *InvoiceHandler) List(c *gin.Context) {
	filters, err := parseInvoiceFilters(c)
	if err != nil {
		HandleError(c, err)
		return
	}
	page, perPage := parsePagination(c)

	invoices, total, err := h.invoiceService.List(c.Request.Context(), filters, (page-1)*perPage, perPage)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondPaginated(c, invoices, PagMeta{Total: total, Page: page, PerPage: perPage})
}

// GetByID handles GET /api/v1/invoices/:id
// @Summary Get an invoice
// @Description Get an invoice with its line items, anomalies, latest extraction and a download URL
// @Tags invoices
// @Produce json
// @Param id path string true "Invoice ID"
// @Success 200 {object} Response{data=domain.InvoiceDetail} "Invoice details"
// @Failure 400 {object} ErrorResponseBody "Invalid ID"
// @Failure 404 {object} ErrorResponseBody "Invoice not found"
// @Security ApiKeyAuth
// @Router /invoices/{id} [get]
func (h *InvoiceHandler) GetByID(c *gin.Context) {
	id, ok := parseInvoiceID(c)
	if !ok {
		return
	}

	detail, err := h.invoiceService.GetByID(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, detail)
}

// Reprocess handles POST /api/v1/invoices/:id/reprocess
// @Summary Reprocess an invoice
// @Description Re-run normalization over the latest successful extraction
// @Tags invoices
// @Produce json
// @Param id path string true "Invoice ID"
// @Success 200 {object} Response{data=domain.InvoiceDetail} "Invoice reprocessed"
// @Failure 400 {object} ErrorResponseBody "Invalid ID"
// @Failure 404 {object} ErrorResponseBody "Invoice not found"
// @Failure 409 {object} ErrorResponseBody "Invoice busy or never extracted"
// @Security ApiKeyAuth
// @Router /invoices/{id}/reprocess [post]
func (h *InvoiceHandler) Reprocess(c *gin.Context) {
	id, ok := parseInvoiceID(c)
	if !ok {
		return
	}

	detail, err := h.invoiceService.Reprocess(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, detail)
}

// Delete handles DELETE /api/v1/invoices/:id
// @Summary Delete an invoice
// @Description Delete an invoice, its derived rows and the stored document
// @Tags invoices
// @Produce json
// @Param id path string true "Invoice ID"
// @Success 200 {object} Response{data=MessageResponse} "Invoice deleted"
// @Failure 400 {object} ErrorResponseBody "Invalid ID"
// @Failure 404 {object} ErrorResponseBody "Invoice not found"
// @Security ApiKeyAuth
// @Router /invoices/{id} [delete]
func (h *InvoiceHandler) Delete(c *gin.Context) {
	id, ok := parseInvoiceID(c)
	if !ok {
		return
	}

	if err := h.invoiceService.Delete(c.Request.Context(), id); err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, gin.H{"message": "invoice deleted"})
}

// Normalize handles POST /api/v1/normalize
// @Summary Normalize an extraction payload
// @Description Run the ingest validator over a raw extraction payload without persisting anything
// @Tags invoices
// @Accept json
// @Produce json
// @Param payload body RawExtractionPayload true "Raw extraction payload"
// @Success 200 {object} Response{data=CanonicalInvoiceDoc} "Canonical invoice"
// @Failure 400 {object} ErrorResponseBody "Payload is not a JSON object"
// @Security ApiKeyAuth
// @Router /normalize [post]
func (h *InvoiceHandler) Normalize(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxNormalizeBody)
	body, err := c.GetRawData()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "request body could not be read")
		return
	}

	canonical, err := h.invoiceService.Normalize(c.Request.Context(), body)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, canonical)
}

func parseInvoiceID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid invoice ID")
		return uuid.Nil, false
	}
	return id, true
}

// parseInvoiceFilters reads the list and export filters shared by several endpoints.
func parseInvoiceFilters(c *gin.Context) (domain.InvoiceFilters, error) {
	filters := domain.InvoiceFilters{Vendor: strings.TrimSpace(c.Query("vendor"))}

	for _, f := range []struct {
		key string
		dst **time.Time
	}{
		{"date_from", &filters.DateFrom},
		{"date_to", &filters.DateTo},
	} {
		raw := c.Query(f.key)
		if raw == "" {
			continue
		}
		t, err := time.Parse(filterDateLayout, raw)
		if err != nil {
			return filters, fmt.Errorf("%w: %s must be YYYY-MM-DD", domain.ErrInvalidFilter, f.key)
		}
		*f.dst = &t
	}
	if filters.DateFrom != nil && filters.DateTo != nil && filters.DateTo.Before(*filters.DateFrom) {
		return filters, fmt.Errorf("%w: date_to is before date_from", domain.ErrInvalidFilter)
	}

	if raw := c.Query("flagged"); raw != "" {
		flagged, err := strconv.ParseBool(raw)
		if err != nil {
			return filters, fmt.Errorf("%w: flagged must be true or false", domain.ErrInvalidFilter)
		}
		filters.Flagged = &flagged
	}

	if raw := c.Query("status"); raw != "" {
		status := domain.InvoiceStatus(strings.ToLower(raw))
		if !status.Valid() {
			return filters, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidFilter, raw)
		}
		filters.Status = status
	}

	return filters, nil
}
