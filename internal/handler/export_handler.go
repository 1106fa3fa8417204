package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"invoicelens/internal/export"
	"invoicelens/internal/service"
)

// ExportHandler streams invoice exports as file downloads.
type ExportHandler struct {
	exportService service.ExportService
	now           func() time.Time
}

// NewExportHandler creates a new ExportHandler.
func NewExportHandler(exportService service.ExportService) *ExportHandler {
	return &ExportHandler{exportService: exportService, now: time.Now}
}

// CSV handles GET /api/v1/export/csv
// @Summary Export invoices as CSV
// @Description UTF-8 CSV with a byte order mark. Accepts the invoice list filters.
// @Tags export
// @Produce text/csv
// @Param detailed query bool false "Include confidence, flag and count columns"
// @Param vendor query string false "Vendor name (case-insensitive substring)"
// @Param date_from query string false "Earliest invoice date (YYYY-MM-DD)"
// @Param date_to query string false "Latest invoice date (YYYY-MM-DD)"
// @Param flagged query bool false "Only flagged or only clean invoices"
// @Param status query string false "Invoice status"
// @Success 200 {file} file "CSV file"
// @Failure 400 {object} ErrorResponseBody "Invalid filter"
// @Security ApiKeyAuth
// @Router /export/csv [get]
func (h *ExportHandler) CSV(c *gin.Context) {
	h.export(c, service.ExportFormatCSV)
}

// XLSX handles GET /api/v1/export/xlsx
// @Summary Export invoices as an Excel workbook
// @Tags export
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param detailed query bool false "Include confidence, flag and count columns"
// @Param vendor query string false "Vendor name (case-insensitive substring)"
// @Param date_from query string false "Earliest invoice date (YYYY-MM-DD)"
// @Param date_to query string false "Latest invoice date (YYYY-MM-DD)"
// @Param flagged query bool false "Only flagged or only clean invoices"
// @Param status query string false "Invoice status"
// @Success 200 {file} file "XLSX file"
// @Failure 400 {object} ErrorResponseBody "Invalid filter"
// @Security ApiKeyAuth
// @Router /export/xlsx [get]
func (h *ExportHandler) XLSX(c *gin.Context) {
	h.export(c, service.ExportFormatXLSX)
}

func (h *ExportHandler) export(c *gin.Context, format service.ExportFormat) {
	filters, err := parseInvoiceFilters(c)
	if err != nil {
		HandleError(c, err)
		return
	}
	detailed, _ := strconv.ParseBool(c.Query("detailed"))

	// Buffer so a failure part-way through still yields a JSON error.
	var buf bytes.Buffer
	if _, err := h.exportService.Export(c.Request.Context(), &buf, service.ExportRequest{
		Format:   format,
		Filters:  filters,
		Detailed: detailed,
	}); err != nil {
		HandleError(c, err)
		return
	}

	filename := export.BuildFilename(string(format), h.now())
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}
