package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"invoicelens/internal/domain"
	"invoicelens/internal/service"
)

// MetricsHandler serves the dashboard analytics endpoints.
type MetricsHandler struct {
	metricsService service.MetricsService
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(metricsService service.MetricsService) *MetricsHandler {
	return &MetricsHandler{metricsService: metricsService}
}

// KPIs handles GET /api/v1/metrics/kpis
// @Summary Headline KPIs
// @Tags metrics
// @Produce json
// @Success 200 {object} Response{data=domain.KPIs} "KPIs"
// @Failure 401 {object} ErrorResponseBody "Unauthorized"
// @Security ApiKeyAuth
// @Router /metrics/kpis [get]
func (h *MetricsHandler) KPIs(c *gin.Context) {
	kpis, err := h.metricsService.KPIs(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, kpis)
}

// TopVendors handles GET /api/v1/metrics/top_vendors
// @Summary Top vendors by total value
// @Tags metrics
// @Produce json
// @Param limit query int false "Number of vendors" default(10)
// @Success 200 {object} Response{data=domain.TopVendors} "Top vendors"
// @Failure 400 {object} ErrorResponseBody "Invalid limit"
// @Security ApiKeyAuth
// @Router /metrics/top_vendors [get]
func (h *MetricsHandler) TopVendors(c *gin.Context) {
	limit, err := parsePositiveInt(c, "limit")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	vendors, err := h.metricsService.TopVendors(c.Request.Context(), limit)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, vendors)
}

// TimeSeries handles GET /api/v1/metrics/time_series
// @Summary Daily invoice counts and values
// @Description One entry per day, days without invoices are zero-filled
// @Tags metrics
// @Produce json
// @Param days query int false "Number of days" default(30)
// @Success 200 {object} Response{data=domain.Series} "Daily series"
// @Failure 400 {object} ErrorResponseBody "Invalid days or more than 3650"
// @Security ApiKeyAuth
// @Router /metrics/time_series [get]
func (h *MetricsHandler) TimeSeries(c *gin.Context) {
	days, err := parsePositiveInt(c, "days")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	if days > service.MaxSeriesDays {
		HandleError(c, fmt.Errorf("%w: days must be at most %d", domain.ErrInvalidFilter, service.MaxSeriesDays))
		return
	}
	series, err := h.metricsService.TimeSeries(c.Request.Context(), days)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, series)
}

// VendorPerformance handles GET /api/v1/metrics/vendors
// @Summary Per-vendor performance
// @Tags metrics
// @Produce json
// @Success 200 {object} Response{data=[]domain.VendorPerformance} "Vendor performance"
// @Security ApiKeyAuth
// @Router /metrics/vendors [get]
func (h *MetricsHandler) VendorPerformance(c *gin.Context) {
	rows, err := h.metricsService.VendorPerformance(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, rows)
}

// ExtractionAccuracy handles GET /api/v1/metrics/extraction_accuracy
// @Summary Extraction confidence by method
// @Tags metrics
// @Produce json
// @Success 200 {object} Response{data=domain.ExtractionAccuracy} "Extraction accuracy"
// @Security ApiKeyAuth
// @Router /metrics/extraction_accuracy [get]
func (h *MetricsHandler) ExtractionAccuracy(c *gin.Context) {
	acc, err := h.metricsService.ExtractionAccuracy(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, acc)
}

// AnomalySummary handles GET /api/v1/metrics/anomalies
// @Summary Anomaly summary
// @Tags metrics
// @Produce json
// @Success 200 {object} Response{data=domain.AnomalySummary} "Anomaly summary"
// @Security ApiKeyAuth
// @Router /metrics/anomalies [get]
func (h *MetricsHandler) AnomalySummary(c *gin.Context) {
	summary, err := h.metricsService.AnomalySummary(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, summary)
}

// MonthlyTrends handles GET /api/v1/metrics/monthly_trends
// @Summary Monthly invoice counts and values
// @Tags metrics
// @Produce json
// @Param months query int false "Number of months" default(12)
// @Success 200 {object} Response{data=domain.Series} "Monthly series"
// @Failure 400 {object} ErrorResponseBody "Invalid months or more than 120"
// @Security ApiKeyAuth
// @Router /metrics/monthly_trends [get]
func (h *MetricsHandler) MonthlyTrends(c *gin.Context) {
	months, err := parsePositiveInt(c, "months")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	if months > service.MaxTrendMonths {
		HandleError(c, fmt.Errorf("%w: months must be at most %d", domain.ErrInvalidFilter, service.MaxTrendMonths))
		return
	}
	series, err := h.metricsService.MonthlyTrends(c.Request.Context(), months)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, series)
}

// Dashboard handles GET /api/v1/metrics/dashboard
// @Summary Dashboard bundle
// @Description KPIs, top vendors and the 30 day series in one response
// @Tags metrics
// @Produce json
// @Success 200 {object} Response{data=domain.Dashboard} "Dashboard"
// @Security ApiKeyAuth
// @Router /metrics/dashboard [get]
func (h *MetricsHandler) Dashboard(c *gin.Context) {
	dash, err := h.metricsService.Dashboard(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, dash)
}
