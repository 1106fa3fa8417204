package handler_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"invoicelens/internal/domain"
	"invoicelens/internal/handler"
	"invoicelens/mocks"
)

func metricsRequest(path string) (*httptest.ResponseRecorder, *gin.Context) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/api/v1/metrics/"+path, nil)
	return w, c
}

func TestMetricsHandler_KPIs(t *testing.T) {
	mockSvc := new(mocks.MockMetricsService)
	h := handler.NewMetricsHandler(mockSvc)
	mockSvc.On("KPIs", mock.Anything).Return(&domain.KPIs{TotalInvoices: 4, SuccessRate: 75}, nil)

	w, c := metricsRequest("kpis")
	h.KPIs(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_invoices":4`)
	assert.Contains(t, w.Body.String(), `"success_rate":75`)
}

func TestMetricsHandler_TopVendors_PassesLimit(t *testing.T) {
	mockSvc := new(mocks.MockMetricsService)
	h := handler.NewMetricsHandler(mockSvc)
	mockSvc.On("TopVendors", mock.Anything, 5).Return(&domain.TopVendors{
		Vendors: []string{"Acme"}, Values: []float64{100}, Counts: []int{2},
	}, nil)

	w, c := metricsRequest("top_vendors?limit=5")
	h.TopVendors(c)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestMetricsHandler_TimeSeries_DefaultDays(t *testing.T) {
	mockSvc := new(mocks.MockMetricsService)
	h := handler.NewMetricsHandler(mockSvc)
	mockSvc.On("TimeSeries", mock.Anything, 0).Return(&domain.Series{}, nil)

	w, c := metricsRequest("time_series")
	h.TimeSeries(c)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestMetricsHandler_InvalidQuery(t *testing.T) {
	tests := []struct {
		path string
		call func(h *handler.MetricsHandler, c *gin.Context)
	}{
		{"top_vendors?limit=abc", func(h *handler.MetricsHandler, c *gin.Context) { h.TopVendors(c) }},
		{"time_series?days=-1", func(h *handler.MetricsHandler, c *gin.Context) { h.TimeSeries(c) }},
		{"monthly_trends?months=0", func(h *handler.MetricsHandler, c *gin.Context) { h.MonthlyTrends(c) }},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			h := handler.NewMetricsHandler(new(mocks.MockMetricsService))
			w, c := metricsRequest(tt.path)

			tt.call(h, c)

			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestMetricsHandler_WindowAboveCap(t *testing.T) {
	tests := []struct {
		path string
		call func(h *handler.MetricsHandler, c *gin.Context)
	}{
		{"time_series?days=3651", func(h *handler.MetricsHandler, c *gin.Context) { h.TimeSeries(c) }},
		{"time_series?days=4611686018427387904", func(h *handler.MetricsHandler, c *gin.Context) { h.TimeSeries(c) }},
		{"monthly_trends?months=121", func(h *handler.MetricsHandler, c *gin.Context) { h.MonthlyTrends(c) }},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			mockSvc := new(mocks.MockMetricsService)
			h := handler.NewMetricsHandler(mockSvc)
			w, c := metricsRequest(tt.path)

			tt.call(h, c)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "INVALID_FILTER")
			mockSvc.AssertNotCalled(t, "TimeSeries", mock.Anything, mock.Anything)
			mockSvc.AssertNotCalled(t, "MonthlyTrends", mock.Anything, mock.Anything)
		})
	}
}

func TestMetricsHandler_TimeSeries_AtCap(t *testing.T) {
	mockSvc := new(mocks.MockMetricsService)
	h := handler.NewMetricsHandler(mockSvc)
	mockSvc.On("TimeSeries", mock.Anything, 3650).Return(&domain.Series{}, nil)

	w, c := metricsRequest("time_series?days=3650")
	h.TimeSeries(c)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestMetricsHandler_MonthlyTrends(t *testing.T) {
	mockSvc := new(mocks.MockMetricsService)
	h := handler.NewMetricsHandler(mockSvc)
	mockSvc.On("MonthlyTrends", mock.Anything, 6).Return(&domain.Series{Labels: []string{"2024-03"}}, nil)

	w, c := metricsRequest("monthly_trends?months=6")
	h.MonthlyTrends(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "2024-03")
}

func TestMetricsHandler_VendorsAccuracyAnomalies(t *testing.T) {
	mockSvc := new(mocks.MockMetricsService)
	h := handler.NewMetricsHandler(mockSvc)
	mockSvc.On("VendorPerformance", mock.Anything).Return([]domain.VendorPerformance{{Vendor: "Acme"}}, nil)
	mockSvc.On("ExtractionAccuracy", mock.Anything).Return(&domain.ExtractionAccuracy{
		TotalExtractions: 3,
		Methods:          map[string]domain.MethodStats{"gemini": {Count: 3}},
	}, nil)
	mockSvc.On("AnomalySummary", mock.Anything).Return(&domain.AnomalySummary{TotalAnomalies: 2}, nil)

	w, c := metricsRequest("vendors")
	h.VendorPerformance(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Acme")

	w, c = metricsRequest("extraction_accuracy")
	h.ExtractionAccuracy(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"gemini":{"count":3`)

	w, c = metricsRequest("anomalies")
	h.AnomalySummary(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_anomalies":2`)

	mockSvc.AssertExpectations(t)
}

func TestMetricsHandler_Dashboard_Error(t *testing.T) {
	mockSvc := new(mocks.MockMetricsService)
	h := handler.NewMetricsHandler(mockSvc)
	mockSvc.On("Dashboard", mock.Anything).Return(nil, errors.New("db down"))

	w, c := metricsRequest("dashboard")
	h.Dashboard(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "db down")
}
