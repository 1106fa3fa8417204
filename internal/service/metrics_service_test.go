package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"invoicelens/internal/domain"
	"invoicelens/internal/ingest"
	"invoicelens/internal/service"
	"invoicelens/mocks"
)

func newMetricsService(repo *mocks.MockMetricsRepo) service.MetricsService {
	svc := service.NewMetricsService(repo)
	service.SetMetricsServiceClock(svc, func() time.Time { return fixedNow })
	return svc
}

func TestMetricsService_KPIs(t *testing.T) {
	repo := new(mocks.MockMetricsRepo)
	repo.On("KPICounts", mock.Anything).Return(&domain.KPICounts{
		TotalInvoices:   3,
		ProcessedCount:  2,
		FlaggedInvoices: 1,
		TotalValue:      1234.567,
		AvgConfidence:   0.8333,
		TotalAnomalies:  4,
	}, nil)

	kpis, err := newMetricsService(repo).KPIs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &domain.KPIs{
		TotalInvoices:   3,
		TotalValue:      1234.57,
		SuccessRate:     66.7,
		TotalAnomalies:  4,
		FlaggedInvoices: 1,
		AvgConfidence:   0.83,
	}, kpis)
}

func TestMetricsService_KPIs_Empty(t *testing.T) {
	repo := new(mocks.MockMetricsRepo)
	repo.On("KPICounts", mock.Anything).Return(&domain.KPICounts{}, nil)

	kpis, err := newMetricsService(repo).KPIs(context.Background())
	require.NoError(t, err)
	assert.Zero(t, kpis.SuccessRate)
}

func TestMetricsService_TopVendors_DefaultLimit(t *testing.T) {
	repo := new(mocks.MockMetricsRepo)
	repo.On("TopVendors", mock.Anything, 10).Return([]domain.VendorTotal{
		{Vendor: "Acme", Value: 300.125, Count: 2},
		{Vendor: "Globex", Value: 100, Count: 1},
	}, nil)

	out, err := newMetricsService(repo).TopVendors(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Acme", "Globex"}, out.Vendors)
	assert.Equal(t, []float64{300.13, 100}, out.Values)
	assert.Equal(t, []int{2, 1}, out.Counts)
}

func TestMetricsService_TimeSeries_ZeroFilled(t *testing.T) {
	repo := new(mocks.MockMetricsRepo)
	start := fixedNow.AddDate(0, 0, -3)
	repo.On("DailyTotals", mock.Anything, start, fixedNow).Return([]domain.PeriodTotal{
		{Period: time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC), Count: 2, Value: 50.556},
		{Period: time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), Count: 1, Value: 10},
	}, nil)

	out, err := newMetricsService(repo).TimeSeries(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-06", "2024-03-07", "2024-03-08", "2024-03-09"}, out.Labels)
	assert.Equal(t, []int{0, 2, 0, 1}, out.Counts)
	assert.Equal(t, []float64{0, 50.56, 0, 10}, out.Values)
}

func TestMetricsService_WindowsAreClamped(t *testing.T) {
	repo := new(mocks.MockMetricsRepo)
	repo.On("DailyTotals", mock.Anything, fixedNow.AddDate(0, 0, -service.MaxSeriesDays), fixedNow).
		Return([]domain.PeriodTotal{}, nil)
	repo.On("MonthlyTotals", mock.Anything, fixedNow.AddDate(0, 0, -service.MaxTrendMonths*30)).
		Return([]domain.PeriodTotal{}, nil)
	svc := newMetricsService(repo)

	series, err := svc.TimeSeries(context.Background(), 1<<62)
	require.NoError(t, err)
	assert.Len(t, series.Labels, service.MaxSeriesDays+1)

	_, err = svc.MonthlyTrends(context.Background(), 1<<40)
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestMetricsService_VendorPerformance_SortedByValue(t *testing.T) {
	repo := new(mocks.MockMetricsRepo)
	repo.On("VendorPerformance", mock.Anything).Return([]domain.VendorPerformance{
		{Vendor: "Small", TotalValue: 10, AvgInvoiceValue: 10},
		{Vendor: "Big", TotalValue: 999.999, AvgInvoiceValue: 333.333},
	}, nil)

	rows, err := newMetricsService(repo).VendorPerformance(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Big", rows[0].Vendor)
	assert.Equal(t, 1000.0, rows[0].TotalValue)
	assert.Equal(t, 333.33, rows[0].AvgInvoiceValue)
}

func TestMetricsService_ExtractionAccuracy(t *testing.T) {
	repo := new(mocks.MockMetricsRepo)
	repo.On("ExtractionMethodStats", mock.Anything, domain.HighConfidenceScore).Return([]domain.MethodStats{
		{Method: "gemini", Count: 3, AvgConfidence: 0.8666, HighCount: 2},
		{Method: "import", Count: 1, AvgConfidence: 0.5, HighCount: 0},
	}, nil)

	out, err := newMetricsService(repo).ExtractionAccuracy(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, out.TotalExtractions)
	assert.Equal(t, 50.0, out.HighConfidenceRate)
	assert.Equal(t, 0.87, out.Methods["gemini"].AvgConfidence)
	assert.Equal(t, 1, out.Methods["import"].Count)
}

func TestMetricsService_AnomalySummary(t *testing.T) {
	repo := new(mocks.MockMetricsRepo)
	repo.On("AnomalyCounts", mock.Anything, ingest.HighSeverityScore).
		Return(&domain.AnomalySummaryCounts{Total: 3, HighSeverity: 1}, nil)
	repo.On("AnomalyFieldBreakdown", mock.Anything).Return([]domain.FieldAnomalyCount{
		{Field: "total", Count: 2, AvgScore: 0.756},
		{Field: "vendor", Count: 1, AvgScore: 0.5},
	}, nil)

	out, err := newMetricsService(repo).AnomalySummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, out.TotalAnomalies)
	assert.Equal(t, 33.3, out.HighSeverityRate)
	assert.Equal(t, 0.76, out.FieldBreakdown[0].AvgScore)
}

func TestMetricsService_MonthlyTrends(t *testing.T) {
	repo := new(mocks.MockMetricsRepo)
	repo.On("MonthlyTotals", mock.Anything, fixedNow.AddDate(0, 0, -60)).Return([]domain.PeriodTotal{
		{Period: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Count: 4, Value: 400},
		{Period: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Count: 1, Value: 12.346},
	}, nil)

	out, err := newMetricsService(repo).MonthlyTrends(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01", "2024-03"}, out.Labels)
	assert.Equal(t, []float64{400, 12.35}, out.Values)
}

func TestMetricsService_Dashboard(t *testing.T) {
	repo := new(mocks.MockMetricsRepo)
	repo.On("KPICounts", mock.Anything).Return(&domain.KPICounts{TotalInvoices: 1, ProcessedCount: 1}, nil)
	repo.On("TopVendors", mock.Anything, 10).Return([]domain.VendorTotal{}, nil)
	repo.On("DailyTotals", mock.Anything, mock.Anything, mock.Anything).Return([]domain.PeriodTotal{}, nil)

	out, err := newMetricsService(repo).Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100.0, out.KPIs.SuccessRate)
	assert.Empty(t, out.TopVendors.Vendors)
	assert.Len(t, out.TimeSeries.Labels, 31)
}

func TestMetricsService_Dashboard_PropagatesError(t *testing.T) {
	repo := new(mocks.MockMetricsRepo)
	repo.On("KPICounts", mock.Anything).Return(nil, errors.New("db down"))
	repo.On("TopVendors", mock.Anything, 10).Return([]domain.VendorTotal{}, nil).Maybe()
	repo.On("DailyTotals", mock.Anything, mock.Anything, mock.Anything).Return([]domain.PeriodTotal{}, nil).Maybe()

	_, err := newMetricsService(repo).Dashboard(context.Background())
	assert.EqualError(t, err, "db down")
}
