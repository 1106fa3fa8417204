package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"invoicelens/internal/domain"
)

// MockMetricsService is a mock implementation of service.MetricsService.
type MockMetricsService struct {
	mock.Mock
}

func (m *MockMetricsService) KPIs(ctx context.Context) (*domain.KPIs, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KPIs), args.Error(1)
}

func (m *MockMetricsService) TopVendors(ctx context.Context, limit int) (*domain.TopVendors, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TopVendors), args.Error(1)
}

func (m *MockMetricsService) TimeSeries(ctx context.Context, days int) (*domain.Series, error) {
	args := m.Called(ctx, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Series), args.Error(1)
}

func (m *MockMetricsService) VendorPerformance(ctx context.Context) ([]domain.VendorPerformance, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.VendorPerformance), args.Error(1)
}

func (m *MockMetricsService) ExtractionAccuracy(ctx context.Context) (*domain.ExtractionAccuracy, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ExtractionAccuracy), args.Error(1)
}

func (m *MockMetricsService) AnomalySummary(ctx context.Context) (*domain.AnomalySummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AnomalySummary), args.Error(1)
}

func (m *MockMetricsService) MonthlyTrends(ctx context.Context, months int) (*domain.Series, error) {
	args := m.Called(ctx, months)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Series), args.Error(1)
}

func (m *MockMetricsService) Dashboard(ctx context.Context) (*domain.Dashboard, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Dashboard), args.Error(1)
}
