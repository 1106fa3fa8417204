package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"invoicelens/internal/domain"
)

// MockMetricsRepo is a mock implementation of port.MetricsRepository.
type MockMetricsRepo struct {
	mock.Mock
}

func (m *MockMetricsRepo) KPICounts(ctx context.Context) (*domain.KPICounts, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KPICounts), args.Error(1)
}

func (m *MockMetricsRepo) TopVendors(ctx context.Context, limit int) ([]domain.VendorTotal, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.VendorTotal), args.Error(1)
}

func (m *MockMetricsRepo) DailyTotals(ctx context.Context, from, to time.Time) ([]domain.PeriodTotal, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PeriodTotal), args.Error(1)
}

func (m *MockMetricsRepo) MonthlyTotals(ctx context.Context, from time.Time) ([]domain.PeriodTotal, error) {
	args := m.Called(ctx, from)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PeriodTotal), args.Error(1)
}

func (m *MockMetricsRepo) VendorPerformance(ctx context.Context) ([]domain.VendorPerformance, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.VendorPerformance), args.Error(1)
}

func (m *MockMetricsRepo) ExtractionMethodStats(ctx context.Context, highConfidence float64) ([]domain.MethodStats, error) {
	args := m.Called(ctx, highConfidence)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.MethodStats), args.Error(1)
}

func (m *MockMetricsRepo) AnomalyCounts(ctx context.Context, highSeverity float64) (*domain.AnomalySummaryCounts, error) {
	args := m.Called(ctx, highSeverity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AnomalySummaryCounts), args.Error(1)
}

func (m *MockMetricsRepo) AnomalyFieldBreakdown(ctx context.Context) ([]domain.FieldAnomalyCount, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.FieldAnomalyCount), args.Error(1)
}
