package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"invoicelens/internal/domain"
)

// MockExtractionRepo is a mock implementation of port.ExtractionRepository.
type MockExtractionRepo struct {
	mock.Mock
}

func (m *MockExtractionRepo) Create(ctx context.Context, e *domain.Extraction) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockExtractionRepo) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]domain.Extraction, error) {
	args := m.Called(ctx, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Extraction), args.Error(1)
}

func (m *MockExtractionRepo) LatestSuccessful(ctx context.Context, invoiceID uuid.UUID) (*domain.Extraction, error) {
	args := m.Called(ctx, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Extraction), args.Error(1)
}
