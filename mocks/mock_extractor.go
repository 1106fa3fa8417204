package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"invoicelens/internal/port"
)

// MockExtractor is a mock implementation of port.Extractor.
type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) Extract(ctx context.Context, input port.ExtractInput) *port.ExtractResult {
	args := m.Called(ctx, input)
	return args.Get(0).(*port.ExtractResult)
}
