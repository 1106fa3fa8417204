package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"invoicelens/internal/port"
)

// MockNotifier is a mock implementation of port.Notifier.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyFlagged(ctx context.Context, alert port.FlaggedInvoiceAlert) error {
	args := m.Called(ctx, alert)
	return args.Error(0)
}
