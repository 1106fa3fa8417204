package mocks

import (
	"github.com/stretchr/testify/mock"

	"invoicelens/internal/port"
)

// MockDocumentInspector is a mock implementation of port.DocumentInspector.
type MockDocumentInspector struct {
	mock.Mock
}

func (m *MockDocumentInspector) InspectPDF(data []byte) (*port.DocumentInfo, error) {
	args := m.Called(data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.DocumentInfo), args.Error(1)
}
