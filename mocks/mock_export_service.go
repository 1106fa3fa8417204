package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"invoicelens/internal/service"
)

// MockExportService is a mock implementation of service.ExportService.
// When WriteBody is set, Export writes it to w before returning.
type MockExportService struct {
	mock.Mock
	WriteBody []byte
}

func (m *MockExportService) Export(ctx context.Context, w io.Writer, req service.ExportRequest) (int, error) {
	args := m.Called(ctx, req)
	if args.Error(1) == nil && m.WriteBody != nil {
		if _, err := w.Write(m.WriteBody); err != nil {
			return 0, err
		}
	}
	return args.Int(0), args.Error(1)
}
