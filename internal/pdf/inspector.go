// Package pdf inspects uploaded PDF documents before they are sent for extraction.
package pdf

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"invoicelens/internal/domain"
	"invoicelens/internal/port"
)

// Inspector implements port.DocumentInspector using pdfcpu.
type Inspector struct {
	conf *model.Configuration
}

// NewInspector creates an inspector that validates in relaxed mode, accepting the
// minor syntax deviations common in scanner and accounting-package output.
func NewInspector() *Inspector {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Inspector{conf: conf}
}

// InspectPDF reads and validates the document and reports its page count.
func (i *Inspector) InspectPDF(data []byte) (*port.DocumentInfo, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", domain.ErrInvalidDocument)
	}
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), i.conf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidDocument, err)
	}
	return &port.DocumentInfo{
		PageCount: ctx.PageCount,
		Encrypted: ctx.Encrypt != nil,
	}, nil
}
