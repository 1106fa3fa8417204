package handler_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"invoicelens/internal/domain"
	"invoicelens/internal/handler"
	"invoicelens/internal/ingest"
)

func TestMapDomainError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{domain.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
		{domain.ErrAPIKeyRevoked, http.StatusUnauthorized, "API_KEY_REVOKED"},
		{domain.ErrInvalidDocument, http.StatusBadRequest, "INVALID_DOCUMENT"},
		{fmt.Errorf("wrapped: %w", domain.ErrNotExtracted), http.StatusConflict, "NOT_EXTRACTED"},
		{fmt.Errorf("%w: bad date", domain.ErrInvalidFilter), http.StatusBadRequest, "INVALID_FILTER"},
		{fmt.Errorf("%w: not an object", ingest.ErrInvalidArgument), http.StatusBadRequest, "INVALID_PAYLOAD"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			status, code, _ := handler.MapDomainError(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestMapDomainError_InternalMessageHidden(t *testing.T) {
	_, _, msg := handler.MapDomainError(errors.New("pq: password authentication failed"))
	assert.Equal(t, "an internal error occurred", msg)
}
