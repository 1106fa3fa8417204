package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"invoicelens/internal/domain"
)

func TestWhereClause_Empty(t *testing.T) {
	clause, args := whereClause(domain.InvoiceFilters{}, "")
	assert.Empty(t, clause)
	assert.Nil(t, args)
}

func TestWhereClause_AllFilters(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	flagged := true

	clause, args := whereClause(domain.InvoiceFilters{
		Vendor:   "50%_Off",
		DateFrom: &from,
		DateTo:   &to,
		Flagged:  &flagged,
		Status:   domain.InvoiceStatusProcessed,
	}, "i")

	assert.Equal(t,
		" WHERE i.vendor ILIKE $1 AND i.invoice_date >= $2 AND i.invoice_date <= $3 AND i.flagged = $4 AND i.status = $5",
		clause)
	assert.Equal(t, []interface{}{`%50\%\_Off%`, "2024-01-01", "2024-01-31", true, "processed"}, args)
}
