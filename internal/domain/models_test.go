package domain_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicelens/internal/domain"
	"invoicelens/internal/ingest"
)

func strPtr(s string) *string { return &s }

func TestParseDate(t *testing.T) {
	d, err := domain.ParseDate(strPtr("2024-02-27"))
	require.NoError(t, err)
	assert.True(t, d.Valid)
	assert.Equal(t, "2024-02-27", d.String())

	d, err = domain.ParseDate(nil)
	require.NoError(t, err)
	assert.False(t, d.Valid)
	assert.Equal(t, "", d.String())

	_, err = domain.ParseDate(strPtr("27/02/2024"))
	assert.Error(t, err)
}

func TestDate_Scan(t *testing.T) {
	var d domain.Date

	require.NoError(t, d.Scan(time.Date(2024, 2, 27, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-02-27", d.String())

	require.NoError(t, d.Scan("2024-03-01T00:00:00Z"))
	assert.Equal(t, "2024-03-01", d.String())

	require.NoError(t, d.Scan([]byte("2024-03-02")))
	assert.Equal(t, "2024-03-02", d.String())

	require.NoError(t, d.Scan(nil))
	assert.False(t, d.Valid)

	assert.Error(t, d.Scan(42))
}

func TestDate_Value(t *testing.T) {
	v, err := domain.Date{}.Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	d, _ := domain.ParseDate(strPtr("2024-02-27"))
	v, err = d.Value()
	require.NoError(t, err)
	assert.Equal(t, "2024-02-27", v)
}

func TestDate_JSON(t *testing.T) {
	var out struct {
		A domain.Date `json:"a"`
		B domain.Date `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"2024-02-27","b":null}`), &out))
	assert.True(t, out.A.Valid)
	assert.False(t, out.B.Valid)

	data, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"2024-02-27","b":null}`, string(data))

	assert.Error(t, json.Unmarshal([]byte(`{"a":"Feb 27"}`), &out))
}

func TestInvoice_ApplyCanonical(t *testing.T) {
	c, err := ingest.Normalize(map[string]any{
		"vendor":     "Acme Supplies",
		"invoice_no": "INV-1",
		"date":       "2024-02-27",
		"subtotal":   "80.00",
		"tax":        "8.00",
		"total":      "95.00",
	})
	require.NoError(t, err)

	retry := time.Now()
	inv := &domain.Invoice{Status: domain.InvoiceStatusProcessing, RetryAfter: &retry, Failure: "rate_limited", Error: "429"}
	require.NoError(t, inv.ApplyCanonical(c))

	assert.Equal(t, domain.InvoiceStatusProcessed, inv.Status)
	assert.Equal(t, "Acme Supplies", inv.Vendor)
	assert.Equal(t, "2024-02-27", inv.InvoiceDate.String())
	assert.Equal(t, "95.00", inv.Total.String())
	assert.True(t, inv.Flagged)
	require.NotNil(t, inv.Confidence)
	assert.InDelta(t, c.Confidence, *inv.Confidence, 1e-9)
	assert.Nil(t, inv.RetryAfter)
	assert.Empty(t, inv.Failure)
	assert.Empty(t, inv.Error)
}

func TestNewLineItemsAndAnomalies(t *testing.T) {
	c, err := ingest.Normalize(map[string]any{
		"vendor": "Acme",
		"total":  "10.00",
		"line_items": []any{
			map[string]any{"description": "A", "qty": 2, "unit_price": "3.00", "line_total": "7.00"},
		},
	})
	require.NoError(t, err)

	id := uuid.New()
	items := domain.NewLineItems(id, c.LineItems)
	require.Len(t, items, 1)
	assert.Equal(t, id, items[0].InvoiceID)
	assert.Equal(t, 0, items[0].Position)
	assert.Equal(t, "A", items[0].Description)

	rows := domain.NewAnomalies(id, c.Anomalies)
	require.NotEmpty(t, rows)
	var found bool
	for _, r := range rows {
		assert.Equal(t, id, r.InvoiceID)
		assert.NotEqual(t, uuid.Nil, r.ID)
		if r.Kind == ingest.AnomalyLineItemMismatch {
			found = true
			assert.Equal(t, "line_items[0].line_total", r.Field)
			assert.InDelta(t, 0.6, r.Score, 1e-9)
		}
	}
	assert.True(t, found)
}

func TestExtraction_Succeeded(t *testing.T) {
	assert.True(t, (&domain.Extraction{JSONResult: json.RawMessage(`{}`)}).Succeeded())
	assert.False(t, (&domain.Extraction{JSONResult: json.RawMessage(`{}`), Failure: "timeout"}).Succeeded())
	assert.False(t, (&domain.Extraction{}).Succeeded())
}

func TestInvoiceStatus_Valid(t *testing.T) {
	assert.True(t, domain.InvoiceStatusQueued.Valid())
	assert.False(t, domain.InvoiceStatus("done").Valid())
}

func TestSourceKey(t *testing.T) {
	id := uuid.MustParse("33333333-3333-3333-3333-333333333333")
	at := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "invoices/2024/03/33333333-3333-3333-3333-333333333333/inv.pdf", domain.SourceKey(id, "inv.pdf", at))
}
