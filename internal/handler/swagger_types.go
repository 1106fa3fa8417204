package handler

// Swagger type definitions for API documentation.
// These types are used by swag to generate OpenAPI documentation.

// --- Request Types ---

// RawExtractionPayload is the loosely typed payload accepted by the normalize endpoint.
// Amounts may be numbers or strings such as "$1,234.50"; unknown keys are ignored.
type RawExtractionPayload struct {
	Vendor    string             `json:"vendor" example:"Acme Supplies"`
	InvoiceNo string             `json:"invoice_no" example:"INV-2024-0042"`
	Date      string             `json:"date" example:"03/09/2024"`
	Subtotal  string             `json:"subtotal" example:"80.00"`
	Tax       string             `json:"tax" example:"8.00"`
	Total     string             `json:"total" example:"$88.00"`
	Currency  string             `json:"currency" example:"USD"`
	LineItems []RawLineItemEntry `json:"line_items"`
}

// RawLineItemEntry is a single line item of a raw extraction payload.
type RawLineItemEntry struct {
	Description string `json:"description" example:"Printer paper"`
	Qty         string `json:"qty" example:"4"`
	UnitPrice   string `json:"unit_price" example:"20.00"`
	LineTotal   string `json:"line_total" example:"80.00"`
}

// --- Response Types ---

// CanonicalInvoiceDoc documents the normalized invoice returned by the normalize endpoint.
type CanonicalInvoiceDoc struct {
	Vendor     string                 `json:"vendor" example:"Acme Supplies"`
	InvoiceNo  string                 `json:"invoice_no" example:"INV-2024-0042"`
	Date       *string                `json:"date" example:"2024-03-09"`
	Subtotal   *float64               `json:"subtotal" example:"80.00"`
	Tax        *float64               `json:"tax" example:"8.00"`
	Total      *float64               `json:"total" example:"88.00"`
	Currency   string                 `json:"currency" example:"USD"`
	LineItems  []CanonicalLineItemDoc `json:"line_items"`
	Confidence float64                `json:"confidence" example:"0.92"`
	Anomalies  []AnomalyDoc           `json:"anomalies"`
}

// CanonicalLineItemDoc documents a normalized line item.
type CanonicalLineItemDoc struct {
	Description string   `json:"description" example:"Printer paper"`
	Qty         *float64 `json:"qty" example:"4"`
	UnitPrice   *float64 `json:"unit_price" example:"20.00"`
	LineTotal   *float64 `json:"line_total" example:"80.00"`
}

// AnomalyDoc documents a single anomaly flag.
type AnomalyDoc struct {
	Kind      string   `json:"kind" example:"total_mismatch"`
	LineIndex *int     `json:"line_index,omitempty"`
	Field     string   `json:"field" example:"total"`
	Expected  *float64 `json:"expected" example:"88.00"`
	Actual    *float64 `json:"actual" example:"95.00"`
	Message   string   `json:"message" example:"subtotal + tax = 88.00, total is 95.00"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status string `json:"status" example:"ok"`
	Error  string `json:"error,omitempty" example:"database not reachable"`
}

// MessageResponse represents a simple message response.
type MessageResponse struct {
	Message string `json:"message" example:"invoice deleted"`
}

// --- Generic Response Wrappers ---

// Response wraps a successful response with data.
type Response struct {
	Success bool        `json:"success" example:"true"`
	Data    interface{} `json:"data,omitempty"`
	Meta    *PagMeta    `json:"meta,omitempty"`
}

// ErrorResponseBody wraps an error response.
type ErrorResponseBody struct {
	Success bool      `json:"success" example:"false"`
	Error   *APIError `json:"error"`
}
