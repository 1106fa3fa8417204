package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Payload keys read by the validator.
const (
	KeyVendor    = "vendor"
	KeyInvoiceNo = "invoice_no"
	KeyDate      = "date"
	KeySubtotal  = "subtotal"
	KeyTax       = "tax"
	KeyTotal     = "total"
	KeyCurrency  = "currency"
	KeyLineItems = "line_items"

	KeyDescription = "description"
	KeyQty         = "qty"
	KeyUnitPrice   = "unit_price"
	KeyLineTotal   = "line_total"
)

// Payload is the untrusted mapping returned by an extraction call.
// Nothing about its shape is assumed: any key may be missing or carry a value of any type.
type Payload map[string]any

// DecodePayload decodes a JSON object into a Payload, keeping numbers as json.Number
// so that amounts are never routed through float64.
func DecodePayload(data []byte) (Payload, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: decoding payload: %v", ErrInvalidArgument, err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: payload is %s, want a JSON object", ErrInvalidArgument, jsonKind(v))
	}
	return Payload(m), nil
}

// asMapping reports whether v is a mapping the validator can read.
func asMapping(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case Payload:
		return m, true
	case map[string]any:
		return m, true
	default:
		return nil, false
	}
}

// lookup returns the value under key and whether the key carries something other than null.
func lookup(m map[string]any, key string) (any, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "an array"
	case string:
		return "a string"
	case json.Number, float64:
		return "a number"
	case bool:
		return "a boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}
