package extractor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"invoicelens/internal/ingest"
)

type keyMapping struct {
	src, dst string
}

// schemaKeys maps the model's field names onto payload keys, in a fixed order so that
// confidence averaging is deterministic.
var schemaKeys = []keyMapping{
	{"vendor_name", ingest.KeyVendor},
	{"invoice_number", ingest.KeyInvoiceNo},
	{"invoice_date", ingest.KeyDate},
	{"subtotal", ingest.KeySubtotal},
	{"tax_amount", ingest.KeyTax},
	{"total_amount", ingest.KeyTotal},
	{"currency", ingest.KeyCurrency},
}

// lineItemKeys maps the model's line item field names onto payload keys.
var lineItemKeys = map[string]string{
	"description": ingest.KeyDescription,
	"quantity":    ingest.KeyQty,
	"unit_price":  ingest.KeyUnitPrice,
	"total":       ingest.KeyLineTotal,
}

// regexKeys maps the OCR regex extraction field names onto payload keys.
var regexKeys = []keyMapping{
	{"vendor", ingest.KeyVendor},
	{"invoice_no", ingest.KeyInvoiceNo},
	{"invoice_number", ingest.KeyInvoiceNo},
	{"date", ingest.KeyDate},
	{"total", ingest.KeyTotal},
}

// CleanResponseText strips markdown fences and surrounding prose from a model reply,
// keeping the outermost JSON object.
func CleanResponseText(text string) string {
	text = strings.TrimSpace(text)
	switch {
	case strings.HasPrefix(text, "```json"):
		text = text[len("```json"):]
	case strings.HasPrefix(text, "```"):
		text = text[len("```"):]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start != -1 && end > start {
		text = text[start : end+1]
	}
	return text
}

// ParseDocument cleans a model reply and decodes it as a JSON object.
// Numbers are kept as json.Number. Failures wrap ErrMalformedResponse.
func ParseDocument(text string) (map[string]any, json.RawMessage, error) {
	cleaned := CleanResponseText(text)
	if cleaned == "" {
		return nil, nil, fmt.Errorf("%w: empty response", ErrMalformedResponse)
	}
	dec := json.NewDecoder(strings.NewReader(cleaned))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, nil, fmt.Errorf("%w: %v (raw: %s)", ErrMalformedResponse, err, truncate(cleaned, 500))
	}
	if doc == nil {
		return nil, nil, fmt.Errorf("%w: response is not a JSON object", ErrMalformedResponse)
	}
	return doc, json.RawMessage(cleaned), nil
}

// FlattenSchema maps the model's {value, confidence} schema onto a flat payload and
// returns the mean of the reported field confidences (nil when none were reported).
func FlattenSchema(schema map[string]any) (ingest.Payload, *float64) {
	out := ingest.Payload{}
	var sum float64
	var n int

	for _, k := range schemaKeys {
		raw, ok := schema[k.src]
		if !ok {
			continue
		}
		value, conf, hasConf := unwrapField(raw)
		out[k.dst] = value
		if hasConf {
			sum += conf
			n++
		}
	}

	if raw, ok := schema["line_items"]; ok {
		value, conf, hasConf := unwrapField(raw)
		if hasConf {
			sum += conf
			n++
		}
		out[ingest.KeyLineItems] = flattenLineItems(value)
	}

	if n == 0 {
		return out, nil
	}
	mean := sum / float64(n)
	return out, &mean
}

func flattenLineItems(v any) any {
	list, ok := v.([]any)
	if !ok {
		return v
	}
	items := make([]any, 0, len(list))
	for _, entry := range list {
		m, ok := entry.(map[string]any)
		if !ok {
			items = append(items, entry)
			continue
		}
		item := map[string]any{}
		for src, dst := range lineItemKeys {
			if raw, ok := m[src]; ok {
				value, _, _ := unwrapField(raw)
				item[dst] = value
			}
		}
		// Items already in payload form pass through.
		for _, key := range []string{ingest.KeyQty, ingest.KeyLineTotal} {
			if raw, ok := m[key]; ok {
				if _, set := item[key]; !set {
					item[key] = raw
				}
			}
		}
		items = append(items, item)
	}
	return items
}

// unwrapField returns the value of a {value, confidence} wrapper, or v itself.
func unwrapField(v any) (value any, confidence float64, hasConfidence bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return v, 0, false
	}
	inner, ok := m["value"]
	if !ok {
		return v, 0, false
	}
	conf, ok := toFloat(m["confidence"])
	return inner, conf, ok
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// PayloadFromDocument turns a stored extraction document into a payload. It accepts a model
// reply in the field schema, an offline pipeline document carrying ai_extraction.schema and
// regex_extraction sections, or a payload that is already flat.
func PayloadFromDocument(doc map[string]any) (ingest.Payload, *float64) {
	if ai, ok := doc["ai_extraction"].(map[string]any); ok {
		schema, _ := ai["schema"].(map[string]any)
		payload, conf := FlattenSchema(schema)
		if overall, ok := toFloat(ai["overall_confidence"]); ok {
			conf = &overall
		}
		if regex, ok := doc["regex_extraction"].(map[string]any); ok && isBlank(payload[ingest.KeyVendor]) {
			copyRegexFields(payload, regex)
		}
		return payload, conf
	}

	if regex, ok := doc["regex_extraction"].(map[string]any); ok {
		payload := ingest.Payload{}
		copyRegexFields(payload, regex)
		conf, ok := toFloat(regex["confidence"])
		if !ok {
			return payload, nil
		}
		return payload, &conf
	}

	for _, k := range schemaKeys {
		if _, ok := doc[k.src]; ok {
			return FlattenSchema(doc)
		}
	}
	return ingest.Payload(doc), nil
}

func copyRegexFields(payload ingest.Payload, regex map[string]any) {
	for _, k := range regexKeys {
		if raw, ok := regex[k.src]; ok {
			value, _, _ := unwrapField(raw)
			payload[k.dst] = value
		}
	}
}

// DecodeDocument decodes stored JSON and converts it with PayloadFromDocument.
func DecodeDocument(data []byte) (ingest.Payload, *float64, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if doc == nil {
		return nil, nil, fmt.Errorf("%w: document is not a JSON object", ErrMalformedResponse)
	}
	payload, conf := PayloadFromDocument(doc)
	return payload, conf, nil
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
