package ingest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidArgument marks caller contract violations: the payload is not a mapping
// or the tolerance is negative. Business data problems are never reported this way.
var ErrInvalidArgument = errors.New("invalid argument")

// CanonicalLineItem is a validated line item.
type CanonicalLineItem struct {
	Description string `json:"description"`
	Qty         Amount `json:"qty"`
	UnitPrice   Amount `json:"unit_price"`
	LineTotal   Amount `json:"line_total"`
}

// CanonicalInvoice is the storage-ready result of normalizing a payload.
type CanonicalInvoice struct {
	Vendor     string              `json:"vendor"`
	InvoiceNo  string              `json:"invoice_no"`
	Date       *string             `json:"date"`
	Subtotal   Amount              `json:"subtotal"`
	Tax        Amount              `json:"tax"`
	Total      Amount              `json:"total"`
	Currency   string              `json:"currency"`
	LineItems  []CanonicalLineItem `json:"line_items"`
	Confidence float64             `json:"confidence"`
	Anomalies  []Anomaly           `json:"anomalies"`
}

// Has reports whether an anomaly of the given kind was raised.
func (c *CanonicalInvoice) Has(kind AnomalyKind) bool {
	for i := range c.Anomalies {
		if c.Anomalies[i].Kind == kind {
			return true
		}
	}
	return false
}

// Flagged reports whether any anomaly was raised.
func (c *CanonicalInvoice) Flagged() bool { return len(c.Anomalies) > 0 }

// MaxSeverity returns the highest anomaly score, or 0 when there are none.
func (c *CanonicalInvoice) MaxSeverity() float64 {
	var max float64
	for i := range c.Anomalies {
		if s := c.Anomalies[i].Score(); s > max {
			max = s
		}
	}
	return max
}

// Validator turns untrusted extraction payloads into canonical invoices.
// It holds no mutable state and is safe for concurrent use.
type Validator struct {
	policy Policy
}

// NewValidator creates a Validator with the given policy.
func NewValidator(policy Policy) (*Validator, error) {
	if err := policy.validate(); err != nil {
		return nil, err
	}
	if policy.Currencies == nil {
		policy.Currencies = KnownCurrencies
	}
	return &Validator{policy: policy}, nil
}

var defaultValidator = &Validator{policy: DefaultPolicy()}

// Normalize normalizes raw with the default policy and tolerance.
func Normalize(raw any) (*CanonicalInvoice, error) {
	return defaultValidator.Normalize(raw, DefaultTolerance)
}

// Policy returns the policy the validator applies.
func (v *Validator) Policy() Policy { return v.policy }

// NormalizeJSON decodes data as a payload and normalizes it.
func (v *Validator) NormalizeJSON(data []byte, tolerance decimal.Decimal) (*CanonicalInvoice, error) {
	p, err := DecodePayload(data)
	if err != nil {
		return nil, err
	}
	return v.Normalize(p, tolerance)
}

// Normalize coerces every field of raw independently, runs the consistency checks and
// scores the result. It fails only when raw is not a mapping or tolerance is negative.
func (v *Validator) Normalize(raw any, tolerance decimal.Decimal) (*CanonicalInvoice, error) {
	m, ok := asMapping(raw)
	if !ok {
		return nil, fmt.Errorf("%w: payload is %s, want a mapping", ErrInvalidArgument, jsonKind(raw))
	}
	if tolerance.IsNegative() {
		return nil, fmt.Errorf("%w: tolerance %s is negative", ErrInvalidArgument, tolerance)
	}

	n := &normalization{
		policy:    v.policy,
		tolerance: tolerance,
		anomalies: newAnomalySet(),
	}
	out := n.coerce(m)
	n.checkInvoice(out)
	n.checkLineItems(out)

	out.Anomalies = n.anomalies.list()
	out.Confidence = n.confidence(out)
	return out, nil
}

// normalization carries the per-call state of one Normalize pass.
type normalization struct {
	policy    Policy
	tolerance decimal.Decimal
	anomalies *anomalySet

	invalidFields int
	failingLines  map[int]bool
}

func (n *normalization) coerce(m map[string]any) *CanonicalInvoice {
	out := &CanonicalInvoice{
		Vendor:    n.text(m, KeyVendor),
		InvoiceNo: n.text(m, KeyInvoiceNo),
		Subtotal:  n.amount(m, KeySubtotal),
		Tax:       n.amount(m, KeyTax),
		Total:     n.amount(m, KeyTotal),
		Currency:  n.policy.DefaultCurrency,
	}

	if raw, ok := lookup(m, KeyDate); ok {
		date, state := coerceDate(raw)
		if state == fieldInvalid {
			n.invalidFields++
			n.anomalies.add(Anomaly{
				Kind:    AnomalyUnparseableDate,
				Field:   KeyDate,
				Message: fmt.Sprintf("date %q matches no known format", fmt.Sprint(raw)),
			})
		}
		out.Date = date
	}

	if raw, ok := lookup(m, KeyCurrency); ok {
		code, state := coerceCurrency(raw, n.policy.Currencies, n.policy.DefaultCurrency)
		if state == fieldInvalid {
			n.invalidFields++
		}
		out.Currency = code
	}

	out.LineItems = n.lineItems(m)
	return out
}

func (n *normalization) text(m map[string]any, key string) string {
	raw, ok := lookup(m, key)
	if !ok {
		return ""
	}
	s, state := coerceString(raw)
	if state == fieldInvalid {
		n.invalidFields++
	}
	return s
}

func (n *normalization) amount(m map[string]any, key string) Amount {
	raw, ok := lookup(m, key)
	if !ok {
		return NullAmount()
	}
	a, state := coerceAmount(raw)
	if state == fieldInvalid {
		n.invalidFields++
	}
	return a
}

func (n *normalization) lineItems(m map[string]any) []CanonicalLineItem {
	items := []CanonicalLineItem{}
	raw, ok := lookup(m, KeyLineItems)
	if !ok {
		return items
	}

	var list []any
	switch l := raw.(type) {
	case []any:
		list = l
	case []map[string]any:
		list = make([]any, len(l))
		for i := range l {
			list[i] = l[i]
		}
	case []Payload:
		list = make([]any, len(l))
		for i := range l {
			list[i] = l[i]
		}
	default:
		n.invalidFields++
		return items
	}

	for _, entry := range list {
		im, ok := asMapping(entry)
		if !ok {
			// Kept as an empty item so that indices still line up with the source.
			n.invalidFields++
			items = append(items, CanonicalLineItem{})
			continue
		}
		items = append(items, CanonicalLineItem{
			Description: n.text(im, KeyDescription),
			Qty:         n.amount(im, KeyQty),
			UnitPrice:   n.amount(im, KeyUnitPrice),
			LineTotal:   n.amount(im, KeyLineTotal),
		})
	}
	return items
}

func (n *normalization) checkInvoice(out *CanonicalInvoice) {
	if out.Vendor == "" {
		n.anomalies.add(Anomaly{Kind: AnomalyEmptyVendor, Field: KeyVendor, Message: "vendor is empty"})
	}

	if !out.Total.Valid() {
		n.anomalies.add(Anomaly{Kind: AnomalyMissingTotal, Field: KeyTotal, Message: "total is missing"})
	} else if out.Subtotal.Valid() && out.Tax.Valid() {
		expected := NewAmount(out.Subtotal.Decimal().Add(out.Tax.Decimal()))
		if n.exceedsTolerance(expected, out.Total) {
			n.anomalies.add(Anomaly{
				Kind:     AnomalyTotalMismatch,
				Field:    KeyTotal,
				Expected: storable(expected),
				Actual:   out.Total,
				Message:  fmt.Sprintf("subtotal + tax = %s, total is %s", expected, out.Total),
			})
		}
	}

	var negatives []string
	for _, f := range []struct {
		name  string
		value Amount
	}{
		{KeySubtotal, out.Subtotal},
		{KeyTax, out.Tax},
		{KeyTotal, out.Total},
	} {
		if f.value.IsNegative() {
			negatives = append(negatives, f.name)
		}
	}
	if len(negatives) > 0 {
		n.anomalies.add(Anomaly{
			Kind:    AnomalyNegativeAmount,
			Field:   negatives[0],
			Message: "negative amount in " + strings.Join(negatives, ", "),
		})
	}

	if out.Total.Valid() && !out.Total.IsNegative() &&
		out.Total.Decimal().GreaterThanOrEqual(n.policy.RoundNumberThreshold) &&
		out.Total.Decimal().Mod(decimal.NewFromInt(100)).IsZero() {
		n.anomalies.add(Anomaly{
			Kind:    AnomalySuspiciousRoundNumber,
			Field:   KeyTotal,
			Actual:  out.Total,
			Message: fmt.Sprintf("total %s is a suspiciously round number", out.Total),
		})
	}
}

func (n *normalization) checkLineItems(out *CanonicalInvoice) {
	n.failingLines = make(map[int]bool)
	for i := range out.LineItems {
		item := &out.LineItems[i]

		var negatives []string
		for _, f := range []struct {
			name  string
			value Amount
		}{
			{KeyQty, item.Qty},
			{KeyUnitPrice, item.UnitPrice},
			{KeyLineTotal, item.LineTotal},
		} {
			if f.value.IsNegative() {
				negatives = append(negatives, f.name)
			}
		}
		if len(negatives) > 0 {
			n.anomalies.add(Anomaly{
				Kind:      AnomalyNegativeAmount,
				LineIndex: lineIndex(i),
				Field:     negatives[0],
				Message:   fmt.Sprintf("line item %d: negative amount in %s", i, strings.Join(negatives, ", ")),
			})
		}

		if !item.Qty.Valid() || !item.UnitPrice.Valid() || !item.LineTotal.Valid() {
			continue
		}
		expected := NewAmount(item.Qty.Decimal().Mul(item.UnitPrice.Decimal()))
		if n.exceedsTolerance(expected, item.LineTotal) {
			n.anomalies.add(Anomaly{
				Kind:      AnomalyLineItemMismatch,
				LineIndex: lineIndex(i),
				Field:     KeyLineTotal,
				Expected:  storable(expected),
				Actual:    item.LineTotal,
				Message:   fmt.Sprintf("line item %d: qty x unit_price = %s, line_total is %s", i, expected, item.LineTotal),
			})
			n.failingLines[i] = true
		}
	}
}

func (n *normalization) exceedsTolerance(expected, actual Amount) bool {
	return expected.Decimal().Sub(actual.Decimal()).Abs().GreaterThan(n.tolerance)
}

func (n *normalization) confidence(out *CanonicalInvoice) float64 {
	missing := 0
	if out.Vendor == "" {
		missing++
	}
	if out.InvoiceNo == "" {
		missing++
	}
	if out.Date == nil {
		missing++
	}
	if !out.Total.Valid() {
		missing++
	}

	penalty := n.policy.MissingFieldPenalty.Mul(decimal.NewFromInt(int64(missing))).
		Add(n.policy.InvalidFieldPenalty.Mul(decimal.NewFromInt(int64(n.invalidFields)))).
		Add(n.policy.AnomalyPenalty.Mul(decimal.NewFromInt(int64(len(out.Anomalies))))).
		Add(n.policy.LineItemPenalty.Mul(decimal.NewFromInt(int64(len(n.failingLines)))))

	score := decimal.NewFromInt(1).Sub(penalty)
	if score.IsNegative() {
		score = decimal.Zero
	}
	f, _ := score.Round(4).Float64()
	return f
}

// storable drops a derived amount that is too large to persist.
func storable(a Amount) Amount {
	if !a.InRange() {
		return NullAmount()
	}
	return a
}
