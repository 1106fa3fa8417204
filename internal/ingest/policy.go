package ingest

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultTolerance is the absolute deviation allowed before a consistency check fails.
var DefaultTolerance = decimal.New(1, -2)

// DefaultCurrency is used when the payload carries no recognizable currency.
const DefaultCurrency = "USD"

// KnownCurrencies is the ISO 4217 subset accepted as-is from a payload.
var KnownCurrencies = map[string]bool{
	"INR": true, "USD": true, "EUR": true, "GBP": true, "JPY": true,
	"AUD": true, "CAD": true, "CHF": true, "CNY": true, "SGD": true,
	"AED": true, "SAR": true, "HKD": true, "MYR": true, "THB": true,
	"NZD": true, "SEK": true, "NOK": true, "DKK": true, "ZAR": true,
	"MXN": true, "BRL": true, "KRW": true, "PLN": true, "TRY": true,
}

// Policy holds the confidence weights and thresholds applied during normalization.
type Policy struct {
	// MissingFieldPenalty is charged per required field (vendor, invoice_no, date, total)
	// that ends up empty or null.
	MissingFieldPenalty decimal.Decimal
	// InvalidFieldPenalty is charged per field that was present but could not be coerced.
	InvalidFieldPenalty decimal.Decimal
	// AnomalyPenalty is charged per anomaly raised.
	AnomalyPenalty decimal.Decimal
	// LineItemPenalty is charged per line item failing a consistency check.
	LineItemPenalty decimal.Decimal
	// RoundNumberThreshold is the smallest total that can be flagged as a suspicious
	// round number. Totals at or above it that are exact multiples of 100 are flagged.
	RoundNumberThreshold decimal.Decimal

	DefaultCurrency string
	Currencies      map[string]bool
}

// DefaultPolicy returns the weights documented in DESIGN.md.
func DefaultPolicy() Policy {
	return Policy{
		MissingFieldPenalty:  decimal.RequireFromString("0.15"),
		InvalidFieldPenalty:  decimal.RequireFromString("0.05"),
		AnomalyPenalty:       decimal.RequireFromString("0.10"),
		LineItemPenalty:      decimal.RequireFromString("0.05"),
		RoundNumberThreshold: decimal.NewFromInt(1000),
		DefaultCurrency:      DefaultCurrency,
		Currencies:           KnownCurrencies,
	}
}

func (p Policy) validate() error {
	weights := map[string]decimal.Decimal{
		"missing field penalty": p.MissingFieldPenalty,
		"invalid field penalty": p.InvalidFieldPenalty,
		"anomaly penalty":       p.AnomalyPenalty,
		"line item penalty":     p.LineItemPenalty,
	}
	for name, w := range weights {
		if w.IsNegative() {
			return fmt.Errorf("%w: %s is negative (%s)", ErrInvalidArgument, name, w)
		}
	}
	if p.RoundNumberThreshold.IsNegative() {
		return fmt.Errorf("%w: round number threshold is negative", ErrInvalidArgument)
	}
	if len(p.DefaultCurrency) != 3 {
		return fmt.Errorf("%w: default currency %q is not a 3-letter code", ErrInvalidArgument, p.DefaultCurrency)
	}
	return nil
}
