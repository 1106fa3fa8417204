package ingest

import (
	"bytes"
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"
)

// amountPlaces is the fixed scale of every canonical amount.
const amountPlaces = 2

// Amount is a nullable decimal held at two decimal places.
// The zero value is null.
type Amount struct {
	value decimal.Decimal
	valid bool
}

const (
	// maxIntegerDigits is the most integer digits an amount may carry (NUMERIC(18,2)).
	maxIntegerDigits = 16
	// minAmountExponent bounds the fractional precision accepted before rounding.
	minAmountExponent = -32
)

// maxAmount is the exclusive upper bound on an amount's magnitude.
var maxAmount = decimal.New(1, maxIntegerDigits)

// boundedAmount rounds d to an Amount, rejecting values whose magnitude or precision
// cannot be stored. The exponent is checked before any rescaling so that inputs such as
// 1e10000000 are rejected without materializing their digits.
func boundedAmount(d decimal.Decimal) (Amount, bool) {
	if d.IsZero() {
		return NewAmount(decimal.Zero), true
	}
	exp := int(d.Exponent())
	if exp < minAmountExponent || exp > maxIntegerDigits || d.NumDigits()+exp > maxIntegerDigits {
		return NullAmount(), false
	}
	a := NewAmount(d)
	if !a.InRange() {
		return NullAmount(), false
	}
	return a, true
}

// InRange reports whether the amount is null or its magnitude is below 1e16.
func (a Amount) InRange() bool {
	return !a.valid || a.value.Abs().LessThan(maxAmount)
}

// NewAmount returns a present Amount rounded half-to-even to two places.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{value: d.RoundBank(amountPlaces), valid: true}
}

// AmountFromFloat is a convenience constructor used by tests and fixtures.
func AmountFromFloat(f float64) Amount {
	return NewAmount(decimal.NewFromFloat(f))
}

// NullAmount returns an absent Amount.
func NullAmount() Amount {
	return Amount{}
}

// Valid reports whether the amount is present.
func (a Amount) Valid() bool { return a.valid }

// Decimal returns the underlying value. It is zero when the amount is null.
func (a Amount) Decimal() decimal.Decimal { return a.value }

// Float64 returns the value as a float, or 0 when null.
func (a Amount) Float64() float64 {
	f, _ := a.value.Float64()
	return f
}

// IsNegative reports whether the amount is present and below zero.
func (a Amount) IsNegative() bool { return a.valid && a.value.IsNegative() }

// Equal reports whether two amounts are both null or hold the same value.
func (a Amount) Equal(b Amount) bool {
	if a.valid != b.valid {
		return false
	}
	return !a.valid || a.value.Equal(b.value)
}

// String renders the amount with exactly two decimals, or "null".
func (a Amount) String() string {
	if !a.valid {
		return "null"
	}
	return a.value.StringFixed(amountPlaces)
}

// MarshalJSON encodes the amount as a JSON number with two decimals, or null.
func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.valid {
		return []byte("null"), nil
	}
	return []byte(a.value.StringFixed(amountPlaces)), nil
}

// UnmarshalJSON accepts a JSON number, a quoted number, or null.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = Amount{}
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	*a = NewAmount(d)
	return nil
}

// Value implements driver.Valuer for NUMERIC columns.
func (a Amount) Value() (driver.Value, error) {
	if !a.valid {
		return nil, nil
	}
	return a.value.StringFixed(amountPlaces), nil
}

// Scan implements sql.Scanner for NUMERIC columns.
func (a *Amount) Scan(src interface{}) error {
	var nd decimal.NullDecimal
	if err := nd.Scan(src); err != nil {
		return fmt.Errorf("amount scan: %w", err)
	}
	if !nd.Valid {
		*a = Amount{}
		return nil
	}
	*a = NewAmount(nd.Decimal)
	return nil
}
