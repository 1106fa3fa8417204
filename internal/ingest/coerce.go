package ingest

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// fieldState records how coercion of a single field went.
type fieldState int

const (
	fieldAbsent fieldState = iota
	fieldOK
	fieldInvalid
)

// dateLayouts are tried in order; the first successful parse wins.
var dateLayouts = []string{
	"2006-01-02",
	"2/1/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	"2-1-2006",
	"2006/1/2",
	"2.1.2006",
	time.RFC3339,
	"2006-01-02T15:04:05",
}

// isoDate is the canonical date layout.
const isoDate = "2006-01-02"

var (
	amountCore     = regexp.MustCompile(`^[0-9][0-9,.]*$`)
	thousandsComma = regexp.MustCompile(`^\d{1,3}(,\d{3})+$`)
	thousandsDot   = regexp.MustCompile(`^\d{1,3}(\.\d{3})+$`)
	groupingMarks  = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "", "'", "")
)

func coerceString(v any) (string, fieldState) {
	switch s := v.(type) {
	case string:
		s = strings.TrimSpace(s)
		if s == "" {
			return "", fieldAbsent
		}
		return s, fieldOK
	case json.Number:
		return s.String(), fieldOK
	case float64:
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return "", fieldInvalid
		}
		return strconv.FormatFloat(s, 'f', -1, 64), fieldOK
	case int:
		return strconv.Itoa(s), fieldOK
	case int64:
		return strconv.FormatInt(s, 10), fieldOK
	default:
		return "", fieldInvalid
	}
}

func coerceAmount(v any) (Amount, fieldState) {
	var (
		d   decimal.Decimal
		err error
	)
	switch n := v.(type) {
	case json.Number:
		d, err = decimal.NewFromString(n.String())
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return NullAmount(), fieldInvalid
		}
		d = decimal.NewFromFloat(n)
	case float32:
		f := float64(n)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return NullAmount(), fieldInvalid
		}
		d = decimal.NewFromFloat32(n)
	case int:
		d = decimal.NewFromInt(int64(n))
	case int32:
		d = decimal.NewFromInt32(n)
	case int64:
		d = decimal.NewFromInt(n)
	case decimal.Decimal:
		d = n
	case string:
		if strings.TrimSpace(n) == "" {
			return NullAmount(), fieldAbsent
		}
		var ok bool
		d, ok = parseAmountText(n)
		if !ok {
			return NullAmount(), fieldInvalid
		}
	default:
		return NullAmount(), fieldInvalid
	}
	if err != nil {
		return NullAmount(), fieldInvalid
	}
	a, ok := boundedAmount(d)
	if !ok {
		return NullAmount(), fieldInvalid
	}
	return a, fieldOK
}

// isAmountNoise matches characters that may surround an amount: currency symbols,
// currency codes and whitespace.
func isAmountNoise(r rune) bool {
	return unicode.IsSpace(r) || unicode.IsLetter(r) || unicode.Is(unicode.Sc, r)
}

// parseAmountText reads currency formatted text such as "$1,234.50", "EUR 12,50",
// "1.234,56 €" or "(50.00)".
func parseAmountText(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	s = strings.TrimFunc(s, isAmountNoise)
	switch {
	case strings.HasPrefix(s, "-"):
		neg = !neg
		s = s[1:]
	case strings.HasPrefix(s, "\u2212"):
		neg = !neg
		s = strings.TrimPrefix(s, "\u2212")
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	s = strings.TrimFunc(s, isAmountNoise)
	s = groupingMarks.Replace(s)

	if !amountCore.MatchString(s) {
		return decimal.Zero, false
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		switch {
		case thousandsComma.MatchString(s):
			s = strings.ReplaceAll(s, ",", "")
		case strings.Count(s, ",") == 1:
			s = strings.Replace(s, ",", ".", 1)
		default:
			return decimal.Zero, false
		}
	case strings.Count(s, ".") > 1:
		if !thousandsDot.MatchString(s) {
			return decimal.Zero, false
		}
		s = strings.ReplaceAll(s, ".", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if neg {
		d = d.Neg()
	}
	return d, true
}

func coerceDate(v any) (*string, fieldState) {
	var raw string
	switch t := v.(type) {
	case string:
		raw = strings.TrimSpace(t)
		if raw == "" {
			return nil, fieldAbsent
		}
	case time.Time:
		s := t.Format(isoDate)
		return &s, fieldOK
	default:
		return nil, fieldInvalid
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			s := parsed.Format(isoDate)
			return &s, fieldOK
		}
	}
	return nil, fieldInvalid
}

// currencySymbols maps common symbols to ISO 4217 codes.
var currencySymbols = map[string]string{
	"$":      "USD",
	"US$":    "USD",
	"\u20ac": "EUR",
	"\u00a3": "GBP",
	"\u00a5": "JPY",
	"\u20b9": "INR",
	"Rs":     "INR",
	"Rs.":    "INR",
}

func coerceCurrency(v any, known map[string]bool, fallback string) (string, fieldState) {
	s, ok := v.(string)
	if !ok {
		return fallback, fieldInvalid
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback, fieldAbsent
	}
	if code, ok := currencySymbols[s]; ok {
		return code, fieldOK
	}
	code := strings.ToUpper(s)
	if known[code] {
		return code, fieldOK
	}
	return fallback, fieldInvalid
}
