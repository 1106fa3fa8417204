package ingest

import "fmt"

// AnomalyKind names a detected internal inconsistency.
type AnomalyKind string

const (
	AnomalyMissingTotal          AnomalyKind = "missing_total"
	AnomalyTotalMismatch         AnomalyKind = "total_mismatch"
	AnomalyLineItemMismatch      AnomalyKind = "line_item_mismatch"
	AnomalyNegativeAmount        AnomalyKind = "negative_amount"
	AnomalyUnparseableDate       AnomalyKind = "unparseable_date"
	AnomalyEmptyVendor           AnomalyKind = "empty_vendor"
	AnomalySuspiciousRoundNumber AnomalyKind = "suspicious_round_number"
)

// AnomalyKinds lists every kind in reporting order.
var AnomalyKinds = []AnomalyKind{
	AnomalyMissingTotal,
	AnomalyTotalMismatch,
	AnomalyLineItemMismatch,
	AnomalyNegativeAmount,
	AnomalyUnparseableDate,
	AnomalyEmptyVendor,
	AnomalySuspiciousRoundNumber,
}

// severity scores in [0,1]; 0.7 and above counts as high severity.
var anomalySeverity = map[AnomalyKind]float64{
	AnomalyMissingTotal:          0.70,
	AnomalyTotalMismatch:         0.80,
	AnomalyLineItemMismatch:      0.60,
	AnomalyNegativeAmount:        0.90,
	AnomalyUnparseableDate:       0.40,
	AnomalyEmptyVendor:           0.50,
	AnomalySuspiciousRoundNumber: 0.30,
}

// HighSeverityScore is the score at or above which an anomaly is considered high severity.
const HighSeverityScore = 0.7

// Severity returns the severity score of the kind, or 0.5 for an unknown kind.
func (k AnomalyKind) Severity() float64 {
	if s, ok := anomalySeverity[k]; ok {
		return s
	}
	return 0.5
}

// Anomaly is one diagnostic flag raised during normalization.
// LineIndex is set for line item anomalies and nil for invoice level ones.
type Anomaly struct {
	Kind      AnomalyKind `json:"kind"`
	LineIndex *int        `json:"line_index,omitempty"`
	Field     string      `json:"field"`
	Expected  Amount      `json:"expected"`
	Actual    Amount      `json:"actual"`
	Message   string      `json:"message"`
}

// Score returns the severity score of the anomaly.
func (a Anomaly) Score() float64 { return a.Kind.Severity() }

// FieldPath returns the payload path the anomaly refers to, e.g. "line_items[2].line_total".
func (a Anomaly) FieldPath() string {
	if a.LineIndex == nil {
		return a.Field
	}
	return fmt.Sprintf("%s[%d].%s", KeyLineItems, *a.LineIndex, a.Field)
}

type anomalyKey struct {
	kind  AnomalyKind
	index int
}

// anomalySet keeps anomalies in the order they were raised and drops repeats of
// the same (kind, index) pair.
type anomalySet struct {
	seen  map[anomalyKey]bool
	items []Anomaly
}

func newAnomalySet() *anomalySet {
	return &anomalySet{seen: make(map[anomalyKey]bool)}
}

func (s *anomalySet) add(a Anomaly) bool {
	key := anomalyKey{kind: a.Kind, index: -1}
	if a.LineIndex != nil {
		key.index = *a.LineIndex
	}
	if s.seen[key] {
		return false
	}
	s.seen[key] = true
	s.items = append(s.items, a)
	return true
}

func (s *anomalySet) list() []Anomaly {
	out := make([]Anomaly, len(s.items))
	copy(out, s.items)
	return out
}

func lineIndex(i int) *int {
	return &i
}
