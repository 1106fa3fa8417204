package domain

import "time"

// KPIs are the headline dashboard numbers.
type KPIs struct {
	TotalInvoices   int     `json:"total_invoices"`
	TotalValue      float64 `json:"total_value"`
	SuccessRate     float64 `json:"success_rate"`
	TotalAnomalies  int     `json:"total_anomalies"`
	FlaggedInvoices int     `json:"flagged_invoices"`
	AvgConfidence   float64 `json:"avg_confidence"`
}

// KPICounts are the raw counts KPIs are derived from.
type KPICounts struct {
	TotalInvoices   int     `db:"total_invoices"`
	ProcessedCount  int     `db:"processed_count"`
	FlaggedInvoices int     `db:"flagged_invoices"`
	TotalValue      float64 `db:"total_value"`
	AvgConfidence   float64 `db:"avg_confidence"`
	TotalAnomalies  int     `db:"total_anomalies"`
}

// VendorTotal is one vendor's invoice count and value.
type VendorTotal struct {
	Vendor string  `db:"vendor"`
	Value  float64 `db:"total_value"`
	Count  int     `db:"invoice_count"`
}

// TopVendors is the chart-ready top vendors series.
type TopVendors struct {
	Vendors []string  `json:"vendors"`
	Values  []float64 `json:"values"`
	Counts  []int     `json:"counts"`
}

// PeriodTotal is the invoice count and value of one day or month.
type PeriodTotal struct {
	Period time.Time `db:"period"`
	Count  int       `db:"invoice_count"`
	Value  float64   `db:"total_value"`
}

// Series is a chart-ready labelled series.
type Series struct {
	Labels []string  `json:"labels"`
	Counts []int     `json:"counts"`
	Values []float64 `json:"values"`
}

// VendorPerformance summarises one vendor.
type VendorPerformance struct {
	Vendor          string     `db:"vendor" json:"vendor"`
	InvoiceCount    int        `db:"invoice_count" json:"invoice_count"`
	TotalValue      float64    `db:"total_value" json:"total_value"`
	AvgInvoiceValue float64    `db:"avg_invoice_value" json:"avg_invoice_value"`
	AvgConfidence   float64    `db:"avg_confidence" json:"avg_confidence"`
	FlaggedCount    int        `db:"flagged_count" json:"flagged_count"`
	FirstInvoice    *time.Time `db:"first_invoice" json:"first_invoice"`
	LastInvoice     *time.Time `db:"last_invoice" json:"last_invoice"`
}

// MethodStats summarises extractions produced by one method.
type MethodStats struct {
	Method        string  `db:"method" json:"-"`
	Count         int     `db:"extraction_count" json:"count"`
	AvgConfidence float64 `db:"avg_confidence" json:"avg_confidence"`
	HighCount     int     `db:"high_count" json:"-"`
}

// ExtractionAccuracy is the extraction confidence report.
type ExtractionAccuracy struct {
	TotalExtractions   int                    `json:"total_extractions"`
	HighConfidenceRate float64                `json:"high_confidence_rate"`
	Methods            map[string]MethodStats `json:"methods"`
}

// FieldAnomalyCount is the anomaly count for one field path.
type FieldAnomalyCount struct {
	Field    string  `db:"field" json:"field"`
	Count    int     `db:"anomaly_count" json:"count"`
	AvgScore float64 `db:"avg_score" json:"avg_score"`
}

// AnomalySummaryCounts are the raw anomaly totals.
type AnomalySummaryCounts struct {
	Total        int `db:"total"`
	HighSeverity int `db:"high_severity"`
}

// AnomalySummary is the anomaly report.
type AnomalySummary struct {
	TotalAnomalies   int                 `json:"total_anomalies"`
	HighSeverityRate float64             `json:"high_severity_rate"`
	FieldBreakdown   []FieldAnomalyCount `json:"field_breakdown"`
}

// Dashboard bundles the figures shown on the landing page.
type Dashboard struct {
	KPIs       *KPIs       `json:"kpis"`
	TopVendors *TopVendors `json:"top_vendors"`
	TimeSeries *Series     `json:"time_series"`
}
