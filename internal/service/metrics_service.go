package service

import (
	"context"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"invoicelens/internal/domain"
	"invoicelens/internal/ingest"
	"invoicelens/internal/port"
)

const (
	defaultTopVendors  = 10
	defaultSeriesDays  = 30
	defaultTrendMonths = 12
)

// Upper bounds on the metrics windows. Larger requests are clamped.
const (
	MaxSeriesDays  = 3650
	MaxTrendMonths = 120
)

// MetricsService defines the analytics contract behind the dashboard.
type MetricsService interface {
	KPIs(ctx context.Context) (*domain.KPIs, error)
	TopVendors(ctx context.Context, limit int) (*domain.TopVendors, error)
	// TimeSeries returns one entry per day over the last days days, zero-filled.
	TimeSeries(ctx context.Context, days int) (*domain.Series, error)
	VendorPerformance(ctx context.Context) ([]domain.VendorPerformance, error)
	ExtractionAccuracy(ctx context.Context) (*domain.ExtractionAccuracy, error)
	AnomalySummary(ctx context.Context) (*domain.AnomalySummary, error)
	// MonthlyTrends returns one entry per month that has invoices, over the last months*30 days.
	MonthlyTrends(ctx context.Context, months int) (*domain.Series, error)
	// Dashboard fetches KPIs, top vendors and the default time series concurrently.
	Dashboard(ctx context.Context) (*domain.Dashboard, error)
}

type metricsService struct {
	repo port.MetricsRepository
	now  func() time.Time
}

// NewMetricsService creates a new MetricsService implementation.
func NewMetricsService(repo port.MetricsRepository) MetricsService {
	return &metricsService{repo: repo, now: time.Now}
}

func (s *metricsService) KPIs(ctx context.Context) (*domain.KPIs, error) {
	counts, err := s.repo.KPICounts(ctx)
	if err != nil {
		return nil, err
	}
	return &domain.KPIs{
		TotalInvoices:   counts.TotalInvoices,
		TotalValue:      round(counts.TotalValue, 2),
		SuccessRate:     percent(counts.ProcessedCount, counts.TotalInvoices),
		TotalAnomalies:  counts.TotalAnomalies,
		FlaggedInvoices: counts.FlaggedInvoices,
		AvgConfidence:   round(counts.AvgConfidence, 2),
	}, nil
}

func (s *metricsService) TopVendors(ctx context.Context, limit int) (*domain.TopVendors, error) {
	if limit <= 0 {
		limit = defaultTopVendors
	}
	rows, err := s.repo.TopVendors(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := &domain.TopVendors{
		Vendors: make([]string, 0, len(rows)),
		Values:  make([]float64, 0, len(rows)),
		Counts:  make([]int, 0, len(rows)),
	}
	for _, r := range rows {
		out.Vendors = append(out.Vendors, r.Vendor)
		out.Values = append(out.Values, round(r.Value, 2))
		out.Counts = append(out.Counts, r.Count)
	}
	return out, nil
}

func (s *metricsService) TimeSeries(ctx context.Context, days int) (*domain.Series, error) {
	if days <= 0 {
		days = defaultSeriesDays
	}
	if days > MaxSeriesDays {
		days = MaxSeriesDays
	}
	end := s.now().UTC()
	start := end.AddDate(0, 0, -days)

	rows, err := s.repo.DailyTotals(ctx, start, end)
	if err != nil {
		return nil, err
	}
	byDay := make(map[string]domain.PeriodTotal, len(rows))
	for _, r := range rows {
		byDay[r.Period.UTC().Format("2006-01-02")] = r
	}

	out := newSeries(days + 1)
	last := truncateDay(end)
	for day := truncateDay(start); !day.After(last); day = day.AddDate(0, 0, 1) {
		label := day.Format("2006-01-02")
		r := byDay[label]
		out.Labels = append(out.Labels, label)
		out.Counts = append(out.Counts, r.Count)
		out.Values = append(out.Values, round(r.Value, 2))
	}
	return out, nil
}

func (s *metricsService) VendorPerformance(ctx context.Context) ([]domain.VendorPerformance, error) {
	rows, err := s.repo.VendorPerformance(ctx)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].TotalValue = round(rows[i].TotalValue, 2)
		rows[i].AvgInvoiceValue = round(rows[i].AvgInvoiceValue, 2)
		rows[i].AvgConfidence = round(rows[i].AvgConfidence, 2)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].TotalValue > rows[j].TotalValue })
	return rows, nil
}

func (s *metricsService) ExtractionAccuracy(ctx context.Context) (*domain.ExtractionAccuracy, error) {
	stats, err := s.repo.ExtractionMethodStats(ctx, domain.HighConfidenceScore)
	if err != nil {
		return nil, err
	}
	out := &domain.ExtractionAccuracy{Methods: make(map[string]domain.MethodStats, len(stats))}
	var high int
	for _, m := range stats {
		out.TotalExtractions += m.Count
		high += m.HighCount
		m.AvgConfidence = round(m.AvgConfidence, 2)
		out.Methods[m.Method] = m
	}
	out.HighConfidenceRate = percent(high, out.TotalExtractions)
	return out, nil
}

func (s *metricsService) AnomalySummary(ctx context.Context) (*domain.AnomalySummary, error) {
	counts, err := s.repo.AnomalyCounts(ctx, ingest.HighSeverityScore)
	if err != nil {
		return nil, err
	}
	fields, err := s.repo.AnomalyFieldBreakdown(ctx)
	if err != nil {
		return nil, err
	}
	for i := range fields {
		fields[i].AvgScore = round(fields[i].AvgScore, 2)
	}
	return &domain.AnomalySummary{
		TotalAnomalies:   counts.Total,
		HighSeverityRate: percent(counts.HighSeverity, counts.Total),
		FieldBreakdown:   fields,
	}, nil
}

func (s *metricsService) MonthlyTrends(ctx context.Context, months int) (*domain.Series, error) {
	if months <= 0 {
		months = defaultTrendMonths
	}
	if months > MaxTrendMonths {
		months = MaxTrendMonths
	}
	start := s.now().UTC().AddDate(0, 0, -months*30)

	rows, err := s.repo.MonthlyTotals(ctx, start)
	if err != nil {
		return nil, err
	}
	out := newSeries(len(rows))
	for _, r := range rows {
		out.Labels = append(out.Labels, r.Period.UTC().Format("2006-01"))
		out.Counts = append(out.Counts, r.Count)
		out.Values = append(out.Values, round(r.Value, 2))
	}
	return out, nil
}

func (s *metricsService) Dashboard(ctx context.Context) (*domain.Dashboard, error) {
	var out domain.Dashboard
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		kpis, err := s.KPIs(gctx)
		out.KPIs = kpis
		return err
	})
	g.Go(func() error {
		vendors, err := s.TopVendors(gctx, defaultTopVendors)
		out.TopVendors = vendors
		return err
	})
	g.Go(func() error {
		series, err := s.TimeSeries(gctx, defaultSeriesDays)
		out.TimeSeries = series
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &out, nil
}

func newSeries(n int) *domain.Series {
	return &domain.Series{
		Labels: make([]string, 0, n),
		Counts: make([]int, 0, n),
		Values: make([]float64, 0, n),
	}
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// percent returns part/total as a percentage with one decimal, or 0 when total is 0.
func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return round(float64(part)/float64(total)*100, 1)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
