package service

import (
	"fmt"

	"github.com/shopspring/decimal"

	"invoicelens/internal/config"
	"invoicelens/internal/ingest"
)

// NewIngestValidator builds the validator and consistency tolerance from the ingest settings.
// Empty settings keep the package defaults.
func NewIngestValidator(cfg *config.IngestConfig) (*ingest.Validator, decimal.Decimal, error) {
	policy := ingest.DefaultPolicy()
	tolerance := ingest.DefaultTolerance

	if cfg.Tolerance != "" {
		t, err := decimal.NewFromString(cfg.Tolerance)
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("parsing ingest tolerance %q: %w", cfg.Tolerance, err)
		}
		tolerance = t
	}
	if tolerance.IsNegative() {
		return nil, decimal.Zero, fmt.Errorf("%w: ingest tolerance %s is negative", ingest.ErrInvalidArgument, tolerance)
	}
	if cfg.RoundNumberThreshold != "" {
		t, err := decimal.NewFromString(cfg.RoundNumberThreshold)
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("parsing round number threshold %q: %w", cfg.RoundNumberThreshold, err)
		}
		policy.RoundNumberThreshold = t
	}
	if cfg.DefaultCurrency != "" {
		policy.DefaultCurrency = cfg.DefaultCurrency
	}

	v, err := ingest.NewValidator(policy)
	if err != nil {
		return nil, decimal.Zero, err
	}
	return v, tolerance, nil
}
