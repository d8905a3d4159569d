package priceseries

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/simaogato/navfolio-backend/internal/domain"
	"github.com/simaogato/navfolio-backend/internal/logging"
)

// FallbackSource reads from Primary and falls back to Fallback on any primary failure.
// A primary that errors, returns nil, or returns an empty series counts as a miss.
// Single-date lookups also fall back when the primary history lacks that date.
// Only a Fallback error reaches the caller.
type FallbackSource struct {
	Primary  domain.PriceSource
	Fallback domain.PriceSource
	Logger   *logging.Logger
}

// NewFallbackSource creates a new FallbackSource instance
func NewFallbackSource(primary, fallback domain.PriceSource, logger *logging.Logger) *FallbackSource {
	return &FallbackSource{
		Primary:  primary,
		Fallback: fallback,
		Logger:   logging.OrSilent(logger).WithComponent("priceseries"),
	}
}

// LoadSeries implements domain.PriceSource
func (s *FallbackSource) LoadSeries(ctx context.Context, fundID string) (*domain.PriceSeries, error) {
	if s.Primary != nil {
		series, err := s.Primary.LoadSeries(ctx, fundID)
		switch {
		case err == nil && series.Len() > 0:
			return series, nil
		case err == nil:
			s.Logger.Debug().Str("fund_id", fundID).Msg("Primary price source has no history, falling back")
		case errors.Is(err, domain.ErrNotFound):
			s.Logger.Debug().Str("fund_id", fundID).Msg("Fund not in primary price source, falling back")
		default:
			s.Logger.Warn().Err(err).Str("fund_id", fundID).Msg("Primary price source failed, falling back")
		}
	}

	// A cancelled context is not a source miss
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	series, err := s.Fallback.LoadSeries(ctx, fundID)
	if err != nil {
		return nil, fmt.Errorf("failed to load NAV history for %s: %w", fundID, err)
	}
	if series == nil {
		series = domain.NewPriceSeries(fundID, nil)
	}
	return series, nil
}

// PriceAt implements domain.PriceLookup.
// The primary is consulted first; a date it does not hold is looked up in Fallback.
func (s *FallbackSource) PriceAt(ctx context.Context, fundID string, date time.Time) (*domain.PricePoint, error) {
	day := domain.Day(date)

	if s.Primary != nil {
		point, ok, err := PriceOn(ctx, s.Primary, fundID, day)
		switch {
		case err == nil && ok:
			return &point, nil
		case err == nil:
			s.Logger.Debug().Str("fund_id", fundID).Str("date", day.Format(domain.DateFormat)).Msg("Date missing from primary price source, falling back")
		case errors.Is(err, domain.ErrNotFound):
			s.Logger.Debug().Str("fund_id", fundID).Msg("Fund not in primary price source, falling back")
		default:
			s.Logger.Warn().Err(err).Str("fund_id", fundID).Msg("Primary price source failed, falling back")
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	point, ok, err := PriceOn(ctx, s.Fallback, fundID, day)
	if err != nil {
		return nil, fmt.Errorf("failed to look up NAV for %s on %s: %w", fundID, day.Format(domain.DateFormat), err)
	}
	if !ok {
		return nil, fmt.Errorf("NAV for %s on %s: %w", fundID, day.Format(domain.DateFormat), domain.ErrNotFound)
	}
	return &point, nil
}

var _ domain.PriceLookup = (*FallbackSource)(nil)
