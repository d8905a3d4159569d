package priceseries

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/simaogato/navfolio-backend/internal/domain"
)

// PriceOn returns the NAV recorded exactly on day.
// Sources that implement domain.PriceLookup answer directly; others load the series.
// A missing NAV reports false with a nil error; only source failures are errors.
func PriceOn(ctx context.Context, src domain.PriceSource, fundID string, day time.Time) (domain.PricePoint, bool, error) {
	day = domain.Day(day)

	if lookup, ok := src.(domain.PriceLookup); ok {
		point, err := lookup.PriceAt(ctx, fundID, day)
		switch {
		case err == nil && point != nil:
			return *point, true, nil
		case err == nil, errors.Is(err, domain.ErrNotFound):
			return domain.PricePoint{}, false, nil
		default:
			return domain.PricePoint{}, false, err
		}
	}

	series, err := src.LoadSeries(ctx, fundID)
	if err != nil {
		return domain.PricePoint{}, false, fmt.Errorf("failed to load NAV history: %w", err)
	}
	point, ok := series.At(day)
	return point, ok, nil
}
