package windowed

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/simaogato/navfolio-backend/internal/domain"
	"github.com/simaogato/navfolio-backend/internal/usecase/xirr"
)

var hundred = decimal.NewFromInt(100)

// Calculate computes the trailing return of every window, in window order.
// For each window the start price is the sample on latestDate - days (or the earliest sample
// for the all-time window), else the first sample within the next 30 days.
// A window whose start price cannot be resolved is null; it never affects the other windows.
func Calculate(series *domain.PriceSeries, latestPrice decimal.Decimal, latestDate time.Time, windows []domain.ReturnWindow) domain.Returns {
	out := make(domain.Returns, 0, len(windows))
	for _, w := range windows {
		out = append(out, domain.WindowReturn{
			Key:   w.Key,
			Value: calculateWindow(series, latestPrice, latestDate, w),
		})
	}
	return out
}

// StartPoint resolves the sample a window starts from
func StartPoint(series *domain.PriceSeries, latestDate time.Time, w domain.ReturnWindow) (domain.PricePoint, bool) {
	if w.IsAllTime() {
		return series.Earliest()
	}
	start := domain.Day(latestDate).AddDate(0, 0, -w.Days)
	return series.FirstOnOrAfter(start, domain.LookupWindowDays)
}

func calculateWindow(series *domain.PriceSeries, latestPrice decimal.Decimal, latestDate time.Time, w domain.ReturnWindow) decimal.NullDecimal {
	start, ok := StartPoint(series, latestDate, w)
	if !ok || start.Price.LessThanOrEqual(decimal.Zero) {
		return decimal.NullDecimal{}
	}

	switch w.Policy {
	case domain.PolicySimple:
		return SimpleReturn(start.Price, latestPrice)
	default:
		return xirr.ComputeFlows([]xirr.CashFlow{
			{Date: start.Date, Amount: start.Price.Neg()},
			{Date: latestDate, Amount: latestPrice},
		})
	}
}

// SimpleReturn returns (end - start) / start * 100 rounded to 2 dp, or null for a non-positive start
func SimpleReturn(start, end decimal.Decimal) decimal.NullDecimal {
	if start.LessThanOrEqual(decimal.Zero) {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{
		Decimal: end.Sub(start).Div(start).Mul(hundred).Round(2),
		Valid:   true,
	}
}
