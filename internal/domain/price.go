package domain

import (
	"slices"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// LookupWindowDays bounds the forward search for a missing price sample
const LookupWindowDays = 30

// PricePoint is a single NAV observation for a fund on a given day
type PricePoint struct {
	Date  time.Time
	Price decimal.Decimal
}

// PriceSeries stores the NAV history of one fund.
// Points are kept sorted by date and unique per date.
type PriceSeries struct {
	FundID string
	points []PricePoint
}

// NewPriceSeries builds a series from unordered points.
// Dates are normalised to UTC days; when a date repeats, the later point in the input wins.
func NewPriceSeries(fundID string, points []PricePoint) *PriceSeries {
	s := &PriceSeries{FundID: fundID}
	s.Merge(points)
	return s
}

// Merge adds points to the series, replacing existing samples on the same date
func (s *PriceSeries) Merge(points []PricePoint) *PriceSeries {
	if len(points) == 0 {
		return s
	}

	merged := make([]PricePoint, 0, len(s.points)+len(points))
	merged = append(merged, s.points...)
	for _, p := range points {
		merged = append(merged, PricePoint{Date: Day(p.Date), Price: p.Price})
	}

	// Stable so that, for equal dates, input order is preserved and the last one can win
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Date.Before(merged[j].Date)
	})

	out := merged[:0]
	for _, p := range merged {
		if n := len(out); n > 0 && out[n-1].Date.Equal(p.Date) {
			out[n-1] = p
			continue
		}
		out = append(out, p)
	}
	s.points = out
	return s
}

// Len returns the number of samples in the series
func (s *PriceSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.points)
}

// Points returns a copy of the samples in chronological order
func (s *PriceSeries) Points() []PricePoint {
	if s == nil {
		return nil
	}
	return slices.Clone(s.points)
}

// Earliest returns the first sample of the series
func (s *PriceSeries) Earliest() (PricePoint, bool) {
	if s.Len() == 0 {
		return PricePoint{}, false
	}
	return s.points[0], true
}

// Latest returns the last sample of the series
func (s *PriceSeries) Latest() (PricePoint, bool) {
	if s.Len() == 0 {
		return PricePoint{}, false
	}
	return s.points[len(s.points)-1], true
}

// search returns the index of the first sample on or after day
func (s *PriceSeries) search(day time.Time) (int, bool) {
	return slices.BinarySearchFunc(s.points, Day(day), func(p PricePoint, t time.Time) int {
		return p.Date.Compare(t)
	})
}

// At returns the sample recorded exactly on day
func (s *PriceSeries) At(day time.Time) (PricePoint, bool) {
	if s.Len() == 0 {
		return PricePoint{}, false
	}
	i, found := s.search(day)
	if !found {
		return PricePoint{}, false
	}
	return s.points[i], true
}

// FirstOnOrAfter returns the exact sample on day, or else the earliest sample
// at most maxDays later. It reports false when no sample falls in that range.
func (s *PriceSeries) FirstOnOrAfter(day time.Time, maxDays int) (PricePoint, bool) {
	if s.Len() == 0 || maxDays < 0 {
		return PricePoint{}, false
	}
	i, _ := s.search(day)
	if i >= len(s.points) {
		return PricePoint{}, false
	}
	if DaysBetween(day, s.points[i].Date) > maxDays {
		return PricePoint{}, false
	}
	return s.points[i], true
}

// Between returns the samples dated within [from, to], both inclusive
func (s *PriceSeries) Between(from, to time.Time) []PricePoint {
	if s.Len() == 0 || to.Before(from) {
		return nil
	}
	start, _ := s.search(from)
	end, found := s.search(to)
	if found {
		end++
	}
	return slices.Clone(s.points[start:end])
}
