package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReturnPolicy selects how a trailing window's return is computed
type ReturnPolicy string

const (
	// PolicySimple is the plain percentage change between start and latest price
	PolicySimple ReturnPolicy = "SIMPLE"
	// PolicyXIRR annualises the change over the window
	PolicyXIRR ReturnPolicy = "XIRR"
)

// ReturnWindow is a named trailing lookback.
// Days == 0 means all-time: the window starts at the earliest available sample.
type ReturnWindow struct {
	Key    string
	Days   int
	Policy ReturnPolicy
}

// IsAllTime reports whether the window starts at the earliest sample
func (w ReturnWindow) IsAllTime() bool {
	return w.Days == 0
}

// AllTime is the window spanning the full price history
var AllTime = ReturnWindow{Key: "All", Days: 0, Policy: PolicyXIRR}

// DefaultWindows returns the standard windows in display order
func DefaultWindows() []ReturnWindow {
	return []ReturnWindow{
		{Key: "6M", Days: 182, Policy: PolicySimple},
		{Key: "1Y", Days: 365, Policy: PolicyXIRR},
		{Key: "3Y", Days: 1095, Policy: PolicyXIRR},
		{Key: "5Y", Days: 1825, Policy: PolicyXIRR},
		{Key: "10Y", Days: 3650, Policy: PolicyXIRR},
		AllTime,
	}
}

// WindowReturn is the computed return for one window; Value is null when the start price is unavailable
type WindowReturn struct {
	Key   string
	Value decimal.NullDecimal
}

// Returns holds window results in display order
type Returns []WindowReturn

// Map returns the results keyed by window key
func (r Returns) Map() map[string]decimal.NullDecimal {
	m := make(map[string]decimal.NullDecimal, len(r))
	for _, wr := range r {
		m[wr.Key] = wr.Value
	}
	return m
}

// Get returns the value for key, reporting false when the window is absent
func (r Returns) Get(key string) (decimal.NullDecimal, bool) {
	for _, wr := range r {
		if wr.Key == key {
			return wr.Value, true
		}
	}
	return decimal.NullDecimal{}, false
}

// ReturnsFromMap orders m by windows. Windows missing from m are reported as null.
func ReturnsFromMap(m map[string]decimal.NullDecimal, windows []ReturnWindow) Returns {
	out := make(Returns, 0, len(windows))
	for _, w := range windows {
		out = append(out, WindowReturn{Key: w.Key, Value: m[w.Key]})
	}
	return out
}

// NAVDocument is the cached view of a fund's price history and its precomputed returns
type NAVDocument struct {
	FundID          string
	LastUpdatedDate time.Time
	History         []PricePoint
	Returns         map[string]decimal.NullDecimal
}
