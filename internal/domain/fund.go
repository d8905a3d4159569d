package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Fund represents a mutual fund scheme tracked by the system
type Fund struct {
	ID            string // ISIN (growth option)
	Name          string
	Type          string // e.g. "Equity", "Debt", "Hybrid"
	Category      string
	LatestNAV     decimal.NullDecimal
	LatestNAVDate *time.Time
}

// IsEquity reports whether the fund qualifies for equity capital gains treatment
func (f *Fund) IsEquity() bool {
	return IsEquityType(f.Type)
}

// IsEquityType reports whether a fund type string denotes an equity fund
func IsEquityType(fundType string) bool {
	return strings.Contains(strings.ToLower(fundType), "equity")
}

// HasLatestNAV reports whether both the latest NAV and its date are known
func (f *Fund) HasLatestNAV() bool {
	return f.LatestNAV.Valid && f.LatestNAVDate != nil
}

// Validate ensures the fund adheres to domain rules
func (f *Fund) Validate() error {
	if f.ID == "" {
		return errors.New("fund id cannot be empty")
	}

	if f.Name == "" {
		return errors.New("fund name cannot be empty")
	}

	// A latest NAV must come with its date and be positive
	if f.LatestNAV.Valid {
		if f.LatestNAVDate == nil {
			return errors.New("latest NAV must have a date")
		}
		if f.LatestNAV.Decimal.LessThanOrEqual(decimal.Zero) {
			return errors.New("latest NAV must be positive")
		}
	}

	return nil
}
