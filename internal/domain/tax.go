package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// FiscalYearStartMonth is the first month of the tax year (April)
const FiscalYearStartMonth = time.April

// TaxRateConfig holds the capital gains rules in force for one fiscal year.
// Rates are percentages (12.5 means 12.5%).
type TaxRateConfig struct {
	Year                int
	ShortTermRate       decimal.Decimal
	LongTermRate        decimal.Decimal
	ShortTermExemption  decimal.Decimal
	LongTermExemption   decimal.Decimal
	LongTermHoldingDays int
}

// FiscalYear returns the year in which the fiscal year containing date starts.
// Sales in January to March belong to the previous year's configuration.
func FiscalYear(date time.Time) int {
	if date.Month() < FiscalYearStartMonth {
		return date.Year() - 1
	}
	return date.Year()
}

// Validate ensures the tax configuration adheres to domain rules
func (c *TaxRateConfig) Validate() error {
	if c.Year <= 0 {
		return fmt.Errorf("tax year must be positive: %w", ErrInvalidInput)
	}

	hundred := decimal.NewFromInt(100)
	if c.ShortTermRate.LessThan(decimal.Zero) || c.ShortTermRate.GreaterThan(hundred) {
		return fmt.Errorf("short term rate must be between 0 and 100, got %s: %w", c.ShortTermRate, ErrInvalidInput)
	}

	if c.LongTermRate.LessThan(decimal.Zero) || c.LongTermRate.GreaterThan(hundred) {
		return fmt.Errorf("long term rate must be between 0 and 100, got %s: %w", c.LongTermRate, ErrInvalidInput)
	}

	if c.ShortTermExemption.LessThan(decimal.Zero) || c.LongTermExemption.LessThan(decimal.Zero) {
		return fmt.Errorf("exemptions cannot be negative: %w", ErrInvalidInput)
	}

	if c.LongTermHoldingDays <= 0 {
		return fmt.Errorf("long term holding days must be positive: %w", ErrInvalidInput)
	}

	return nil
}

// DefaultTaxRateConfig returns the equity rules introduced for fiscal year 2025
func DefaultTaxRateConfig(year int) TaxRateConfig {
	return TaxRateConfig{
		Year:                year,
		ShortTermRate:       decimal.NewFromInt(20),
		LongTermRate:        decimal.NewFromFloat(12.5),
		ShortTermExemption:  decimal.Zero,
		LongTermExemption:   decimal.NewFromInt(125000),
		LongTermHoldingDays: 365,
	}
}
