package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Lot is an open purchase lot derived from BUY transactions by FIFO reduction.
// Lots are never persisted; they are rebuilt from the full transaction history on every computation.
type Lot struct {
	FundID           string
	UnitsRemaining   decimal.Decimal
	AcquisitionPrice decimal.Decimal
	AcquisitionDate  time.Time
}

// Cost returns units remaining * acquisition price
func (l *Lot) Cost() decimal.Decimal {
	return l.UnitsRemaining.Mul(l.AcquisitionPrice)
}

// IsOpen reports whether the lot still holds units
func (l *Lot) IsOpen() bool {
	return l.UnitsRemaining.GreaterThan(decimal.Zero)
}
