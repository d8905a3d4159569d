package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TxType represents the direction of a fund transaction
type TxType string

const (
	TxTypeBuy  TxType = "BUY"
	TxTypeSell TxType = "SELL"
)

// Transaction represents a recorded buy or sell of mutual fund units
// Transactions are never mutated by the calculators; lots are re-derived from the full history.
type Transaction struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	AccountID    uuid.UUID
	FundID       string // ISIN (growth option)
	Type         TxType
	Units        decimal.Decimal // Always positive
	Price        decimal.Decimal // NAV per unit at TransactedAt
	TransactedAt time.Time
	Seq          int64 // Insertion order, breaks same-day ties
}

// Amount returns units * price
func (t *Transaction) Amount() decimal.Decimal {
	return t.Units.Mul(t.Price)
}

// Validate ensures the transaction adheres to domain rules
// Returns an error wrapping ErrInvalidInput if validation fails
func (t *Transaction) Validate() error {
	if t.FundID == "" {
		return fmt.Errorf("fund id cannot be empty: %w", ErrInvalidInput)
	}

	if t.Type != TxTypeBuy && t.Type != TxTypeSell {
		return fmt.Errorf("transaction type must be BUY or SELL, got %q: %w", t.Type, ErrInvalidInput)
	}

	if t.Units.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("units must be positive: %w", ErrInvalidInput)
	}

	if t.Price.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("price must be positive: %w", ErrInvalidInput)
	}

	if t.TransactedAt.IsZero() {
		return fmt.Errorf("transaction date is required: %w", ErrInvalidInput)
	}

	return nil
}

// ParseTxType converts a user supplied string into a TxType
func ParseTxType(s string) (TxType, error) {
	switch TxType(s) {
	case TxTypeBuy, TxTypeSell:
		return TxType(s), nil
	default:
		return "", fmt.Errorf("invalid transaction type %q: %w", s, ErrInvalidInput)
	}
}
