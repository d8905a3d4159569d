package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionFilter scopes a transaction listing.
// An empty FundID means all funds; a nil AccountID means all accounts.
type TransactionFilter struct {
	UserID    uuid.UUID
	FundID    string
	AccountID *uuid.UUID
}

// TransactionRepository defines the interface for transaction persistence operations
type TransactionRepository interface {
	// Create creates a new transaction and assigns its insertion sequence
	Create(ctx context.Context, tx *Transaction) error

	// List retrieves the matching transactions ordered by date, then insertion order
	List(ctx context.Context, filter TransactionFilter) ([]*Transaction, error)
}

// FundRepository defines the interface for fund persistence operations
type FundRepository interface {
	// GetByID retrieves a fund by its ISIN
	GetByID(ctx context.Context, id string) (*Fund, error)

	// List retrieves all funds
	List(ctx context.Context) ([]*Fund, error)
}

// PriceSource loads the full NAV history of a fund.
// Implementations return an empty series rather than nil when the fund has no history.
type PriceSource interface {
	LoadSeries(ctx context.Context, fundID string) (*PriceSeries, error)
}

// PriceLookup resolves the NAV recorded on a single date
type PriceLookup interface {
	// PriceAt retrieves the NAV recorded exactly on date
	// Returns an error wrapping ErrNotFound when there is no row for that date
	PriceAt(ctx context.Context, fundID string, date time.Time) (*PricePoint, error)
}

// PriceRepository defines the interface for historical NAV rows
type PriceRepository interface {
	PriceSource
	PriceLookup

	// ListSince retrieves rows dated strictly after the given date, oldest first
	// A zero date returns the full history
	ListSince(ctx context.Context, fundID string, after time.Time) ([]PricePoint, error)

	// Add inserts or replaces the row for point.Date
	Add(ctx context.Context, fundID string, point PricePoint) error
}

// ReturnsCache is the document store holding per-fund history and precomputed returns
type ReturnsCache interface {
	PriceSource

	// GetDocument retrieves the cached document of a fund
	// Returns an error wrapping ErrNotFound when the fund has no document
	GetDocument(ctx context.Context, fundID string) (*NAVDocument, error)

	// GetReturns retrieves only the precomputed returns of a fund
	GetReturns(ctx context.Context, fundID string) (map[string]decimal.NullDecimal, error)

	// Upsert writes the whole document
	Upsert(ctx context.Context, doc *NAVDocument) error
}

// TaxRateRepository defines the interface for tax rate persistence operations
type TaxRateRepository interface {
	// GetByYear retrieves the configuration for a fiscal year
	// Returns an error wrapping ErrNotFound when the year is not configured
	GetByYear(ctx context.Context, year int) (*TaxRateConfig, error)

	// Create creates a configuration for a new year
	Create(ctx context.Context, cfg *TaxRateConfig) error
}
