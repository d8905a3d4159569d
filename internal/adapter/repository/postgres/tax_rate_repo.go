package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/simaogato/navfolio-backend/internal/domain"
)

// taxRateRepository implements domain.TaxRateRepository
type taxRateRepository struct {
	db *DB
}

// NewTaxRateRepository creates a new tax rate repository
func NewTaxRateRepository(db *DB) domain.TaxRateRepository {
	return &taxRateRepository{db: db}
}

// GetByYear retrieves the capital gains rules for a fiscal year
func (r *taxRateRepository) GetByYear(ctx context.Context, year int) (*domain.TaxRateConfig, error) {
	query := `
		SELECT year, short_term_rate, long_term_rate, short_term_exemption, long_term_exemption, long_term_holding_days
		FROM tax_rates
		WHERE year = $1
	`

	var cfg domain.TaxRateConfig
	var stRate, ltRate, stExempt, ltExempt string

	err := r.db.QueryRowContext(ctx, query, year).Scan(
		&cfg.Year,
		&stRate,
		&ltRate,
		&stExempt,
		&ltExempt,
		&cfg.LongTermHoldingDays,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("tax rates for fiscal year %d: %w", year, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get tax rates: %w", err)
	}

	// Parse DECIMAL columns
	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"short_term_rate", stRate, &cfg.ShortTermRate},
		{"long_term_rate", ltRate, &cfg.LongTermRate},
		{"short_term_exemption", stExempt, &cfg.ShortTermExemption},
		{"long_term_exemption", ltExempt, &cfg.LongTermExemption},
	}
	for _, f := range fields {
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", f.name, err)
		}
		*f.dst = v
	}

	return &cfg, nil
}

// Create inserts the rules for a new fiscal year
func (r *taxRateRepository) Create(ctx context.Context, cfg *domain.TaxRateConfig) error {
	query := `
		INSERT INTO tax_rates (year, short_term_rate, long_term_rate, short_term_exemption, long_term_exemption, long_term_holding_days)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		cfg.Year,
		cfg.ShortTermRate.String(),
		cfg.LongTermRate.String(),
		cfg.ShortTermExemption.String(),
		cfg.LongTermExemption.String(),
		cfg.LongTermHoldingDays,
	)
	if err != nil {
		return fmt.Errorf("failed to create tax rates: %w", err)
	}

	return nil
}
