package seeder

import (
	"context"
	"errors"

	"github.com/simaogato/navfolio-backend/internal/domain"
)

// TaxRateSeeder ensures equity tax rules exist for the configured fiscal years
type TaxRateSeeder struct {
	repo  domain.TaxRateRepository
	rates []domain.TaxRateConfig
}

// NewTaxRateSeeder creates a new TaxRateSeeder instance.
// With no rates given it seeds the default rules for fiscal year 2025.
func NewTaxRateSeeder(repo domain.TaxRateRepository, rates ...domain.TaxRateConfig) *TaxRateSeeder {
	if len(rates) == 0 {
		rates = []domain.TaxRateConfig{domain.DefaultTaxRateConfig(2025)}
	}
	return &TaxRateSeeder{
		repo:  repo,
		rates: rates,
	}
}

// Seed creates every missing year and returns the years it created.
// Existing years are left untouched.
func (s *TaxRateSeeder) Seed(ctx context.Context) ([]int, error) {
	var created []int

	for _, cfg := range s.rates {
		_, err := s.repo.GetByYear(ctx, cfg.Year)
		if err == nil {
			// Year exists, no action needed
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return created, err
		}

		// Validate before creating
		if err := cfg.Validate(); err != nil {
			return created, err
		}

		if err := s.repo.Create(ctx, &cfg); err != nil {
			return created, err
		}
		created = append(created, cfg.Year)
	}

	return created, nil
}
