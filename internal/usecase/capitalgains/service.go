package capitalgains

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simaogato/navfolio-backend/internal/domain"
	"github.com/simaogato/navfolio-backend/internal/usecase/costbasis"
	"github.com/simaogato/navfolio-backend/internal/usecase/priceseries"
)

// CapitalGainsService estimates the tax owed on redeeming a user's holding in a fund
type CapitalGainsService struct {
	FundRepo        domain.FundRepository
	TransactionRepo domain.TransactionRepository
	TaxRateRepo     domain.TaxRateRepository
	Prices          domain.PriceSource
}

// NewCapitalGainsService creates a new CapitalGainsService instance
func NewCapitalGainsService(
	fundRepo domain.FundRepository,
	transactionRepo domain.TransactionRepository,
	taxRateRepo domain.TaxRateRepository,
	prices domain.PriceSource,
) *CapitalGainsService {
	return &CapitalGainsService{
		FundRepo:        fundRepo,
		TransactionRepo: transactionRepo,
		TaxRateRepo:     taxRateRepo,
		Prices:          prices,
	}
}

// Estimate computes the capital gains of selling every open lot of fundID
// Logic:
//   - Non-equity funds return a not-applicable result without touching prices or rates
//   - sellDate nil: sell at the fund's latest NAV on its latest NAV date
//   - sellDate set: sell at the NAV recorded exactly on that date (ErrPriceUnavailable if missing)
//   - Rates come from the fiscal year of the sell date (ErrNotFound if not configured)
func (s *CapitalGainsService) Estimate(ctx context.Context, userID uuid.UUID, fundID string, accountID *uuid.UUID, sellDate *time.Time) (*Result, error) {
	fund, err := s.FundRepo.GetByID(ctx, fundID)
	if err != nil {
		return nil, err
	}

	if !fund.IsEquity() {
		res := NotApplicable(ReasonNotEquity)
		return &res, nil
	}

	date, price, err := s.sellPoint(ctx, fund, sellDate)
	if err != nil {
		return nil, err
	}

	rates, err := s.TaxRateRepo.GetByYear(ctx, domain.FiscalYear(date))
	if err != nil {
		return nil, fmt.Errorf("failed to load tax rates for fiscal year %d: %w", domain.FiscalYear(date), err)
	}

	txs, err := s.TransactionRepo.List(ctx, domain.TransactionFilter{
		UserID:    userID,
		FundID:    fundID,
		AccountID: accountID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	reduced := costbasis.Reduce(txs)
	res := Compute(reduced.OpenLots, date, price, fund.Type, *rates)
	return &res, nil
}

func (s *CapitalGainsService) sellPoint(ctx context.Context, fund *domain.Fund, sellDate *time.Time) (time.Time, decimal.Decimal, error) {
	if sellDate == nil {
		if !fund.HasLatestNAV() {
			return time.Time{}, decimal.Zero, fmt.Errorf("fund %s has no latest NAV: %w", fund.ID, domain.ErrPriceUnavailable)
		}
		return domain.Day(*fund.LatestNAVDate), fund.LatestNAV.Decimal, nil
	}

	point, ok, err := priceseries.PriceOn(ctx, s.Prices, fund.ID, *sellDate)
	if err != nil {
		return time.Time{}, decimal.Zero, err
	}
	if !ok {
		return time.Time{}, decimal.Zero, fmt.Errorf("no NAV for %s on %s: %w", fund.ID, sellDate.Format(domain.DateFormat), domain.ErrPriceUnavailable)
	}
	return point.Date, point.Price, nil
}
