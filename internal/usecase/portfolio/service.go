package portfolio

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/simaogato/navfolio-backend/internal/domain"
	"github.com/simaogato/navfolio-backend/internal/logging"
	"github.com/simaogato/navfolio-backend/internal/usecase/costbasis"
	"github.com/simaogato/navfolio-backend/internal/usecase/windowed"
	"github.com/simaogato/navfolio-backend/internal/usecase/xirr"
)

// DefaultMaxNAVAgeDays is how old a fund's latest NAV may be before the fund is left out of totals
const DefaultMaxNAVAgeDays = 10

var hundred = decimal.NewFromInt(100)

// FundSummary is the position of one user in one fund
type FundSummary struct {
	FundID           string
	FundName         string
	FundType         string
	UnitsHeld        decimal.Decimal
	Invested         decimal.Decimal // Cost of open lots
	CurrentValue     decimal.Decimal // Units held * latest NAV
	Profit           decimal.Decimal // Current value - invested
	LifetimeProfit   decimal.Decimal // Current value + realized proceeds - total bought (= profit + realized proceeds - cost of units sold)
	RealizedProceeds decimal.Decimal
	TotalBought      decimal.Decimal
	AbsoluteReturn   decimal.NullDecimal
	XIRR             decimal.NullDecimal
	LatestNAV        decimal.NullDecimal
	LatestNAVDate    *time.Time
	Stale            bool // Latest NAV missing or too old; excluded from portfolio totals
	Oversold         bool // History sells more than it buys
	OpenLots         []domain.Lot

	flows []xirr.CashFlow
}

// Summary is the aggregate position of a user, optionally scoped to one account
type Summary struct {
	Funds          []FundSummary
	TotalInvested  decimal.Decimal
	CurrentValue   decimal.Decimal
	Profit         decimal.Decimal
	LifetimeProfit decimal.Decimal
	AbsoluteReturn decimal.NullDecimal
	XIRR           decimal.NullDecimal
	AsOf           time.Time
}

// PortfolioService composes cost basis, returns and prices into portfolio views
type PortfolioService struct {
	FundRepo        domain.FundRepository
	TransactionRepo domain.TransactionRepository
	Prices          domain.PriceSource
	Cache           domain.ReturnsCache // Optional
	Logger          *logging.Logger
	MaxNAVAgeDays   int
	Windows         []domain.ReturnWindow
	Now             func() time.Time
}

// NewPortfolioService creates a new PortfolioService instance
func NewPortfolioService(
	fundRepo domain.FundRepository,
	transactionRepo domain.TransactionRepository,
	prices domain.PriceSource,
	cache domain.ReturnsCache,
	logger *logging.Logger,
	maxNAVAgeDays int,
) *PortfolioService {
	if maxNAVAgeDays <= 0 {
		maxNAVAgeDays = DefaultMaxNAVAgeDays
	}
	return &PortfolioService{
		FundRepo:        fundRepo,
		TransactionRepo: transactionRepo,
		Prices:          prices,
		Cache:           cache,
		Logger:          logging.OrSilent(logger).WithComponent("portfolio"),
		MaxNAVAgeDays:   maxNAVAgeDays,
		Windows:         domain.DefaultWindows(),
		Now:             time.Now,
	}
}

// FundSummary returns the user's position in a single fund
func (s *PortfolioService) FundSummary(ctx context.Context, userID uuid.UUID, fundID string, accountID *uuid.UUID) (*FundSummary, error) {
	fund, err := s.FundRepo.GetByID(ctx, fundID)
	if err != nil {
		return nil, err
	}

	txs, err := s.TransactionRepo.List(ctx, domain.TransactionFilter{
		UserID:    userID,
		FundID:    fundID,
		AccountID: accountID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	summary := s.summarizeFund(fund, txs)
	return &summary, nil
}

// Summary aggregates every fund the user has transacted in.
// Logic:
//   - Each fund is summarised independently from its full transaction history
//   - Stale funds are reported but left out of totals and XIRR
//   - Portfolio XIRR is solved once over the concatenated cash flows of all included funds
func (s *PortfolioService) Summary(ctx context.Context, userID uuid.UUID, accountID *uuid.UUID) (*Summary, error) {
	txs, err := s.TransactionRepo.List(ctx, domain.TransactionFilter{
		UserID:    userID,
		AccountID: accountID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	byFund := make(map[string][]*domain.Transaction)
	for _, tx := range txs {
		byFund[tx.FundID] = append(byFund[tx.FundID], tx)
	}

	fundIDs := make([]string, 0, len(byFund))
	for id := range byFund {
		fundIDs = append(fundIDs, id)
	}
	sort.Strings(fundIDs)

	summary := &Summary{
		TotalInvested:  decimal.Zero,
		CurrentValue:   decimal.Zero,
		Profit:         decimal.Zero,
		LifetimeProfit: decimal.Zero,
		AsOf:           domain.Day(s.Now()),
	}

	var flows []xirr.CashFlow
	for _, fundID := range fundIDs {
		fund, err := s.FundRepo.GetByID(ctx, fundID)
		if errors.Is(err, domain.ErrNotFound) {
			s.Logger.Warn().Str("fund_id", fundID).Msg("Skipping transactions for unknown fund")
			continue
		}
		if err != nil {
			return nil, err
		}

		fs := s.summarizeFund(fund, byFund[fundID])
		summary.Funds = append(summary.Funds, fs)

		if fs.Stale {
			s.Logger.Warn().Str("fund_id", fundID).Msg("Fund NAV is stale, excluded from totals")
			continue
		}

		summary.TotalInvested = summary.TotalInvested.Add(fs.Invested)
		summary.CurrentValue = summary.CurrentValue.Add(fs.CurrentValue)
		summary.LifetimeProfit = summary.LifetimeProfit.Add(fs.LifetimeProfit)
		flows = append(flows, fs.flows...)
	}

	summary.Profit = summary.CurrentValue.Sub(summary.TotalInvested)
	summary.AbsoluteReturn = absoluteReturn(summary.Profit, summary.TotalInvested)
	summary.XIRR = xirr.ComputeFlows(flows)

	s.Logger.Debug().
		Str("user_id", userID.String()).
		Int("funds", len(summary.Funds)).
		Str("invested", summary.TotalInvested.StringFixed(2)).
		Str("current_value", summary.CurrentValue.StringFixed(2)).
		Msg("Portfolio summary computed")

	return summary, nil
}

// FundReturns returns the trailing window returns of a fund.
// Precomputed returns in the cache are used when present, otherwise they are computed from the price history.
func (s *PortfolioService) FundReturns(ctx context.Context, fundID string) (domain.Returns, error) {
	if s.Cache != nil {
		cached, err := s.Cache.GetReturns(ctx, fundID)
		if err == nil && len(cached) > 0 {
			return domain.ReturnsFromMap(cached, s.Windows), nil
		}
		if err != nil {
			s.Logger.Debug().Err(err).Str("fund_id", fundID).Msg("Cached returns unavailable, computing")
		}
	}

	fund, err := s.FundRepo.GetByID(ctx, fundID)
	if err != nil {
		return nil, err
	}

	if !fund.HasLatestNAV() {
		return domain.ReturnsFromMap(nil, s.Windows), nil
	}

	series, err := s.Prices.LoadSeries(ctx, fundID)
	if err != nil {
		return nil, fmt.Errorf("failed to load NAV history: %w", err)
	}

	return windowed.Calculate(series, fund.LatestNAV.Decimal, *fund.LatestNAVDate, s.Windows), nil
}

func (s *PortfolioService) summarizeFund(fund *domain.Fund, txs []*domain.Transaction) FundSummary {
	reduced := costbasis.Reduce(txs)

	fs := FundSummary{
		FundID:           fund.ID,
		FundName:         fund.Name,
		FundType:         fund.Type,
		UnitsHeld:        reduced.UnitsOpen,
		Invested:         reduced.TotalInvested,
		CurrentValue:     decimal.Zero,
		RealizedProceeds: reduced.RealizedProceeds,
		TotalBought:      reduced.TotalBought,
		LatestNAV:        fund.LatestNAV,
		LatestNAVDate:    fund.LatestNAVDate,
		Oversold:         reduced.Oversold(),
		OpenLots:         reduced.OpenLots,
	}

	if fs.Oversold {
		s.Logger.Warn().
			Str("fund_id", fund.ID).
			Str("unmatched_units", reduced.UnmatchedUnits.String()).
			Msg("Transaction history sells more units than it buys")
	}

	for _, tx := range sortedByDate(txs) {
		amount := tx.Amount()
		if tx.Type == domain.TxTypeBuy {
			amount = amount.Neg()
		}
		fs.flows = append(fs.flows, xirr.CashFlow{Date: tx.TransactedAt, Amount: amount})
	}

	if !fund.HasLatestNAV() {
		fs.Stale = true
		fs.Profit = fs.CurrentValue.Sub(fs.Invested)
		fs.LifetimeProfit = fs.RealizedProceeds.Sub(fs.TotalBought)
		return fs
	}

	navDate := domain.Day(*fund.LatestNAVDate)
	fs.Stale = domain.DaysBetween(navDate, s.Now()) > s.MaxNAVAgeDays
	fs.CurrentValue = fs.UnitsHeld.Mul(fund.LatestNAV.Decimal)
	fs.Profit = fs.CurrentValue.Sub(fs.Invested)
	fs.LifetimeProfit = fs.CurrentValue.Add(fs.RealizedProceeds).Sub(fs.TotalBought)
	fs.AbsoluteReturn = absoluteReturn(fs.Profit, fs.Invested)

	if fs.CurrentValue.IsPositive() {
		fs.flows = append(fs.flows, xirr.CashFlow{Date: navDate, Amount: fs.CurrentValue})
	}
	fs.XIRR = xirr.ComputeFlows(fs.flows)

	s.Logger.Debug().
		Str("fund_id", fund.ID).
		Str("units", fs.UnitsHeld.String()).
		Str("current_value", fs.CurrentValue.StringFixed(2)).
		Bool("stale", fs.Stale).
		Msg("Fund summary computed")

	return fs
}

// absoluteReturn is profit / invested * 100 rounded to 2 dp, null when nothing is invested
func absoluteReturn(profit, invested decimal.Decimal) decimal.NullDecimal {
	if invested.IsZero() {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{
		Decimal: profit.Div(invested).Mul(hundred).Round(2),
		Valid:   true,
	}
}

func sortedByDate(txs []*domain.Transaction) []*domain.Transaction {
	out := make([]*domain.Transaction, len(txs))
	copy(out, txs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TransactedAt.Before(out[j].TransactedAt)
	})
	return out
}
