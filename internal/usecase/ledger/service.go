package ledger

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

// DefaultNAVTolerance is the largest accepted difference between a supplied price and the official NAV
var DefaultNAVTolerance = decimal.RequireFromString("0.1")

// RecordTransactionInput represents the input for recording a buy or sell
type RecordTransactionInput struct {
	UserID       uuid.UUID
	AccountID    uuid.UUID
	FundID       string
	Type         domain.TxType
	Units        decimal.Decimal
	Price        decimal.Decimal
	TransactedAt time.Time
}

// LedgerService accepts transactions into the store.
// It is the validation layer that keeps oversold histories out; cost basis reduction itself stays tolerant.
type LedgerService struct {
	FundRepo        domain.FundRepository
	TransactionRepo domain.TransactionRepository
	Prices          domain.PriceSource
	NAVTolerance    decimal.Decimal
}

// NewLedgerService creates a new LedgerService instance
func NewLedgerService(fundRepo domain.FundRepository, transactionRepo domain.TransactionRepository, prices domain.PriceSource) *LedgerService {
	return &LedgerService{
		FundRepo:        fundRepo,
		TransactionRepo: transactionRepo,
		Prices:          prices,
		NAVTolerance:    DefaultNAVTolerance,
	}
}

// RecordTransaction validates and persists a transaction
// Logic:
//  1. Validate the transaction fields
//  2. Verify the fund exists
//  3. The supplied price must be within NAVTolerance of the official NAV on that day
//  4. A SELL must not leave any sale in the user's history unmatched
//  5. Save using TransactionRepo.Create
func (s *LedgerService) RecordTransaction(ctx context.Context, input RecordTransactionInput) (*domain.Transaction, error) {
	tx := &domain.Transaction{
		ID:           uuid.New(),
		UserID:       input.UserID,
		AccountID:    input.AccountID,
		FundID:       input.FundID,
		Type:         input.Type,
		Units:        input.Units,
		Price:        input.Price,
		TransactedAt: domain.Day(input.TransactedAt),
	}

	// 1. Validate
	if err := tx.Validate(); err != nil {
		return nil, err
	}

	// 2. Fund must exist
	if _, err := s.FundRepo.GetByID(ctx, tx.FundID); err != nil {
		return nil, err
	}

	// 3. Price check against the official NAV
	if err := s.checkNAV(ctx, tx); err != nil {
		return nil, err
	}

	// 4. Oversell check
	if tx.Type == domain.TxTypeSell {
		if err := s.checkHoldings(ctx, tx); err != nil {
			return nil, err
		}
	}

	// 5. Save
	if err := s.TransactionRepo.Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to save transaction: %w", err)
	}

	return tx, nil
}

// ListTransactions returns the user's transactions ordered by date, then insertion order
func (s *LedgerService) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	return s.TransactionRepo.List(ctx, filter)
}

func (s *LedgerService) checkNAV(ctx context.Context, tx *domain.Transaction) error {
	official, ok, err := priceseries.PriceOn(ctx, s.Prices, tx.FundID, tx.TransactedAt)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no NAV for %s on %s, cannot record a transaction on a non-trading day: %w",
			tx.FundID, tx.TransactedAt.Format(domain.DateFormat), domain.ErrPriceUnavailable)
	}

	if tx.Price.Sub(official.Price).Abs().GreaterThan(s.NAVTolerance) {
		return fmt.Errorf("supplied NAV %s does not match official NAV %s on %s: %w",
			tx.Price, official.Price, tx.TransactedAt.Format(domain.DateFormat), domain.ErrNAVMismatch)
	}

	return nil
}

// checkHoldings replays the user's history for the fund with the new sale added.
// The sale is rejected when it increases the units that no earlier buy can cover.
func (s *LedgerService) checkHoldings(ctx context.Context, tx *domain.Transaction) error {
	existing, err := s.TransactionRepo.List(ctx, domain.TransactionFilter{
		UserID: tx.UserID,
		FundID: tx.FundID,
	})
	if err != nil {
		return fmt.Errorf("failed to list transactions: %w", err)
	}

	candidate := *tx
	for _, e := range existing {
		if e.Seq >= candidate.Seq {
			candidate.Seq = e.Seq + 1
		}
	}

	before := costbasis.Reduce(existing)
	after := costbasis.Reduce(append(existing[:len(existing):len(existing)], &candidate))

	if after.UnmatchedUnits.GreaterThan(before.UnmatchedUnits) {
		held := decimal.Zero
		for _, lot := range costbasis.Reduce(onOrBefore(existing, tx.TransactedAt)).OpenLots {
			held = held.Add(lot.UnitsRemaining)
		}
		return fmt.Errorf("cannot sell %s units: only %s units held on %s: %w",
			tx.Units, held, tx.TransactedAt.Format(domain.DateFormat), domain.ErrOversell)
	}

	return nil
}

func onOrBefore(txs []*domain.Transaction, day time.Time) []*domain.Transaction {
	var out []*domain.Transaction
	for _, t := range txs {
		if !domain.Day(t.TransactedAt).After(day) {
			out = append(out, t)
		}
	}
	return out
}
