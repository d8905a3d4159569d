package costbasis

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/simaogato/navfolio-backend/internal/domain"
)

// Result is the outcome of reducing a transaction history into open lots
type Result struct {
	OpenLots         []domain.Lot
	TotalInvested    decimal.Decimal // Σ units remaining * acquisition price over open lots
	UnitsOpen        decimal.Decimal
	RealizedProceeds decimal.Decimal // Σ units * price over every SELL
	RealizedCost     decimal.Decimal // Acquisition cost of the units matched by sells
	TotalBought      decimal.Decimal // Σ units * price over every BUY
	UnmatchedUnits   decimal.Decimal // Sold units that found no lot (oversell)
}

// Oversold reports whether some sale could not be fully matched against earlier buys
func (r *Result) Oversold() bool {
	return r.UnmatchedUnits.GreaterThan(decimal.Zero)
}

// OpenLotsByFund groups the open lots by fund, preserving FIFO order within each fund
func (r *Result) OpenLotsByFund() map[string][]domain.Lot {
	out := make(map[string][]domain.Lot)
	for _, lot := range r.OpenLots {
		out[lot.FundID] = append(out[lot.FundID], lot)
	}
	return out
}

// Reduce matches sells against buys first-in-first-out and returns the open lots.
// Logic:
//  1. Sort by (date, insertion sequence); input order breaks any remaining tie
//  2. BUY pushes a lot onto the fund's queue
//  3. SELL consumes from the oldest lot with units remaining until satisfied or the queue is empty
//
// An oversell never fails: the shortfall is recorded in UnmatchedUnits and the fund ends with no inventory.
// The input slice and its transactions are not modified.
func Reduce(transactions []*domain.Transaction) Result {
	sorted := make([]*domain.Transaction, 0, len(transactions))
	for _, tx := range transactions {
		if tx != nil {
			sorted = append(sorted, tx)
		}
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		di, dj := domain.Day(sorted[i].TransactedAt), domain.Day(sorted[j].TransactedAt)
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return sorted[i].Seq < sorted[j].Seq
	})

	result := Result{
		TotalInvested:    decimal.Zero,
		UnitsOpen:        decimal.Zero,
		RealizedProceeds: decimal.Zero,
		RealizedCost:     decimal.Zero,
		TotalBought:      decimal.Zero,
		UnmatchedUnits:   decimal.Zero,
	}

	// Fund order of first appearance keeps the output deterministic
	var fundOrder []string
	queues := make(map[string][]*domain.Lot)

	for _, tx := range sorted {
		if _, seen := queues[tx.FundID]; !seen {
			fundOrder = append(fundOrder, tx.FundID)
			queues[tx.FundID] = nil
		}

		switch tx.Type {
		case domain.TxTypeBuy:
			queues[tx.FundID] = append(queues[tx.FundID], &domain.Lot{
				FundID:           tx.FundID,
				UnitsRemaining:   tx.Units,
				AcquisitionPrice: tx.Price,
				AcquisitionDate:  domain.Day(tx.TransactedAt),
			})
			result.TotalBought = result.TotalBought.Add(tx.Amount())

		case domain.TxTypeSell:
			result.RealizedProceeds = result.RealizedProceeds.Add(tx.Amount())
			remaining := tx.Units
			for _, lot := range queues[tx.FundID] {
				if remaining.LessThanOrEqual(decimal.Zero) {
					break
				}
				if !lot.IsOpen() {
					continue
				}
				take := decimal.Min(lot.UnitsRemaining, remaining)
				lot.UnitsRemaining = lot.UnitsRemaining.Sub(take)
				remaining = remaining.Sub(take)
				result.RealizedCost = result.RealizedCost.Add(take.Mul(lot.AcquisitionPrice))
			}
			if remaining.GreaterThan(decimal.Zero) {
				result.UnmatchedUnits = result.UnmatchedUnits.Add(remaining)
			}
		}
	}

	for _, fundID := range fundOrder {
		for _, lot := range queues[fundID] {
			if !lot.IsOpen() {
				continue
			}
			result.OpenLots = append(result.OpenLots, *lot)
			result.UnitsOpen = result.UnitsOpen.Add(lot.UnitsRemaining)
			result.TotalInvested = result.TotalInvested.Add(lot.Cost())
		}
	}

	return result
}
