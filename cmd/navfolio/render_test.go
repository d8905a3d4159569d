package main

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/simaogato/navfolio-backend/internal/domain"
	"github.com/simaogato/navfolio-backend/internal/usecase/capitalgains"
	"github.com/simaogato/navfolio-backend/internal/usecase/portfolio"
	"github.com/simaogato/navfolio-backend/internal/usecase/pricesync"
	"github.com/simaogato/navfolio-backend/internal/usecase/simulator"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func nullDec(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(dec(s))
}

func TestRenderSummary(t *testing.T) {
	navDate := domain.Date(2024, 1, 10)
	summary := &portfolio.Summary{
		Funds: []portfolio.FundSummary{
			{
				FundID:         "INF000000001",
				UnitsHeld:      dec("10"),
				Invested:       dec("1000"),
				CurrentValue:   dec("1200"),
				Profit:         dec("200"),
				LifetimeProfit: dec("200"),
				AbsoluteReturn: nullDec("20"),
				XIRR:           nullDec("20"),
				LatestNAVDate:  &navDate,
			},
			{
				FundID: "INF000000002",
				Stale:  true,
			},
		},
		TotalInvested:  dec("1000"),
		CurrentValue:   dec("1200"),
		Profit:         dec("200"),
		LifetimeProfit: dec("200"),
		AbsoluteReturn: nullDec("20"),
		AsOf:           domain.Date(2024, 1, 12),
	}

	var buf bytes.Buffer
	renderSummary(&buf, summary)
	out := buf.String()

	assert.Contains(t, out, "INF000000001")
	assert.Contains(t, out, "1200.00")
	assert.Contains(t, out, "20.00%")
	assert.Contains(t, out, "2024-01-10")
	assert.Contains(t, out, "stale")
	assert.Contains(t, out, "2024-01-12")
}

func TestRenderFundSummary(t *testing.T) {
	summary := &portfolio.FundSummary{
		FundID:    "INF000000001",
		FundName:  "Bluechip Growth",
		FundType:  "Equity",
		UnitsHeld: dec("5"),
		Invested:  dec("500"),
		OpenLots: []domain.Lot{
			{FundID: "INF000000001", UnitsRemaining: dec("5"), AcquisitionPrice: dec("100"), AcquisitionDate: domain.Date(2023, 1, 10)},
		},
		Stale: true,
	}

	var buf bytes.Buffer
	renderFundSummary(&buf, summary)
	out := buf.String()

	assert.Contains(t, out, "Bluechip Growth (Equity)")
	assert.Contains(t, out, "warning: latest NAV is stale")
	assert.Contains(t, out, "2023-01-10")
	assert.Contains(t, out, "100.0000")
	assert.Contains(t, out, "500.00")
	assert.Contains(t, out, "XIRR -")
}

func TestRenderReturns(t *testing.T) {
	returns := domain.Returns{
		{Key: "1M", Value: nullDec("1.5")},
		{Key: "1Y", Value: decimal.NullDecimal{}},
	}

	var buf bytes.Buffer
	renderReturns(&buf, "INF000000001", returns)
	out := buf.String()

	assert.Contains(t, out, "1M")
	assert.Contains(t, out, "1Y")
	assert.Contains(t, out, "1.50%")
	assert.Contains(t, out, " - ")
}

func TestRenderCapitalGains(t *testing.T) {
	t.Run("not applicable prints reason only", func(t *testing.T) {
		var buf bytes.Buffer
		result := capitalgains.NotApplicable("capital gains estimation only applies to equity funds")
		renderCapitalGains(&buf, &result)

		assert.Equal(t, "Capital gains not applicable: capital gains estimation only applies to equity funds\n", buf.String())
	})

	t.Run("buckets and total tax", func(t *testing.T) {
		result := &capitalgains.Result{
			Applicable: true,
			SellDate:   domain.Date(2024, 6, 3),
			SellPrice:  dec("150"),
			ShortTerm:  capitalgains.Bucket{GrossGain: dec("100"), Gain: dec("100"), TaxableGain: dec("100"), Tax: dec("20"), RatePercent: dec("20")},
			LongTerm:   capitalgains.Bucket{GrossGain: dec("200000"), Gain: dec("200000"), ExemptionLimit: dec("125000"), TaxableGain: dec("75000"), Tax: dec("9375"), RatePercent: dec("12.5")},
		}

		var buf bytes.Buffer
		renderCapitalGains(&buf, result)
		out := buf.String()

		assert.Contains(t, out, "Sell on 2024-06-03 at 150")
		assert.Contains(t, out, "Short term")
		assert.Contains(t, out, "Long term")
		assert.Contains(t, out, "75000.00")
		assert.Contains(t, out, "9395.00")
	})
}

func TestRenderSimulation(t *testing.T) {
	result := &simulator.Result{
		FundID:         "INF000000001",
		Mode:           simulator.ModeSIP,
		AmountInvested: dec("2000"),
		CorpusNow:      dec("2100"),
		ExpectedProfit: dec("100"),
		AbsoluteReturn: nullDec("5"),
		ValuationDate:  domain.Date(2024, 3, 1),
		MonthlyGrowth: []simulator.GrowthRow{
			{Date: domain.Date(2024, 1, 1), SIPAmount: nullDec("1000"), Invested: dec("1000"), Units: dec("10"), Corpus: dec("1000")},
			{Date: domain.Date(2024, 3, 1), Invested: dec("2000"), Units: dec("19.5"), Corpus: dec("2100"), Profit: dec("100")},
		},
		CapitalGains: capitalgains.NotApplicable("tax rates not configured"),
	}

	var buf bytes.Buffer
	renderSimulation(&buf, result)
	out := buf.String()

	assert.Contains(t, out, "Instalment")
	assert.Contains(t, out, "19.500")
	assert.Contains(t, out, "SIP INF000000001: invested 2000.00, corpus 2100.00 on 2024-03-01, profit 100.00 (5.00%), XIRR -")
	assert.Contains(t, out, "Capital gains not applicable: tax rates not configured")
}

func TestRenderTransactions(t *testing.T) {
	account := uuid.New()
	txs := []*domain.Transaction{
		{
			ID:           uuid.New(),
			UserID:       uuid.New(),
			AccountID:    account,
			FundID:       "INF000000001",
			Type:         domain.TxTypeSell,
			Units:        dec("2.5"),
			Price:        dec("120"),
			TransactedAt: domain.Date(2024, 2, 1),
		},
	}

	var buf bytes.Buffer
	renderTransactions(&buf, txs)
	out := buf.String()

	assert.Contains(t, out, "SELL")
	assert.Contains(t, out, "2.500")
	assert.Contains(t, out, "300.00")
	assert.Contains(t, out, account.String())
}

func TestRenderSyncReport(t *testing.T) {
	t.Run("clean run prints counts only", func(t *testing.T) {
		var buf bytes.Buffer
		renderSyncReport(&buf, pricesync.Report{Processed: 3, Skipped: 1})

		assert.Equal(t, "updated 3, skipped 1, failed 0\n", buf.String())
	})

	t.Run("failures are listed by fund", func(t *testing.T) {
		var buf bytes.Buffer
		renderSyncReport(&buf, pricesync.Report{
			Processed: 1,
			Failed:    2,
			Failures: map[string]string{
				"INF000000009": "cache unavailable",
				"INF000000003": "not found",
			},
		})
		out := buf.String()

		assert.Contains(t, out, "updated 1, skipped 0, failed 2")
		assert.Less(t, bytes.Index(buf.Bytes(), []byte("INF000000003")), bytes.Index(buf.Bytes(), []byte("INF000000009")))
		assert.Contains(t, out, "cache unavailable")
	})
}
