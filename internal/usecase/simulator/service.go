package simulator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/simaogato/navfolio-backend/internal/domain"
	"github.com/simaogato/navfolio-backend/internal/usecase/capitalgains"
	"github.com/simaogato/navfolio-backend/internal/usecase/xirr"
)

// Mode selects how the simulated amount is invested
type Mode string

const (
	ModeLumpSum Mode = "LUMPSUM"
	ModeSIP     Mode = "SIP"
)

var hundred = decimal.NewFromInt(100)

// ParseMode converts a user supplied string into a Mode, case-insensitively
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToUpper(s)) {
	case ModeLumpSum:
		return ModeLumpSum, nil
	case ModeSIP:
		return ModeSIP, nil
	default:
		return "", fmt.Errorf("invalid investment mode %q: %w", s, domain.ErrInvalidInput)
	}
}

// Request describes a historical investment to simulate
type Request struct {
	FundID        string
	StartDate     time.Time
	Amount        decimal.Decimal // Lump sum, or the first monthly instalment
	Mode          Mode
	StepUpPercent decimal.Decimal // SIP only: instalment raise applied every January
}

// GrowthRow is the state of a SIP after one instalment
type GrowthRow struct {
	Date           time.Time
	Invested       decimal.Decimal
	Corpus         decimal.Decimal
	Profit         decimal.Decimal
	Units          decimal.Decimal
	SIPAmount      decimal.NullDecimal // Null on the closing valuation row
	AbsoluteReturn decimal.NullDecimal
}

// Result is the outcome of a simulation valued at the fund's latest NAV
type Result struct {
	FundID         string
	Mode           Mode
	AmountInvested decimal.Decimal
	Units          decimal.Decimal
	CorpusNow      decimal.Decimal
	ExpectedProfit decimal.Decimal
	AbsoluteReturn decimal.NullDecimal
	XIRR           decimal.NullDecimal
	ValuationDate  time.Time
	MonthlyGrowth  []GrowthRow
	CapitalGains   capitalgains.Result
}

// SimulatorService replays a lump sum or SIP investment over a fund's NAV history
type SimulatorService struct {
	FundRepo    domain.FundRepository
	Prices      domain.PriceSource
	TaxRateRepo domain.TaxRateRepository
}

// NewSimulatorService creates a new SimulatorService instance
func NewSimulatorService(fundRepo domain.FundRepository, prices domain.PriceSource, taxRateRepo domain.TaxRateRepository) *SimulatorService {
	return &SimulatorService{
		FundRepo:    fundRepo,
		Prices:      prices,
		TaxRateRepo: taxRateRepo,
	}
}

// Simulate replays req and values the result at the fund's latest NAV
// Logic:
//   - LUMPSUM: invest everything at the first NAV on or after the start date
//   - SIP: invest monthly on the start day of month (clamped to month end) at the first NAV
//     on or after each instalment date, up to the latest NAV date; the instalment grows by
//     StepUpPercent every January
//   - Equity funds also get a capital gains estimate for redeeming every simulated lot
func (s *SimulatorService) Simulate(ctx context.Context, req Request) (*Result, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	fund, err := s.FundRepo.GetByID(ctx, req.FundID)
	if err != nil {
		return nil, err
	}
	if !fund.HasLatestNAV() {
		return nil, fmt.Errorf("fund %s has no latest NAV: %w", fund.ID, domain.ErrPriceUnavailable)
	}

	latestNAV := fund.LatestNAV.Decimal
	latestDate := domain.Day(*fund.LatestNAVDate)
	start := domain.Day(req.StartDate)
	if start.After(latestDate) {
		return nil, fmt.Errorf("start date %s is after the latest NAV date %s: %w",
			start.Format(domain.DateFormat), latestDate.Format(domain.DateFormat), domain.ErrInvalidInput)
	}

	series, err := s.Prices.LoadSeries(ctx, fund.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load NAV history: %w", err)
	}
	navs := series.Between(start, latestDate)
	if len(navs) == 0 {
		return nil, fmt.Errorf("no NAV data for %s between %s and %s: %w", fund.ID,
			start.Format(domain.DateFormat), latestDate.Format(domain.DateFormat), domain.ErrPriceUnavailable)
	}

	var buys []buy
	var growth []GrowthRow
	switch req.Mode {
	case ModeLumpSum:
		buys = []buy{purchase(fund.ID, req.Amount, navs[0])}
	case ModeSIP:
		buys, growth = sip(fund.ID, req, navs, latestDate)
	}

	res := &Result{
		FundID:         fund.ID,
		Mode:           req.Mode,
		AmountInvested: decimal.Zero,
		Units:          decimal.Zero,
		ValuationDate:  latestDate,
	}

	lots := make([]domain.Lot, 0, len(buys))
	flows := make([]xirr.CashFlow, 0, len(buys)+1)
	for _, b := range buys {
		lots = append(lots, b.lot)
		res.AmountInvested = res.AmountInvested.Add(b.amount)
		res.Units = res.Units.Add(b.lot.UnitsRemaining)
		flows = append(flows, xirr.CashFlow{Date: b.lot.AcquisitionDate, Amount: b.amount.Neg()})
	}

	corpus := res.Units.Mul(latestNAV)
	flows = append(flows, xirr.CashFlow{Date: latestDate, Amount: corpus})

	if len(growth) > 0 && !growth[len(growth)-1].Date.Equal(latestDate) {
		growth = append(growth, row(latestDate, res.AmountInvested, corpus, res.Units, decimal.NullDecimal{}))
	}
	res.MonthlyGrowth = growth

	res.CorpusNow = corpus.Round(2)
	res.ExpectedProfit = corpus.Sub(res.AmountInvested).Round(2)
	res.AbsoluteReturn = percentOf(corpus.Sub(res.AmountInvested), res.AmountInvested)
	res.XIRR = xirr.ComputeFlows(flows)
	res.AmountInvested = res.AmountInvested.Round(2)

	res.CapitalGains, err = s.capitalGains(ctx, fund, lots, latestDate, latestNAV)
	if err != nil {
		return nil, err
	}

	return res, nil
}

func (s *SimulatorService) capitalGains(ctx context.Context, fund *domain.Fund, lots []domain.Lot, sellDate time.Time, sellPrice decimal.Decimal) (capitalgains.Result, error) {
	if !fund.IsEquity() {
		return capitalgains.NotApplicable(capitalgains.ReasonNotEquity), nil
	}

	year := domain.FiscalYear(sellDate)
	rates, err := s.TaxRateRepo.GetByYear(ctx, year)
	if errors.Is(err, domain.ErrNotFound) {
		return capitalgains.NotApplicable(fmt.Sprintf("no equity tax rates configured for fiscal year %d", year)), nil
	}
	if err != nil {
		return capitalgains.Result{}, fmt.Errorf("failed to load tax rates: %w", err)
	}

	return capitalgains.Compute(lots, sellDate, sellPrice, fund.Type, *rates), nil
}

func validate(req Request) error {
	if req.FundID == "" {
		return fmt.Errorf("fund id cannot be empty: %w", domain.ErrInvalidInput)
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("amount must be positive: %w", domain.ErrInvalidInput)
	}
	if req.StartDate.IsZero() {
		return fmt.Errorf("start date is required: %w", domain.ErrInvalidInput)
	}
	if req.Mode != ModeLumpSum && req.Mode != ModeSIP {
		return fmt.Errorf("invalid investment mode %q: %w", req.Mode, domain.ErrInvalidInput)
	}
	if req.StepUpPercent.IsNegative() {
		return fmt.Errorf("step-up cannot be negative: %w", domain.ErrInvalidInput)
	}
	return nil
}

// sip buys one instalment per month and records the running position after each purchase
func sip(fundID string, req Request, navs []domain.PricePoint, latestDate time.Time) ([]buy, []GrowthRow) {
	var buys []buy
	var growth []GrowthRow

	sipDay := req.StartDate.Day()
	instalment := req.Amount
	invested := decimal.Zero
	units := decimal.Zero

	i := 0
	for dt := domain.Day(req.StartDate); !dt.After(latestDate); {
		for i < len(navs) && navs[i].Date.Before(dt) {
			i++
		}
		if i < len(navs) {
			nav := navs[i]
			b := purchase(fundID, instalment, nav)
			buys = append(buys, b)
			invested = invested.Add(instalment)
			units = units.Add(b.lot.UnitsRemaining)
			growth = append(growth, row(nav.Date, invested, units.Mul(nav.Price), units, decimal.NewNullDecimal(instalment.Round(2))))
		}

		next := nextInstalment(dt, sipDay)
		if next.Year() != dt.Year() && req.StepUpPercent.IsPositive() {
			instalment = instalment.Add(instalment.Mul(req.StepUpPercent).Div(hundred).Round(2))
		}
		dt = next
	}

	return buys, growth
}

// nextInstalment returns sipDay of the following month, clamped to that month's last day
func nextInstalment(dt time.Time, sipDay int) time.Time {
	firstOfNext := time.Date(dt.Year(), dt.Month()+1, 1, 0, 0, 0, 0, time.UTC)
	lastDay := firstOfNext.AddDate(0, 1, -1).Day()
	return time.Date(firstOfNext.Year(), firstOfNext.Month(), min(sipDay, lastDay), 0, 0, 0, 0, time.UTC)
}

// buy is one simulated purchase: the lot it opened and the cash it cost
type buy struct {
	lot    domain.Lot
	amount decimal.Decimal
}

func purchase(fundID string, amount decimal.Decimal, nav domain.PricePoint) buy {
	return buy{
		lot: domain.Lot{
			FundID:           fundID,
			UnitsRemaining:   amount.Div(nav.Price),
			AcquisitionPrice: nav.Price,
			AcquisitionDate:  nav.Date,
		},
		amount: amount,
	}
}

func row(date time.Time, invested, corpus, units decimal.Decimal, sipAmount decimal.NullDecimal) GrowthRow {
	profit := corpus.Sub(invested)
	return GrowthRow{
		Date:           date,
		Invested:       invested.Round(2),
		Corpus:         corpus.Round(2),
		Profit:         profit.Round(2),
		Units:          units.Round(4),
		SIPAmount:      sipAmount,
		AbsoluteReturn: percentOf(profit, invested),
	}
}

// percentOf is part / whole * 100 rounded to 2 dp, null when whole is zero
func percentOf(part, whole decimal.Decimal) decimal.NullDecimal {
	if whole.IsZero() {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: part.Div(whole).Mul(hundred).Round(2), Valid: true}
}
