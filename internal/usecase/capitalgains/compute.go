package capitalgains

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/simaogato/navfolio-backend/internal/domain"
)

// ReasonNotEquity explains why a non-equity fund has no capital gains estimate
const ReasonNotEquity = "fund is not eligible for equity capital gains calculation"

var hundred = decimal.NewFromInt(100)

// Bucket is the short or long term side of a capital gains estimate
type Bucket struct {
	GrossGain      decimal.Decimal // Σ positive lot gains
	GrossLoss      decimal.Decimal // Σ |negative lot gains|
	Gain           decimal.Decimal // Net gain after loss offset
	TaxableGain    decimal.Decimal // Gain less exemption, floored at zero
	Tax            decimal.Decimal
	ExemptionLimit decimal.Decimal
	RatePercent    decimal.Decimal
}

// Result is a capital gains estimate for selling every open lot at one price.
// When Applicable is false the buckets are meaningless and Reason explains why.
type Result struct {
	Applicable bool
	Reason     string
	SellDate   time.Time
	SellPrice  decimal.Decimal
	ShortTerm  Bucket
	LongTerm   Bucket
}

// NotApplicable builds the explicit result for funds outside equity taxation
func NotApplicable(reason string) Result {
	return Result{Applicable: false, Reason: reason}
}

// Compute estimates the tax owed on selling all lots at sellPrice on sellDate.
// Logic:
//  1. holding days >= LongTermHoldingDays puts a lot in the long term bucket
//  2. Each bucket nets its gains against its losses
//  3. A short term deficit reduces long term gain and short term is floored at zero
//     (a long term loss never offsets short term gain)
//  4. Exemption is subtracted (floored at zero), then the rate applies
//
// All amounts are rounded to 2 dp. Non-equity funds return NotApplicable.
func Compute(lots []domain.Lot, sellDate time.Time, sellPrice decimal.Decimal, fundType string, cfg domain.TaxRateConfig) Result {
	if !domain.IsEquityType(fundType) {
		return NotApplicable(ReasonNotEquity)
	}

	stGain, stLoss := decimal.Zero, decimal.Zero
	ltGain, ltLoss := decimal.Zero, decimal.Zero

	for _, lot := range lots {
		if !lot.IsOpen() {
			continue
		}
		holdingDays := domain.DaysBetween(lot.AcquisitionDate, sellDate)
		gain := lot.UnitsRemaining.Mul(sellPrice.Sub(lot.AcquisitionPrice))

		longTerm := holdingDays >= cfg.LongTermHoldingDays
		switch {
		case longTerm && gain.IsPositive():
			ltGain = ltGain.Add(gain)
		case longTerm:
			ltLoss = ltLoss.Add(gain.Abs())
		case gain.IsPositive():
			stGain = stGain.Add(gain)
		default:
			stLoss = stLoss.Add(gain.Abs())
		}
	}

	netST := stGain.Sub(stLoss)
	netLT := ltGain.Sub(ltLoss)
	if netST.IsNegative() {
		netLT = netLT.Add(netST)
		netST = decimal.Zero
	}

	return Result{
		Applicable: true,
		SellDate:   domain.Day(sellDate),
		SellPrice:  sellPrice,
		ShortTerm:  bucket(stGain, stLoss, netST, cfg.ShortTermExemption, cfg.ShortTermRate),
		LongTerm:   bucket(ltGain, ltLoss, netLT, cfg.LongTermExemption, cfg.LongTermRate),
	}
}

func bucket(gross, loss, net, exemption, rate decimal.Decimal) Bucket {
	taxable := decimal.Max(net.Sub(exemption), decimal.Zero)
	return Bucket{
		GrossGain:      gross.Round(2),
		GrossLoss:      loss.Round(2),
		Gain:           net.Round(2),
		TaxableGain:    taxable.Round(2),
		Tax:            taxable.Mul(rate).Div(hundred).Round(2),
		ExemptionLimit: exemption,
		RatePercent:    rate,
	}
}
