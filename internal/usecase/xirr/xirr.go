package xirr

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/simaogato/navfolio-backend/internal/domain"
)

const (
	daysPerYear   = 365.0
	maxIterations = 100
	tolerance     = 1e-6
	minRate       = -0.999 // a rate below -99.9% has no meaning for NPV
	maxRate       = 100.0  // 10000% annual cap keeps Newton from diverging
	bisectLow     = -0.99
	bisectHigh    = 10.0
	bisectMaxIter = 200
	bracketSteps  = 12 // widens the bracket to [-1+1e-14, 1e13]
)

// CashFlow is a dated amount. Negative = money invested, positive = money received.
type CashFlow struct {
	Date   time.Time
	Amount decimal.Decimal
}

// Compute returns the annualised internal rate of return, as a percentage rounded to 2 dp,
// for cash flows occurring on the matching dates.
// Returns null (Valid=false) instead of an error when no rate can be determined:
// mismatched lengths, fewer than two flows, no sign change, all flows on one day,
// all amounts zero, or a solver that fails to converge.
func Compute(cashflows []decimal.Decimal, dates []time.Time) decimal.NullDecimal {
	if len(cashflows) != len(dates) {
		return decimal.NullDecimal{}
	}

	flows := make([]CashFlow, len(cashflows))
	for i := range cashflows {
		flows[i] = CashFlow{Date: dates[i], Amount: cashflows[i]}
	}
	return ComputeFlows(flows)
}

// ComputeFlows is Compute over paired cash flows
func ComputeFlows(flows []CashFlow) (result decimal.NullDecimal) {
	// Numerical failures must never escape into a batch over many funds
	defer func() {
		if r := recover(); r != nil {
			result = decimal.NullDecimal{}
		}
	}()

	if len(flows) < 2 {
		return decimal.NullDecimal{}
	}

	base := domain.Day(flows[0].Date)
	for _, f := range flows[1:] {
		if day := domain.Day(f.Date); day.Before(base) {
			base = day
		}
	}

	amounts := make([]float64, len(flows))
	years := make([]float64, len(flows))
	hasNeg, hasPos, spansDays := false, false, false
	for i, f := range flows {
		amounts[i] = f.Amount.InexactFloat64()
		days := domain.DaysBetween(base, f.Date)
		years[i] = float64(days) / daysPerYear
		if days != 0 {
			spansDays = true
		}
		if amounts[i] < 0 {
			hasNeg = true
		}
		if amounts[i] > 0 {
			hasPos = true
		}
	}

	// All-zero amounts fail the sign check as well
	if !hasNeg || !hasPos || !spansDays {
		return decimal.NullDecimal{}
	}

	rate, ok := solve(amounts, years)
	if !ok || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return decimal.NullDecimal{}
	}

	return decimal.NullDecimal{
		Decimal: decimal.NewFromFloat(rate * 100).Round(2),
		Valid:   true,
	}
}

// npv returns the net present value of the flows at rate and its derivative
func npv(amounts, years []float64, rate float64) (float64, float64) {
	base := 1 + rate
	sum, deriv := 0.0, 0.0
	for i, a := range amounts {
		discount := math.Pow(base, years[i])
		sum += a / discount
		if years[i] != 0 {
			deriv -= years[i] * a / (discount * base)
		}
	}
	return sum, deriv
}

// solve finds r with NPV(r) = 0 using Newton-Raphson, falling back to bisection
func solve(amounts, years []float64) (float64, bool) {
	rate := initialGuess(amounts)

	for iter := 0; iter < maxIterations; iter++ {
		value, deriv := npv(amounts, years, rate)
		if math.IsNaN(value) || math.IsInf(value, 0) {
			break
		}
		if math.Abs(value) <= tolerance {
			return rate, true
		}
		if deriv == 0 {
			break
		}

		next := rate - value/deriv
		if next < minRate {
			next = minRate
		}
		if next > maxRate {
			next = maxRate
		}
		if next == rate {
			break
		}
		rate = next
	}

	return bisect(amounts, years)
}

// initialGuess uses the simple return when it lies in a sensible range
func initialGuess(amounts []float64) float64 {
	invested, received := 0.0, 0.0
	for _, a := range amounts {
		if a < 0 {
			invested -= a
		} else {
			received += a
		}
	}

	guess := 0.1
	if invested > 0 {
		simple := received/invested - 1
		if simple > -0.9 && simple < 10 {
			guess = simple
		}
	}
	return guess
}

// bisect searches for a sign change of NPV starting from [bisectLow, bisectHigh].
// When both ends share a sign the bracket widens, towards -100% and by a factor of ten
// upwards, so short holding periods with extreme annualised rates still solve.
// A collapsed bracket counts as convergence.
func bisect(amounts, years []float64) (float64, bool) {
	lo, hi := bisectLow, bisectHigh
	npvLo, _ := npv(amounts, years, lo)
	npvHi, _ := npv(amounts, years, hi)
	for step := 0; step < bracketSteps && npvLo*npvHi > 0; step++ {
		lo = -1 + (lo+1)/10
		hi *= 10
		npvLo, _ = npv(amounts, years, lo)
		npvHi, _ = npv(amounts, years, hi)
	}
	if math.IsNaN(npvLo) || math.IsNaN(npvHi) || math.IsInf(npvLo, 0) || math.IsInf(npvHi, 0) || npvLo*npvHi > 0 {
		return 0, false
	}
	if npvLo == 0 {
		return lo, true
	}
	if npvHi == 0 {
		return hi, true
	}

	for iter := 0; iter < bisectMaxIter; iter++ {
		mid := (lo + hi) / 2
		npvMid, _ := npv(amounts, years, mid)
		if math.IsNaN(npvMid) {
			return 0, false
		}
		if math.Abs(npvMid) <= tolerance || hi-lo < 1e-12 {
			return mid, true
		}
		if npvMid*npvLo < 0 {
			hi = mid
		} else {
			lo = mid
			npvLo = npvMid
		}
	}

	return 0, false
}
