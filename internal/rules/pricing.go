package rules

import (
	"github.com/shopspring/decimal"
)

// RateTier adds Premium percentage points for risk scores at or above MinRisk.
type RateTier struct {
	MinRisk decimal.Decimal
	Premium decimal.Decimal
}

var (
	// BaseRate is the annual percentage rate before risk premiums.
	BaseRate = decimal.RequireFromString("8.5")

	// RateTiers are ordered by descending MinRisk; the first match wins.
	RateTiers = []RateTier{
		{MinRisk: decimal.NewFromInt(60), Premium: decimal.RequireFromString("5.0")},
		{MinRisk: decimal.NewFromInt(40), Premium: decimal.RequireFromString("3.0")},
		{MinRisk: decimal.NewFromInt(20), Premium: decimal.RequireFromString("1.5")},
	}
)

// InterestRateDecimal is InterestRate in exact decimal form.
func InterestRateDecimal(risk float64, approved bool) decimal.Decimal {
	if !approved {
		return decimal.Zero
	}
	r := decimal.NewFromFloat(risk)
	for _, tier := range RateTiers {
		if r.GreaterThanOrEqual(tier.MinRisk) {
			return BaseRate.Add(tier.Premium)
		}
	}
	return BaseRate
}

// InterestRate suggests an annual rate in percent. Rejected applications
// get 0.
func InterestRate(risk float64, approved bool) float64 {
	return InterestRateDecimal(risk, approved).InexactFloat64()
}
