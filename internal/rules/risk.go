package rules

import (
	"math"

	"github.com/opensource-finance/loanrisk/internal/domain"
)

// Risk score adjustments.
const (
	HighLoanToIncomeThreshold = 3.0
	HighLoanToIncomePenalty   = 10.0
	PoorCreditPenalty         = 20.0
	MaxRiskScore              = 100.0
	MinRiskScore              = 0.0
)

// HighLoanToIncome reports whether the loan amount exceeds three months of
// applicant income.
func HighLoanToIncome(app domain.Application) bool {
	return app.LoanToIncomeRatio() > HighLoanToIncomeThreshold
}

// PoorCredit reports whether the applicant lacks a good credit history.
func PoorCredit(app domain.Application) bool {
	return app.CreditHistory < 1.0
}

// RiskScore derives a 0-100 risk score from the approval probability p.
func RiskScore(p float64, app domain.Application) float64 {
	risk := (1 - p) * 100
	if HighLoanToIncome(app) {
		risk += HighLoanToIncomePenalty
	}
	if PoorCredit(app) {
		risk += PoorCreditPenalty
	}
	return math.Max(MinRiskScore, math.Min(risk, MaxRiskScore))
}
