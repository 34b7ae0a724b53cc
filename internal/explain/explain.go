// Package explain writes the human-readable rationale for a decision.
package explain

import (
	"fmt"
	"strings"

	"github.com/opensource-finance/loanrisk/internal/domain"
	"github.com/opensource-finance/loanrisk/internal/rules"
)

// Reason phrases, in the order they are reported.
const (
	ReasonPoorCredit       = "poor credit history"
	ReasonHighLoanToIncome = "high loan-to-income ratio"
	ReasonLowIncome        = "low total income"
)

// LowIncomeThreshold is the combined income below which ReasonLowIncome applies.
const LowIncomeThreshold = 3000.0

// LowRiskThreshold separates the low-risk approval message from the
// elevated-risk one.
const LowRiskThreshold = 30.0

// LowRiskMessage is used for every approval under LowRiskThreshold.
const LowRiskMessage = "✅ Application approved with low risk. Applicant shows strong financial profile with good credit history."

const (
	elevatedFallback = "moderate risk factors"
	rejectedFallback = "overall risk assessment"
)

// Reasons lists the risk factors present in app.
func Reasons(app domain.Application) []string {
	var reasons []string
	if rules.PoorCredit(app) {
		reasons = append(reasons, ReasonPoorCredit)
	}
	if rules.HighLoanToIncome(app) {
		reasons = append(reasons, ReasonHighLoanToIncome)
	}
	if app.TotalIncome() < LowIncomeThreshold {
		reasons = append(reasons, ReasonLowIncome)
	}
	return reasons
}

// Generate returns the explanation for a decision with the given approval
// and risk score.
func Generate(approved bool, risk float64, app domain.Application) string {
	if approved && risk < LowRiskThreshold {
		return LowRiskMessage
	}

	reasons := Reasons(app)
	if approved {
		return fmt.Sprintf("✅ Application approved but with elevated risk due to: %s. Higher interest rate recommended.",
			join(reasons, elevatedFallback))
	}
	return fmt.Sprintf("❌ Application rejected due to: %s. Recommend improving credit score and income stability.",
		join(reasons, rejectedFallback))
}

func join(reasons []string, fallback string) string {
	if len(reasons) == 0 {
		return fallback
	}
	return strings.Join(reasons, ", ")
}
