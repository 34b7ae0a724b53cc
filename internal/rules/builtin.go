package rules

import "github.com/opensource-finance/loanrisk/internal/domain"

// Built-in fraud rule IDs.
const (
	RuleHighIncome         = "high_income"
	RuleLargeLoan          = "large_loan"
	RuleLowIncomeLargeLoan = "low_income_large_loan"
)

// BuiltinRules returns the default fraud heuristic. Any single match flags
// the application.
func BuiltinRules() []domain.FraudRule {
	return []domain.FraudRule{
		{ID: RuleHighIncome, Expression: "applicant_income > 50000.0"},
		{ID: RuleLargeLoan, Expression: "loan_amount > 1000.0"},
		{ID: RuleLowIncomeLargeLoan, Expression: "applicant_income < 1000.0 && loan_amount > 200.0"},
	}
}
