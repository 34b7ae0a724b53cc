package explain

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opensource-finance/loanrisk/internal/domain"
)

func app(income, coIncome, amount, credit float64) domain.Application {
	return domain.Application{
		ApplicantIncome:   income,
		CoapplicantIncome: coIncome,
		LoanAmount:        amount,
		LoanAmountTerm:    360,
		CreditHistory:     credit,
	}
}

func TestReasonsOrder(t *testing.T) {
	tests := []struct {
		name string
		app  domain.Application
		want []string
	}{
		{"none", app(5000, 0, 100, 1), nil},
		{"poor credit", app(5000, 0, 100, 0), []string{ReasonPoorCredit}},
		{"high ratio", app(5000, 0, 1300, 1), []string{ReasonHighLoanToIncome}},
		{"low income", app(2000, 500, 100, 1), []string{ReasonLowIncome}},
		{"co-applicant lifts income", app(2000, 1000, 100, 1), nil},
		{"all three", app(1200, 0, 400, 0), []string{ReasonPoorCredit, ReasonHighLoanToIncome, ReasonLowIncome}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Reasons(tt.app))
		})
	}
}

func TestGenerate(t *testing.T) {
	t.Run("low risk approval ignores reasons", func(t *testing.T) {
		assert.Equal(t, LowRiskMessage, Generate(true, 10, app(1200, 0, 400, 0)))
		assert.Equal(t, LowRiskMessage, Generate(true, 29.99, app(5000, 0, 100, 1)))
	})

	t.Run("elevated risk approval", func(t *testing.T) {
		got := Generate(true, 30, app(1200, 0, 400, 0))
		assert.Equal(t, "✅ Application approved but with elevated risk due to: poor credit history, high loan-to-income ratio, low total income. Higher interest rate recommended.", got)
	})

	t.Run("elevated risk without reasons", func(t *testing.T) {
		got := Generate(true, 45, app(5000, 0, 100, 1))
		assert.Equal(t, "✅ Application approved but with elevated risk due to: moderate risk factors. Higher interest rate recommended.", got)
	})

	t.Run("rejection", func(t *testing.T) {
		got := Generate(false, 70, app(5000, 0, 100, 0))
		assert.Equal(t, "❌ Application rejected due to: poor credit history. Recommend improving credit score and income stability.", got)
	})

	t.Run("rejection without reasons", func(t *testing.T) {
		got := Generate(false, 5, app(5000, 0, 100, 1))
		assert.Equal(t, "❌ Application rejected due to: overall risk assessment. Recommend improving credit score and income stability.", got)
	})
}

func TestGenerateDeterministic(t *testing.T) {
	a := app(1200, 0, 400, 0)
	assert.Equal(t, Generate(false, 90, a), Generate(false, 90, a))
}
