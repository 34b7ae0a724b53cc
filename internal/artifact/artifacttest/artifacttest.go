// Package artifacttest provides a small artifact bundle for tests of
// packages that need a loaded scoring context.
package artifacttest

import (
	"testing"

	"github.com/opensource-finance/loanrisk/internal/artifact"
	"github.com/opensource-finance/loanrisk/internal/domain"
)

// Version is the metadata version of Bundle.
const Version = "test-v1"

// creditForest approves with p=0.9 when Credit_History > 0.5 and rejects
// with p=0.2 otherwise.
const creditForest = `{
  "type": "random_forest",
  "trees": [{
    "children_left":  [1, -1, -1],
    "children_right": [2, -1, -1],
    "feature":        [9, -2, -2],
    "threshold":      [0.5, -2, -2],
    "value":          [[0, 0], [8, 2], [1, 9]]
  }]
}`

// Bundle returns a single-tree forest over the standard training columns.
func Bundle() *artifact.Bundle {
	return &artifact.Bundle{
		Dir: "artifacttest",
		FeatureNames: []string{
			domain.ColumnGender, domain.ColumnMarried, domain.ColumnDependents,
			domain.ColumnEducation, domain.ColumnSelfEmployed,
			domain.ColumnApplicantIncome, domain.ColumnCoapplicantIncome,
			domain.ColumnLoanAmount, domain.ColumnLoanAmountTerm,
			domain.ColumnCreditHistory, domain.ColumnPropertyArea,
		},
		LabelEncoders: map[string][]string{
			domain.ColumnGender:       {"Female", "Male"},
			domain.ColumnMarried:      {"No", "Yes"},
			domain.ColumnDependents:   {"0", "1", "2", "3+"},
			domain.ColumnEducation:    {"Graduate", "Not Graduate"},
			domain.ColumnSelfEmployed: {"No", "Yes"},
			domain.ColumnPropertyArea: {"Rural", "Semiurban", "Urban"},
		},
		TargetClasses: []string{"N", "Y"},
		Model:         artifact.ModelSpec{Type: "random_forest", Raw: []byte(creditForest)},
		Metadata:      artifact.Metadata{Version: Version},
	}
}

// WriteDir saves Bundle to a temporary directory and returns it.
func WriteDir(tb testing.TB) string {
	tb.Helper()
	dir := tb.TempDir()
	if err := artifact.Save(dir, Bundle()); err != nil {
		tb.Fatalf("failed to write artifacts: %v", err)
	}
	return dir
}

// Application returns a complete application with good credit history.
func Application() domain.Application {
	return domain.Application{
		Gender:            "Male",
		Married:           "Yes",
		Dependents:        "0",
		Education:         "Graduate",
		SelfEmployed:      "No",
		ApplicantIncome:   5000,
		CoapplicantIncome: 0,
		LoanAmount:        100,
		LoanAmountTerm:    360,
		CreditHistory:     1,
		PropertyArea:      "Urban",
	}
}
