package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Training-time column names. The classifier artifact stores its feature
// order using these names.
const (
	ColumnGender            = "Gender"
	ColumnMarried           = "Married"
	ColumnDependents        = "Dependents"
	ColumnEducation         = "Education"
	ColumnSelfEmployed      = "Self_Employed"
	ColumnApplicantIncome   = "ApplicantIncome"
	ColumnCoapplicantIncome = "CoapplicantIncome"
	ColumnLoanAmount        = "LoanAmount"
	ColumnLoanAmountTerm    = "Loan_Amount_Term"
	ColumnCreditHistory     = "Credit_History"
	ColumnPropertyArea      = "Property_Area"
)

// CategoricalColumns lists the columns encoded through a category table.
var CategoricalColumns = []string{
	ColumnGender,
	ColumnMarried,
	ColumnDependents,
	ColumnEducation,
	ColumnSelfEmployed,
	ColumnPropertyArea,
}

// NumericColumns lists the columns passed to the classifier unchanged.
var NumericColumns = []string{
	ColumnApplicantIncome,
	ColumnCoapplicantIncome,
	ColumnLoanAmount,
	ColumnLoanAmountTerm,
	ColumnCreditHistory,
}

// IsCategorical reports whether column is one of the categorical columns.
func IsCategorical(column string) bool {
	for _, c := range CategoricalColumns {
		if c == column {
			return true
		}
	}
	return false
}

// IsNumeric reports whether column is one of the numeric columns.
func IsNumeric(column string) bool {
	for _, c := range NumericColumns {
		if c == column {
			return true
		}
	}
	return false
}

// Application holds the applicant attributes submitted for scoring.
// Values are never modified once received.
type Application struct {
	Gender       string `json:"gender"`
	Married      string `json:"married"`
	Dependents   string `json:"dependents"`
	Education    string `json:"education"`
	SelfEmployed string `json:"self_employed"`
	PropertyArea string `json:"property_area"`

	ApplicantIncome   float64 `json:"applicant_income"`
	CoapplicantIncome float64 `json:"coapplicant_income"`
	LoanAmount        float64 `json:"loan_amount"`
	LoanAmountTerm    float64 `json:"loan_amount_term"`
	CreditHistory     float64 `json:"credit_history"`
}

// Category returns the raw categorical value for a training column.
func (a Application) Category(column string) (string, bool) {
	switch column {
	case ColumnGender:
		return a.Gender, true
	case ColumnMarried:
		return a.Married, true
	case ColumnDependents:
		return a.Dependents, true
	case ColumnEducation:
		return a.Education, true
	case ColumnSelfEmployed:
		return a.SelfEmployed, true
	case ColumnPropertyArea:
		return a.PropertyArea, true
	}
	return "", false
}

// Numeric returns the raw numeric value for a training column.
func (a Application) Numeric(column string) (float64, bool) {
	switch column {
	case ColumnApplicantIncome:
		return a.ApplicantIncome, true
	case ColumnCoapplicantIncome:
		return a.CoapplicantIncome, true
	case ColumnLoanAmount:
		return a.LoanAmount, true
	case ColumnLoanAmountTerm:
		return a.LoanAmountTerm, true
	case ColumnCreditHistory:
		return a.CreditHistory, true
	}
	return 0, false
}

// MonthlyIncome is the applicant income spread over twelve months.
func (a Application) MonthlyIncome() float64 {
	return a.ApplicantIncome / 12
}

// LoanToIncomeRatio is the requested amount relative to monthly income.
func (a Application) LoanToIncomeRatio() float64 {
	return a.LoanAmount / a.MonthlyIncome()
}

// TotalIncome is applicant plus co-applicant income.
func (a Application) TotalIncome() float64 {
	return a.ApplicantIncome + a.CoapplicantIncome
}

// Number is a float64 that also accepts numeric strings when decoded from
// JSON. Form-based clients post every field as a string.
type Number float64

// UnmarshalJSON accepts 123, 123.5 and "123".
func (n *Number) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return fmt.Errorf("number is null")
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		s = strings.TrimSpace(str)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number: %q", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("not a finite number: %q", s)
	}
	*n = Number(v)
	return nil
}

// ApplicationRequest is the wire shape of an application. Pointer fields
// let validation tell a missing field from a zero value.
type ApplicationRequest struct {
	Gender       *string `json:"gender"`
	Married      *string `json:"married"`
	Dependents   *string `json:"dependents"`
	Education    *string `json:"education"`
	SelfEmployed *string `json:"self_employed"`
	PropertyArea *string `json:"property_area"`

	ApplicantIncome   *Number `json:"applicant_income"`
	CoapplicantIncome *Number `json:"coapplicant_income"`
	LoanAmount        *Number `json:"loan_amount"`
	LoanAmountTerm    *Number `json:"loan_amount_term"`
	CreditHistory     *Number `json:"credit_history"`
}

// FieldError describes one rejected request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every rejected field of a request.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "invalid application: " + strings.Join(parts, "; ")
}

// Unwrap lets callers match ErrInvalidInput.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// ToApplication validates the request and converts it to an Application.
func (r *ApplicationRequest) ToApplication() (Application, error) {
	var errs []FieldError
	str := func(field string, v *string) string {
		if v == nil {
			errs = append(errs, FieldError{Field: field, Message: "is required"})
			return ""
		}
		return *v
	}
	num := func(field string, v *Number) float64 {
		if v == nil {
			errs = append(errs, FieldError{Field: field, Message: "is required"})
			return 0
		}
		return float64(*v)
	}

	app := Application{
		Gender:            str("gender", r.Gender),
		Married:           str("married", r.Married),
		Dependents:        str("dependents", r.Dependents),
		Education:         str("education", r.Education),
		SelfEmployed:      str("self_employed", r.SelfEmployed),
		PropertyArea:      str("property_area", r.PropertyArea),
		ApplicantIncome:   num("applicant_income", r.ApplicantIncome),
		CoapplicantIncome: num("coapplicant_income", r.CoapplicantIncome),
		LoanAmount:        num("loan_amount", r.LoanAmount),
		LoanAmountTerm:    num("loan_amount_term", r.LoanAmountTerm),
		CreditHistory:     num("credit_history", r.CreditHistory),
	}

	if len(errs) == 0 {
		errs = app.check()
	}
	if len(errs) > 0 {
		return Application{}, &ValidationError{Fields: errs}
	}
	return app, nil
}

// Validate checks value ranges of an already decoded application.
func (a Application) Validate() error {
	if errs := a.check(); len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func (a Application) check() []FieldError {
	var errs []FieldError
	// The loan-to-income ratio divides by applicant income.
	if a.ApplicantIncome <= 0 {
		errs = append(errs, FieldError{Field: "applicant_income", Message: "must be greater than 0"})
	}
	if a.CoapplicantIncome < 0 {
		errs = append(errs, FieldError{Field: "coapplicant_income", Message: "must not be negative"})
	}
	if a.LoanAmount < 0 {
		errs = append(errs, FieldError{Field: "loan_amount", Message: "must not be negative"})
	}
	if a.LoanAmountTerm <= 0 {
		errs = append(errs, FieldError{Field: "loan_amount_term", Message: "must be greater than 0"})
	}
	if a.CreditHistory != 0 && a.CreditHistory != 1 {
		errs = append(errs, FieldError{Field: "credit_history", Message: "must be 0 or 1"})
	}
	return errs
}
