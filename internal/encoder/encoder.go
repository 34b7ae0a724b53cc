// Package encoder turns an application into the numeric feature vector the
// classifier was trained on.
package encoder

import (
	"fmt"

	"github.com/opensource-finance/loanrisk/internal/domain"
)

// NeutralCode is assigned to category values unseen at training time.
const NeutralCode = 0

// Vector is an ordered numeric feature vector.
type Vector []float64

// Diagnostics reports how an encoding was produced.
type Diagnostics struct {
	// UsedFallback is set for every categorical column whose value was not
	// in its category table.
	UsedFallback map[string]bool

	order []string
}

// FallbackFields lists columns that fell back to NeutralCode, in feature order.
func (d Diagnostics) FallbackFields() []string {
	if len(d.UsedFallback) == 0 {
		return nil
	}
	out := make([]string, 0, len(d.UsedFallback))
	for _, col := range d.order {
		if d.UsedFallback[col] {
			out = append(out, col)
		}
	}
	return out
}

type step struct {
	column string
	codes  map[string]int // nil for numeric columns
}

// Encoder holds an immutable encoding plan. Safe for concurrent use.
type Encoder struct {
	steps []step
	names []string
}

// New builds an encoding plan from the artifact's ordered feature list and
// per-column category tables (class list, code = index).
func New(featureNames []string, tables map[string][]string) (*Encoder, error) {
	if len(featureNames) == 0 {
		return nil, fmt.Errorf("encoder: empty feature list")
	}

	used := make(map[string]bool, len(tables))
	e := &Encoder{
		steps: make([]step, 0, len(featureNames)),
		names: append([]string(nil), featureNames...),
	}

	for _, col := range featureNames {
		switch {
		case domain.IsCategorical(col):
			classes, ok := tables[col]
			if !ok {
				return nil, fmt.Errorf("encoder: no category table for categorical column %q", col)
			}
			codes := make(map[string]int, len(classes))
			for i, c := range classes {
				if _, dup := codes[c]; dup {
					return nil, fmt.Errorf("encoder: duplicate class %q in table for %q", c, col)
				}
				codes[c] = i
			}
			used[col] = true
			e.steps = append(e.steps, step{column: col, codes: codes})
		case domain.IsNumeric(col):
			e.steps = append(e.steps, step{column: col})
		default:
			return nil, fmt.Errorf("encoder: unknown feature column %q", col)
		}
	}

	for col := range tables {
		if !used[col] {
			return nil, fmt.Errorf("encoder: category table for %q does not match a categorical feature", col)
		}
	}
	return e, nil
}

// Len is the vector length this encoder produces.
func (e *Encoder) Len() int {
	return len(e.steps)
}

// FeatureNames returns the feature order.
func (e *Encoder) FeatureNames() []string {
	return append([]string(nil), e.names...)
}

// Encode maps app to a vector in feature order. Unseen category values get
// NeutralCode and are reported in the diagnostics.
func (e *Encoder) Encode(app domain.Application) (Vector, Diagnostics) {
	v := make(Vector, len(e.steps))
	diag := Diagnostics{order: e.names}

	for i, s := range e.steps {
		if s.codes == nil {
			v[i], _ = app.Numeric(s.column)
			continue
		}
		raw, _ := app.Category(s.column)
		code, ok := s.codes[raw]
		if !ok {
			code = NeutralCode
			if diag.UsedFallback == nil {
				diag.UsedFallback = make(map[string]bool)
			}
			diag.UsedFallback[s.column] = true
		}
		v[i] = float64(code)
	}
	return v, diag
}
