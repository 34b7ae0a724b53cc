package classifier

import (
	"context"
	"fmt"
	"math"
)

// Logistic is a binary logistic regression model:
// p(class 1) = 1 / (1 + exp(-(Intercept + sum(Coefficients[i] * x[i])))).
type Logistic struct {
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
}

// Name implements Model.
func (l *Logistic) Name() string { return TypeLogistic }

// PredictProba implements Model.
func (l *Logistic) PredictProba(ctx context.Context, x []float64) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(x) != len(l.Coefficients) {
		return nil, fmt.Errorf("logistic: vector has %d features, expected %d", len(x), len(l.Coefficients))
	}
	z := l.Intercept
	for i, w := range l.Coefficients {
		z += w * x[i]
	}
	p := 1 / (1 + math.Exp(-z))
	return []float64{1 - p, p}, nil
}
