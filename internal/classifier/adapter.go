package classifier

import (
	"context"
	"fmt"
	"math"
)

// DefaultApprovedLabel is the target class meaning "approved".
const DefaultApprovedLabel = "Y"

// Outcome is the classifier's verdict for one application.
type Outcome struct {
	// Label is the arg-max target class.
	Label string
	// Approved is Label == the approved class.
	Approved bool
	// Probability is the approved-class probability in [0,1].
	Probability float64
}

// Adapter pairs a model with the target encoder classes.
type Adapter struct {
	model       Model
	classes     []string
	approvedIdx int
}

// NewAdapter builds an adapter. approvedLabel must be one of classes; an
// empty label means DefaultApprovedLabel.
func NewAdapter(model Model, classes []string, approvedLabel string) (*Adapter, error) {
	if model == nil {
		return nil, fmt.Errorf("classifier: nil model")
	}
	if approvedLabel == "" {
		approvedLabel = DefaultApprovedLabel
	}
	idx := -1
	for i, c := range classes {
		if c == approvedLabel {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("classifier: approved label %q not among target classes %v", approvedLabel, classes)
	}
	return &Adapter{
		model:       model,
		classes:     append([]string(nil), classes...),
		approvedIdx: idx,
	}, nil
}

// ModelName is the underlying model's name.
func (a *Adapter) ModelName() string {
	return a.model.Name()
}

// Classes returns the target classes in encoder order.
func (a *Adapter) Classes() []string {
	return append([]string(nil), a.classes...)
}

// Predict classifies an encoded vector. Ties resolve to the lowest class index.
func (a *Adapter) Predict(ctx context.Context, x []float64) (Outcome, error) {
	proba, err := a.model.PredictProba(ctx, x)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to predict: %w", err)
	}
	if len(proba) != len(a.classes) {
		return Outcome{}, fmt.Errorf("model returned %d probabilities for %d classes", len(proba), len(a.classes))
	}

	best := 0
	for i, p := range proba {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return Outcome{}, fmt.Errorf("model returned invalid probability %v for class %q", p, a.classes[i])
		}
		if p > proba[best] {
			best = i
		}
	}

	return Outcome{
		Label:       a.classes[best],
		Approved:    best == a.approvedIdx,
		Probability: proba[a.approvedIdx],
	}, nil
}
