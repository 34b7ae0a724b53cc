// Package classifier evaluates the trained approval classifier.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opensource-finance/loanrisk/internal/artifact"
)

// Model type names as written in model.json.
const (
	TypeRandomForest = "random_forest"
	TypeLogistic     = "logistic"
	TypeRPC          = "rpc"
)

// Model returns per-class probabilities for one feature vector. The
// returned slice is indexed like the target encoder classes.
type Model interface {
	Name() string
	PredictProba(ctx context.Context, x []float64) ([]float64, error)
}

// Options tune model construction.
type Options struct {
	// RPCTimeout is used when the export does not name its own timeout.
	RPCTimeout time.Duration
}

// FromSpec builds a Model from a model.json export. nFeatures is the
// expected input width; nClasses the number of target classes.
func FromSpec(spec artifact.ModelSpec, nFeatures, nClasses int, opts Options) (Model, error) {
	switch spec.Type {
	case TypeRandomForest:
		var f Forest
		if err := json.Unmarshal(spec.Raw, &f); err != nil {
			return nil, fmt.Errorf("failed to parse random forest: %w", err)
		}
		if err := f.check(nFeatures, nClasses); err != nil {
			return nil, err
		}
		return &f, nil

	case TypeLogistic:
		var l Logistic
		if err := json.Unmarshal(spec.Raw, &l); err != nil {
			return nil, fmt.Errorf("failed to parse logistic model: %w", err)
		}
		if len(l.Coefficients) != nFeatures {
			return nil, fmt.Errorf("logistic model has %d coefficients, expected %d", len(l.Coefficients), nFeatures)
		}
		if nClasses != 2 {
			return nil, fmt.Errorf("logistic model is binary, artifact has %d classes", nClasses)
		}
		return &l, nil

	case TypeRPC:
		var raw struct {
			Endpoint string `json:"endpoint"`
			Timeout  string `json:"timeout"`
		}
		if err := json.Unmarshal(spec.Raw, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse rpc model: %w", err)
		}
		if raw.Endpoint == "" {
			return nil, fmt.Errorf("rpc model has no endpoint")
		}
		timeout := opts.RPCTimeout
		if raw.Timeout != "" {
			d, err := time.ParseDuration(raw.Timeout)
			if err != nil {
				return nil, fmt.Errorf("rpc model timeout: %w", err)
			}
			timeout = d
		}
		return NewRPC(raw.Endpoint, timeout, nClasses), nil

	default:
		return nil, fmt.Errorf("unsupported model type: %q", spec.Type)
	}
}
