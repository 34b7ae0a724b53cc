// Package scoring runs the application scoring pipeline: encode, classify,
// apply risk, pricing and fraud rules, explain, then record the decision.
package scoring

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/opensource-finance/loanrisk/internal/artifact"
	"github.com/opensource-finance/loanrisk/internal/classifier"
	"github.com/opensource-finance/loanrisk/internal/domain"
	"github.com/opensource-finance/loanrisk/internal/encoder"
	"github.com/opensource-finance/loanrisk/internal/rules"
)

// Options control how a Context is built from an artifact bundle.
type Options struct {
	ApprovedLabel string
	Fraud         domain.FraudConfig
	Model         classifier.Options
}

// OptionsFromConfig derives Options from the service configuration.
func OptionsFromConfig(cfg *domain.Config) Options {
	return Options{
		ApprovedLabel: cfg.Model.ApprovedLabel,
		Fraud:         cfg.Fraud,
		Model:         classifier.Options{RPCTimeout: cfg.Model.RPCTimeout},
	}
}

// Context is everything one scoring call needs. It is built once per
// artifact load and never modified, so concurrent calls share it freely.
type Context struct {
	Encoder    *encoder.Encoder
	Classifier *classifier.Adapter
	Fraud      *rules.FraudEngine

	Version     string
	ArtifactDir string
	TrainedAt   time.Time
	LoadedAt    time.Time
}

// NewContext wires the pipeline components for bundle b.
func NewContext(b *artifact.Bundle, opts Options) (*Context, error) {
	enc, err := encoder.New(b.FeatureNames, b.LabelEncoders)
	if err != nil {
		return nil, fmt.Errorf("failed to build encoder: %w", err)
	}

	model, err := classifier.FromSpec(b.Model, enc.Len(), len(b.TargetClasses), opts.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to build classifier: %w", err)
	}

	adapter, err := classifier.NewAdapter(model, b.TargetClasses, opts.ApprovedLabel)
	if err != nil {
		return nil, err
	}

	fraud, err := rules.NewFraudEngine(opts.Fraud)
	if err != nil {
		return nil, fmt.Errorf("failed to build fraud engine: %w", err)
	}

	return &Context{
		Encoder:     enc,
		Classifier:  adapter,
		Fraud:       fraud,
		Version:     b.Metadata.Version,
		ArtifactDir: b.Dir,
		TrainedAt:   b.Metadata.TrainedAt,
		LoadedAt:    time.Now().UTC(),
	}, nil
}

// Loader builds Contexts from an artifact directory.
type Loader struct {
	Dir     string
	Options Options
}

// Load reads the bundle and builds a Context from it.
func (l Loader) Load(ctx context.Context) (*Context, error) {
	b, err := artifact.Load(ctx, l.Dir)
	if err != nil {
		return nil, err
	}
	return NewContext(b, l.Options)
}

// Holder publishes the current Context. Swapping it never affects calls
// already holding the previous one.
type Holder struct {
	current atomic.Pointer[Context]
}

// NewHolder returns a holder with sc loaded; sc may be nil.
func NewHolder(sc *Context) *Holder {
	h := &Holder{}
	if sc != nil {
		h.current.Store(sc)
	}
	return h
}

// Current returns the loaded Context or domain.ErrModelUnavailable.
func (h *Holder) Current() (*Context, error) {
	sc := h.current.Load()
	if sc == nil {
		return nil, domain.ErrModelUnavailable
	}
	return sc, nil
}

// Store replaces the current Context.
func (h *Holder) Store(sc *Context) {
	h.current.Store(sc)
}
