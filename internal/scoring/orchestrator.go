package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/opensource-finance/loanrisk/internal/domain"
	"github.com/opensource-finance/loanrisk/internal/metrics"
)

// ErrScoringFailed wraps any failure to compute a decision.
var ErrScoringFailed = errors.New("scoring failed")

// Recorder stores a computed decision. Implementations assign the ID and
// creation timestamp and append the record in one atomic write.
type Recorder interface {
	RecordDecision(ctx context.Context, d domain.Decision) (*domain.Decision, error)
}

// Result is a stored decision plus how it was produced.
type Result struct {
	Decision    *domain.Decision
	Diagnostics Diagnostics
}

// Orchestrator scores applications end to end.
type Orchestrator struct {
	holder  *Holder
	store   Recorder
	bus     domain.EventBus
	metrics *metrics.Metrics
	loader  *Loader
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithEventBus publishes decision events to bus after each stored decision.
func WithEventBus(bus domain.EventBus) Option {
	return func(o *Orchestrator) { o.bus = bus }
}

// WithMetrics records pipeline metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithLoader enables Reload.
func WithLoader(l Loader) Option {
	return func(o *Orchestrator) { o.loader = &l }
}

// NewOrchestrator creates an orchestrator scoring against holder's current
// context and storing through store.
func NewOrchestrator(holder *Holder, store Recorder, opts ...Option) *Orchestrator {
	o := &Orchestrator{holder: holder, store: store}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Holder returns the context holder.
func (o *Orchestrator) Holder() *Holder {
	return o.holder
}

// Score evaluates app and stores the decision. On error nothing is returned;
// errors match ErrScoringFailed or domain.ErrPersistence.
func (o *Orchestrator) Score(ctx context.Context, app domain.Application) (*Result, error) {
	start := time.Now()

	if err := app.Validate(); err != nil {
		return nil, err
	}

	// The context is pinned for the whole call; a concurrent reload does
	// not change what this call sees.
	sc, err := o.holder.Current()
	if err != nil {
		o.metrics.ObserveFailure(false)
		return nil, fmt.Errorf("%w: %w", ErrScoringFailed, err)
	}

	assessment, diag, err := Evaluate(ctx, sc, app)
	if err != nil {
		o.metrics.ObserveFailure(false)
		return nil, fmt.Errorf("%w: %w", ErrScoringFailed, err)
	}

	d := domain.Decision{
		Application:           app,
		Approved:              assessment.Approved,
		ApprovalProbability:   assessment.Probability,
		RiskScore:             assessment.RiskScore,
		SuggestedInterestRate: assessment.InterestRate,
		FraudFlag:             assessment.FraudFlag,
		Explanation:           assessment.Explanation,
		ModelVersion:          sc.Version,
	}

	stored, err := o.store.RecordDecision(ctx, d)
	if err != nil {
		o.metrics.ObserveFailure(true)
		slog.Error("failed to record decision", "error", err)
		return nil, fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}

	o.metrics.ObserveDecision(stored.Approved, stored.FraudFlag, diag.FallbackFields, time.Since(start))

	if len(diag.FallbackFields) > 0 {
		slog.Debug("category fallback used",
			"decision_id", stored.ID,
			"fields", diag.FallbackFields,
		)
	}
	if stored.FraudFlag {
		slog.Debug("fraud heuristic triggered",
			"decision_id", stored.ID,
			"rules", diag.FraudRules,
		)
	}

	o.publish(ctx, stored, diag)

	return &Result{Decision: stored, Diagnostics: diag}, nil
}

// publish announces a stored decision. Failures are logged only; the
// decision is already durable.
func (o *Orchestrator) publish(ctx context.Context, d *domain.Decision, diag Diagnostics) {
	if o.bus == nil {
		return
	}

	payload, err := json.Marshal(domain.DecisionEvent{
		Decision:       d,
		FallbackFields: diag.FallbackFields,
		FraudRules:     diag.FraudRules,
		TraceID:        traceIDFrom(ctx),
	})
	if err != nil {
		slog.Error("failed to encode decision event", "decision_id", d.ID, "error", err)
		return
	}

	if err := o.bus.Publish(ctx, domain.TopicDecisionScored, payload); err != nil {
		slog.Error("failed to publish decision",
			"decision_id", d.ID,
			"error", err,
		)
	}

	if d.FraudFlag {
		if err := o.bus.Publish(ctx, domain.TopicDecisionFraudFlagged, payload); err != nil {
			slog.Error("failed to publish fraud flag",
				"decision_id", d.ID,
				"error", err,
			)
		}
	}
}

// Reload rebuilds the scoring context from the configured artifact
// directory and swaps it in. The previous context stays active on failure.
func (o *Orchestrator) Reload(ctx context.Context) (*Context, error) {
	if o.loader == nil {
		return nil, fmt.Errorf("no artifact loader configured")
	}

	sc, err := o.loader.Load(ctx)
	o.metrics.ObserveReload(err)
	if err != nil {
		return nil, fmt.Errorf("failed to reload artifacts: %w", err)
	}

	o.holder.Store(sc)
	slog.Info("scoring artifacts reloaded",
		"version", sc.Version,
		"dir", sc.ArtifactDir,
	)
	return sc, nil
}
