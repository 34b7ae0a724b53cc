package scoring

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/loanrisk/internal/domain"
	"github.com/opensource-finance/loanrisk/internal/explain"
	"github.com/opensource-finance/loanrisk/internal/rules"
)

var tracer = otel.Tracer("loanrisk-scoring")

// Assessment is the derived part of a decision.
type Assessment struct {
	Approved     bool
	Probability  float64
	RiskScore    float64
	InterestRate float64
	FraudFlag    bool
	Explanation  string
}

// Diagnostics explains how an assessment was reached.
type Diagnostics struct {
	FallbackFields []string `json:"fallback_fields"`
	FraudRules     []string `json:"fraud_rules"`
	ModelVersion   string   `json:"model_version"`
}

// Evaluate runs the pure pipeline stages against sc. It has no side effects.
func Evaluate(ctx context.Context, sc *Context, app domain.Application) (Assessment, Diagnostics, error) {
	ctx, span := tracer.Start(ctx, "scoring.evaluate",
		trace.WithAttributes(attribute.String("model.version", sc.Version)),
	)
	defer span.End()

	diag := Diagnostics{ModelVersion: sc.Version}

	vector, encDiag := sc.Encoder.Encode(app)
	diag.FallbackFields = encDiag.FallbackFields()

	outcome, err := sc.Classifier.Predict(ctx, vector)
	if err != nil {
		span.RecordError(err)
		return Assessment{}, diag, fmt.Errorf("classify: %w", err)
	}

	risk := rules.RiskScore(outcome.Probability, app)
	rate := rules.InterestRate(risk, outcome.Approved)

	fraud, err := sc.Fraud.Evaluate(ctx, app)
	if err != nil {
		span.RecordError(err)
		return Assessment{}, diag, fmt.Errorf("fraud rules: %w", err)
	}
	diag.FraudRules = fraud.Triggered

	span.SetAttributes(
		attribute.Bool("decision.approved", outcome.Approved),
		attribute.Float64("decision.risk_score", risk),
		attribute.Bool("decision.fraud_flag", fraud.Flagged),
	)

	return Assessment{
		Approved:     outcome.Approved,
		Probability:  outcome.Probability,
		RiskScore:    risk,
		InterestRate: rate,
		FraudFlag:    fraud.Flagged,
		Explanation:  explain.Generate(outcome.Approved, risk, app),
	}, diag, nil
}
