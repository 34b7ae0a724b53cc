// Package rules provides the risk, pricing and fraud rules applied after
// the classifier has produced an approval probability.
package rules

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opensource-finance/loanrisk/internal/domain"
)

// FraudResult is the outcome of the fraud heuristic. It is advisory and
// never changes the approval decision.
type FraudResult struct {
	Flagged   bool
	Triggered []string // rule IDs, in rule order
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  domain.FraudRule
	Program cel.Program
}

// FraudEngine evaluates boolean CEL rules over applicant attributes.
// Rules are compiled once; the engine is immutable and safe for concurrent use.
type FraudEngine struct {
	env   *cel.Env
	rules []*CompiledRule
}

// NewEnv creates the CEL environment fraud rules are compiled against.
// Every attribute is a double.
func NewEnv() (*cel.Env, error) {
	env, err := cel.NewEnv(
		cel.Variable("applicant_income", cel.DoubleType),
		cel.Variable("coapplicant_income", cel.DoubleType),
		cel.Variable("total_income", cel.DoubleType),
		cel.Variable("loan_amount", cel.DoubleType),
		cel.Variable("loan_amount_term", cel.DoubleType),
		cel.Variable("credit_history", cel.DoubleType),
		// Lets config-authored rules compare doubles with int literals.
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return env, nil
}

// NewFraudEngine compiles the built-in rules merged with cfg.
// A configured rule with a built-in ID replaces it in place; new IDs are
// appended. Disabled rules are dropped.
func NewFraudEngine(cfg domain.FraudConfig) (*FraudEngine, error) {
	env, err := NewEnv()
	if err != nil {
		return nil, err
	}

	e := &FraudEngine{env: env}
	for _, r := range MergeRules(cfg) {
		compiled, err := e.compileRule(r)
		if err != nil {
			return nil, err
		}
		e.rules = append(e.rules, compiled)
	}
	return e, nil
}

// MergeRules resolves the effective rule list for cfg.
func MergeRules(cfg domain.FraudConfig) []domain.FraudRule {
	var merged []domain.FraudRule
	if !cfg.ReplaceDefaults {
		merged = BuiltinRules()
	}

	index := make(map[string]int, len(merged))
	for i, r := range merged {
		index[r.ID] = i
	}
	for _, r := range cfg.Rules {
		if i, ok := index[r.ID]; ok {
			merged[i] = r
			continue
		}
		index[r.ID] = len(merged)
		merged = append(merged, r)
	}

	out := merged[:0]
	for _, r := range merged {
		if !r.Disabled {
			out = append(out, r)
		}
	}
	return out
}

// ValidateRule compiles a rule without loading it.
func ValidateRule(r domain.FraudRule) error {
	env, err := NewEnv()
	if err != nil {
		return err
	}
	_, err = (&FraudEngine{env: env}).compileRule(r)
	return err
}

// Evaluate runs every rule in order against app.
func (e *FraudEngine) Evaluate(ctx context.Context, app domain.Application) (FraudResult, error) {
	activation := map[string]any{
		"applicant_income":   app.ApplicantIncome,
		"coapplicant_income": app.CoapplicantIncome,
		"total_income":       app.TotalIncome(),
		"loan_amount":        app.LoanAmount,
		"loan_amount_term":   app.LoanAmountTerm,
		"credit_history":     app.CreditHistory,
	}

	var result FraudResult
	for _, rule := range e.rules {
		if err := ctx.Err(); err != nil {
			return FraudResult{}, err
		}
		out, _, err := rule.Program.Eval(activation)
		if err != nil {
			return FraudResult{}, fmt.Errorf("failed to evaluate fraud rule %s: %w", rule.Config.ID, err)
		}
		if out == types.True {
			result.Flagged = true
			result.Triggered = append(result.Triggered, rule.Config.ID)
		}
	}
	return result, nil
}

// Rules returns the loaded rule configurations in evaluation order.
func (e *FraudEngine) Rules() []domain.FraudRule {
	rules := make([]domain.FraudRule, 0, len(e.rules))
	for _, compiled := range e.rules {
		rules = append(rules, compiled.Config)
	}
	return rules
}

// RulesCount returns the number of loaded rules.
func (e *FraudEngine) RulesCount() int {
	return len(e.rules)
}

func (e *FraudEngine) compileRule(r domain.FraudRule) (*CompiledRule, error) {
	ast, issues := e.env.Compile(r.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile fraud rule %s: %w", r.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("fraud rule %s: expression must return bool, got %s", r.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for fraud rule %s: %w", r.ID, err)
	}

	return &CompiledRule{
		Config:  r,
		Program: program,
	}, nil
}
