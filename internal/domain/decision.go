package domain

import (
	"time"
)

// Decision is the persisted outcome of one scoring call.
// It is created once by the orchestrator and never mutated afterwards.
type Decision struct {
	ID string `json:"id"`

	Application

	Approved              bool    `json:"approved"`
	ApprovalProbability   float64 `json:"approval_probability"`
	RiskScore             float64 `json:"risk_score"`
	SuggestedInterestRate float64 `json:"suggested_interest_rate"`
	FraudFlag             bool    `json:"fraud_flag"`
	Explanation           string  `json:"explanation"`

	ModelVersion string    `json:"model_version,omitempty"`
	CreatedAt    time.Time `json:"timestamp"`
}

// Stats is the aggregate view over all stored decisions.
type Stats struct {
	TotalApplications int64   `json:"total_applications"`
	Approved          int64   `json:"approved"`
	Rejected          int64   `json:"rejected"`
	ApprovalRate      float64 `json:"approval_rate"`
	AverageRiskScore  float64 `json:"average_risk_score"`
}

// NewStats derives rejected count and approval rate from raw counts.
func NewStats(total, approved int64, avgRisk float64) Stats {
	s := Stats{
		TotalApplications: total,
		Approved:          approved,
		Rejected:          total - approved,
		AverageRiskScore:  avgRisk,
	}
	if total > 0 {
		s.ApprovalRate = float64(approved) / float64(total) * 100
	}
	return s
}

// DecisionEvent is the payload published on the decision topics.
type DecisionEvent struct {
	Decision       *Decision `json:"decision"`
	FallbackFields []string  `json:"fallbackFields,omitempty"`
	FraudRules     []string  `json:"fraudRules,omitempty"`
	TraceID        string    `json:"traceId,omitempty"`
}

// ApplicationMessage is the payload of an asynchronously submitted application.
type ApplicationMessage struct {
	RequestID   string      `json:"requestId"`
	TraceID     string      `json:"traceId,omitempty"`
	Application Application `json:"application"`
}

// FailureEvent is published when an asynchronously submitted application
// could not be scored.
type FailureEvent struct {
	RequestID string `json:"requestId"`
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}
