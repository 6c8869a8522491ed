// internal/models/decision.go
package models

import "time"

// DecisionType enumerates the terminal decisions an evaluation can reach.
type DecisionType string

const (
	DecisionApproved             DecisionType = "approved"
	DecisionDisapproved          DecisionType = "disapproved"
	DecisionAdditionalInfoNeeded DecisionType = "additional_info_needed"
)

// LoanDecision carries the decision plus the fields that accompany it.
// Which optional fields are set depends on the decision type: approvals
// carry the risk score and offer terms, disapprovals carry a reason, and
// additional_info_needed carries the description of what is missing.
type LoanDecision struct {
	Decision                  DecisionType `json:"decision"`
	RiskScore                 *int         `json:"risk_score,omitempty"`
	DisapprovalReason         *string      `json:"disapproval_reason,omitempty"`
	AdditionalInfoDescription *string      `json:"additional_info_description,omitempty"`
	RecommendedAmount         *float64     `json:"recommended_amount,omitempty"`
	RecommendedTermMonths     *int         `json:"recommended_term_months,omitempty"`
	InterestRate              *float64     `json:"interest_rate,omitempty"`
	MonthlyPayment            *float64     `json:"monthly_payment,omitempty"`
}

// LoanOutcome is the complete evaluation result returned to callers and
// persisted for audit.
type LoanOutcome struct {
	RequestID        string       `json:"request_id"`
	Decision         LoanDecision `json:"decision"`
	ProcessingTimeMS int64        `json:"processing_time_ms"`
	ModelVersion     string       `json:"model_version"`
	Timestamp        time.Time    `json:"timestamp"`
	AgentTraceID     string       `json:"agent_trace_id,omitempty"`
}

// DecisionEvent is the trimmed payload published to the event stream when
// an evaluation completes.
type DecisionEvent struct {
	RequestID string       `json:"request_id"`
	Decision  DecisionType `json:"decision"`
	RiskScore *int         `json:"risk_score,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}
