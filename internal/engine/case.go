// internal/engine/case.go
package engine

import "loan-underwriter/internal/models"

// State identifies where a case sits in the evaluation pipeline.
type State string

const (
	StateValidating        State = "VALIDATING"
	StateGating            State = "GATING"
	StateScoring           State = "SCORING"
	StateCompliancePending State = "COMPLIANCE_PENDING"
	StateDeciding          State = "DECIDING"
	StateDone              State = "DONE"
)

// Case is the single accumulating record threaded through the pipeline
// stages. Each stage reads what earlier stages wrote and adds its own
// fields; nothing outside one evaluation run ever sees a Case.
type Case struct {
	Request models.LoanRequest
	TraceID string
	State   State

	// Written by the eligibility gate.
	DTIRatio                  float64
	RejectionReason           string
	NeedAdditionalInfo        bool
	AdditionalInfoDescription string

	// Written by the risk scorer.
	RiskScore int

	// Written by the compliance check.
	PolicyCompliant bool
	PolicyNotes     string

	// Written by the decision renderer. The terminal state always holds
	// exactly one decision.
	Decision *models.LoanDecision
}

// GateOutcome is the routing result of the eligibility gate.
type GateOutcome string

const (
	GateContinue GateOutcome = "continue"
	GateReject   GateOutcome = "reject"
	GateNeedInfo GateOutcome = "need_info"
)

// GateResult carries the gate's routing decision plus the fields the
// surviving path needs.
type GateResult struct {
	Outcome     GateOutcome
	DTIRatio    float64
	Reason      string // set when Outcome is GateReject
	Description string // set when Outcome is GateNeedInfo
}
