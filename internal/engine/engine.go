// internal/engine/engine.go
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"loan-underwriter/internal/common/errors"
	"loan-underwriter/internal/common/logger"
	"loan-underwriter/internal/common/metrics"
	"loan-underwriter/internal/models"
)

// Config holds the read-only thresholds and pricing constants the engine
// needs. It is copied at construction and never mutated afterwards, so
// concurrent evaluations share it without coordination.
type Config struct {
	MinCreditScore      int
	MaxDTIRatio         float64
	MinEmploymentMonths int
	BaseInterestRate    float64
	MaxRiskPremium      float64
	Version             string
}

// Verdict is the structured answer of the policy compliance oracle.
type Verdict struct {
	Compliant          bool     `json:"compliant"`
	Reason             string   `json:"reason,omitempty"`
	Notes              string   `json:"notes,omitempty"`
	MissingInformation []string `json:"missing_information,omitempty"`
}

// ComplianceOracle judges an application summary plus risk score against
// lending policy. Implementations may be slow, unreachable, or return
// garbage; the engine fails closed on every error and never substitutes a
// default verdict.
type ComplianceOracle interface {
	CheckCompliance(ctx context.Context, req models.LoanRequest, riskScore int) (*Verdict, error)
}

// Engine runs the underwriting pipeline. Safe for concurrent use: every
// evaluation owns its case record and the engine itself holds only
// immutable configuration.
type Engine struct {
	cfg    Config
	oracle ComplianceOracle
	logger logger.Logger
	now    func() time.Time
}

func New(cfg Config, oracle ComplianceOracle, log logger.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		oracle: oracle,
		logger: log.WithFields(map[string]interface{}{"component": "engine"}),
		now:    time.Now,
	}
}

// Evaluate runs one application through the full pipeline and returns its
// outcome. Validation failures and oracle failures return an error; every
// other path, including rejection, is a successful evaluation.
func (e *Engine) Evaluate(ctx context.Context, req models.LoanRequest) (*models.LoanOutcome, error) {
	start := e.now()
	traceID := fmt.Sprintf("trace-%s-%d", req.RequestID, start.Unix())

	log := e.logger.WithFields(map[string]interface{}{
		"requestId": req.RequestID,
		"traceId":   traceID,
	})
	log.Info("processing loan request", map[string]interface{}{
		"loanAmount":  req.LoanDetails.Amount,
		"creditScore": req.CreditHistory.CreditScore,
	})

	metrics.EvaluationsActive.Inc()
	defer metrics.EvaluationsActive.Dec()

	// Validation happens before the case enters the state machine: a
	// malformed request is an error, never a decision.
	if violations := Validate(req, start); len(violations) > 0 {
		log.Warn("loan application failed validation", map[string]interface{}{
			"violationCount": len(violations),
		})
		metrics.EvaluationsFailed.WithLabelValues(string(errors.ErrCodeValidationFailed)).Inc()
		return nil, errors.NewValidationFailedError(strings.Join(violations, "; ")).
			WithMetadata("violations", violations)
	}

	c := &Case{Request: req, TraceID: traceID, State: StateGating}

	for c.State != StateDone {
		switch c.State {
		case StateGating:
			result := applyGate(req, e.cfg)
			c.DTIRatio = result.DTIRatio

			switch result.Outcome {
			case GateReject:
				log.Info("eligibility gate rejected application", map[string]interface{}{
					"reason": result.Reason,
				})
				c.RejectionReason = result.Reason
				c.State = StateDeciding
			case GateNeedInfo:
				log.Info("eligibility gate requires additional information", nil)
				c.NeedAdditionalInfo = true
				c.AdditionalInfoDescription = result.Description
				c.State = StateDeciding
			default:
				c.State = StateScoring
			}

		case StateScoring:
			c.RiskScore = riskScore(req, c.DTIRatio, start)
			log.Info("risk score calculated", map[string]interface{}{
				"riskScore": c.RiskScore,
				"dtiRatio":  c.DTIRatio,
			})
			c.State = StateCompliancePending

		case StateCompliancePending:
			verdict, err := e.oracle.CheckCompliance(ctx, req, c.RiskScore)
			if err != nil {
				stdErr := errors.FromError(err)
				log.WithError(stdErr).Error("policy compliance check failed", map[string]interface{}{
					"errorCode": string(stdErr.Code),
				})
				metrics.EvaluationsFailed.WithLabelValues(string(stdErr.Code)).Inc()
				return nil, stdErr
			}

			c.PolicyCompliant = verdict.Compliant
			c.PolicyNotes = verdict.Notes
			if !verdict.Compliant {
				c.RejectionReason = nonComplianceReason(*verdict)
				log.Info("application is not policy compliant", map[string]interface{}{
					"reason": c.RejectionReason,
				})
			}
			c.State = StateDeciding

		case StateDeciding:
			decision := renderDecision(c, e.cfg)
			c.Decision = &decision
			c.State = StateDone
		}
	}

	elapsed := e.now().Sub(start)
	outcome := &models.LoanOutcome{
		RequestID:        req.RequestID,
		Decision:         *c.Decision,
		ProcessingTimeMS: elapsed.Milliseconds(),
		ModelVersion:     e.cfg.Version,
		Timestamp:        e.now().UTC(),
		AgentTraceID:     traceID,
	}

	metrics.EvaluationsCompleted.WithLabelValues(string(c.Decision.Decision)).Inc()
	metrics.EvaluationDuration.WithLabelValues(string(c.Decision.Decision)).Observe(elapsed.Seconds())

	log.Info("loan request processed", map[string]interface{}{
		"decision":         string(c.Decision.Decision),
		"processingTimeMs": outcome.ProcessingTimeMS,
	})

	return outcome, nil
}

// Version exposes the engine's model version for health and outcome
// reporting.
func (e *Engine) Version() string {
	return e.cfg.Version
}
