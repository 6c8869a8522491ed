// internal/oracle/oracle.go
package oracle

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"loan-underwriter/internal/common/errors"
	"loan-underwriter/internal/common/logger"
	"loan-underwriter/internal/common/metrics"
	"loan-underwriter/internal/common/redact"
	"loan-underwriter/internal/engine"
	"loan-underwriter/internal/models"
)

var tracer = otel.Tracer("loan-underwriter/internal/oracle")

// maxPolicyChars caps how much policy text goes into one prompt.
const maxPolicyChars = 3000

// Config holds the connection settings for the compliance model endpoint.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

// PolicySource provides the current policy document text for prompts.
// Implementations may hot-reload behind this interface.
type PolicySource interface {
	Content() string
}

// Client judges loan applications against lending policy by prompting a
// language model and parsing its structured verdict. It implements
// engine.ComplianceOracle and fails closed: any transport, timeout, or
// parse problem comes back as an error, never as a default verdict.
type Client struct {
	llm      *llmClient
	policies PolicySource
	logger   logger.Logger
}

func New(cfg Config, policies PolicySource, log logger.Logger) *Client {
	return &Client{
		llm:      newLLMClient(cfg),
		policies: policies,
		logger:   log.WithFields(map[string]interface{}{"component": "oracle"}),
	}
}

// CheckCompliance runs one compliance judgment. The single network call is
// bounded by the configured timeout layered onto the caller's context.
func (c *Client) CheckCompliance(ctx context.Context, req models.LoanRequest, riskScore int) (*engine.Verdict, error) {
	ctx, span := tracer.Start(ctx, "oracle.check_compliance")
	defer span.End()

	log := c.logger.WithFields(map[string]interface{}{"requestId": req.RequestID})
	log.Info("checking policy compliance", map[string]interface{}{
		"riskScore": riskScore,
		"model":     c.llm.model,
	})

	prompt := buildPrompt(c.policies.Content(), req, riskScore)

	start := time.Now()
	content, err := c.llm.complete(ctx, prompt)
	metrics.OracleCallDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		stdErr := errors.FromError(err)
		metrics.OracleCalls.WithLabelValues(statusLabel(stdErr.Code)).Inc()
		log.WithError(stdErr).Error("policy compliance call failed", map[string]interface{}{
			"errorCode": string(stdErr.Code),
		})
		return nil, stdErr
	}

	verdict, stdErr := parseVerdict(content)
	if stdErr != nil {
		metrics.OracleCalls.WithLabelValues("malformed").Inc()
		log.WithError(stdErr).Error("policy compliance verdict unparsable", map[string]interface{}{
			"responseLength": len(content),
		})
		return nil, stdErr
	}

	// The prompt carries no raw PII, so any applicant value echoed in the
	// verdict text came from the model side. Mask it before the verdict
	// reaches the stored outcome.
	leakable := []string{req.Applicant.SSN, req.Applicant.Email, req.Applicant.Phone}
	if leaks := redact.ContainsLeaks(verdict.Reason+" "+verdict.Notes, leakable); len(leaks) > 0 {
		verdict.Reason = redact.MaskText(verdict.Reason)
		verdict.Notes = redact.MaskText(verdict.Notes)
		log.Warn("masked applicant PII echoed in verdict text", map[string]interface{}{
			"occurrences": len(leaks),
		})
	}

	metrics.OracleCalls.WithLabelValues("success").Inc()
	log.Info("policy compliance verdict received", map[string]interface{}{
		"compliant": verdict.Compliant,
	})

	return verdict, nil
}

// HealthCheck probes the model endpoint with a trivial prompt and reports
// the round-trip time.
func (c *Client) HealthCheck(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	content, err := c.llm.complete(ctx, "Say 'OK' if you are operational.")
	elapsed := time.Since(start)

	if err != nil {
		return elapsed, errors.FromError(err)
	}
	if strings.TrimSpace(content) == "" {
		return elapsed, errors.NewOracleMalformedError("health probe returned an empty response")
	}
	return elapsed, nil
}

func statusLabel(code errors.ErrorCode) string {
	switch code {
	case errors.ErrCodeOracleTimeout:
		return "timeout"
	case errors.ErrCodeOracleUnavailable:
		return "unavailable"
	case errors.ErrCodeOracleMalformed:
		return "malformed"
	default:
		return "error"
	}
}

// buildPrompt assembles the compliance prompt: instructions, the policy
// documents (truncated), the application summary, and the required verdict
// shape.
func buildPrompt(policyContent string, req models.LoanRequest, riskScore int) string {
	if len(policyContent) > maxPolicyChars {
		policyContent = policyContent[:maxPolicyChars]
	}

	summary := []string{
		"Loan Application Summary:",
		fmt.Sprintf("- Amount: $%s", formatAmount(req.LoanDetails.Amount)),
		fmt.Sprintf("- Purpose: %s", req.LoanDetails.Purpose),
		fmt.Sprintf("- Term: %d months", req.LoanDetails.TermMonths),
		fmt.Sprintf("- Credit Score: %d", req.CreditHistory.CreditScore),
		fmt.Sprintf("- Risk Score: %d", riskScore),
		fmt.Sprintf("- Employment Status: %s", req.Employment.Status),
		fmt.Sprintf("- Monthly Income: $%s", formatAmount(req.Employment.MonthlyIncome)),
		fmt.Sprintf("- Has Bankruptcy: %t", req.Financial.HasBankruptcy),
		fmt.Sprintf("- Has Foreclosure: %t", req.Financial.HasForeclosure),
	}

	var parts []string
	parts = append(parts, "You are a loan policy compliance expert. Review the following loan application against the provided policy documents and determine if it complies with all policies.")
	parts = append(parts, "\nPOLICY DOCUMENTS:")
	parts = append(parts, policyContent)
	parts = append(parts, "\nLOAN APPLICATION:")
	parts = append(parts, strings.Join(summary, "\n"))
	parts = append(parts, "\nAnalyze this application and respond in the following JSON format:")
	parts = append(parts, `{
    "compliant": true/false,
    "notes": "Brief explanation of the decision",
    "reason": "Specific reason if not compliant (empty if compliant)",
    "missing_information": ["names of any required fields the applicant has not provided"]
}`)
	parts = append(parts, "\nBe strict in your evaluation and ensure all policy requirements are met.")

	return strings.Join(parts, "\n")
}

// formatAmount renders a dollar amount with thousands separators and two
// decimal places.
func formatAmount(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	dot := strings.Index(s, ".")
	intPart, frac := s[:dot], s[dot:]

	sign := ""
	if strings.HasPrefix(intPart, "-") {
		sign, intPart = "-", intPart[1:]
	}

	var b strings.Builder
	for i, d := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}

	return sign + b.String() + frac
}
