// internal/engine/renderer.go
package engine

import (
	"fmt"
	"math"
	"strings"

	"loan-underwriter/internal/models"
)

// oracleReasonFallback is used when a non-compliant verdict arrives without
// a reason of its own.
const oracleReasonFallback = "Policy compliance check failed"

// renderDecision converts the accumulated case into the terminal decision.
// A rejection reason wins over everything, then a need-info marker, and an
// untouched case is an approval with priced terms.
func renderDecision(c *Case, cfg Config) models.LoanDecision {
	if c.RejectionReason != "" {
		reason := c.RejectionReason
		return models.LoanDecision{
			Decision:          models.DecisionDisapproved,
			DisapprovalReason: &reason,
		}
	}

	if c.NeedAdditionalInfo {
		description := c.AdditionalInfoDescription
		return models.LoanDecision{
			Decision:                  models.DecisionAdditionalInfoNeeded,
			AdditionalInfoDescription: &description,
		}
	}

	risk := c.RiskScore
	rate := interestRate(risk, cfg)
	amount := c.Request.LoanDetails.Amount
	term := c.Request.LoanDetails.TermMonths
	payment := monthlyPayment(amount, rate, term)

	return models.LoanDecision{
		Decision:              models.DecisionApproved,
		RiskScore:             &risk,
		InterestRate:          &rate,
		MonthlyPayment:        &payment,
		RecommendedAmount:     &amount,
		RecommendedTermMonths: &term,
	}
}

// interestRate prices the loan as the base rate plus a premium proportional
// to the risk score.
func interestRate(riskScore int, cfg Config) float64 {
	premium := (float64(riskScore) / 100) * cfg.MaxRiskPremium
	return cfg.BaseInterestRate + premium
}

// monthlyPayment computes the standard amortized installment rounded to
// cents. A zero monthly rate degenerates to straight-line division instead
// of a division by zero.
func monthlyPayment(amount, annualRatePct float64, termMonths int) float64 {
	monthlyRate := annualRatePct / 100 / 12
	if monthlyRate == 0 {
		return roundCents(amount / float64(termMonths))
	}

	factor := math.Pow(1+monthlyRate, float64(termMonths))
	payment := amount * monthlyRate * factor / (factor - 1)
	return roundCents(payment)
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// nonComplianceReason assembles the disapproval reason from a non-compliant
// oracle verdict: base reason, then distinct notes, then the list of missing
// fields, joined by periods.
func nonComplianceReason(v Verdict) string {
	base := v.Reason
	if base == "" {
		base = oracleReasonFallback
	}

	parts := []string{base}
	if v.Notes != "" && v.Notes != base {
		parts = append(parts, fmt.Sprintf("Details: %s", v.Notes))
	}
	if len(v.MissingInformation) > 0 {
		parts = append(parts, fmt.Sprintf("Missing information: %s", strings.Join(v.MissingInformation, ", ")))
	}

	return strings.Join(parts, ". ")
}
