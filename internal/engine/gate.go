// internal/engine/gate.go
package engine

import (
	"fmt"

	"loan-underwriter/internal/models"
)

// needInfoEmploymentHistory is the fixed description returned when tenure is
// below the minimum. The wording is part of the decision contract.
const needInfoEmploymentHistory = "Employment history is less than 6 months. " +
	"Please provide additional employment verification documents."

// applyGate runs the hard eligibility cutoffs in order; the first match
// wins. Tenure of zero or absent counts as unknown and passes through.
func applyGate(req models.LoanRequest, cfg Config) GateResult {
	score := req.CreditHistory.CreditScore
	if score < cfg.MinCreditScore {
		return GateResult{
			Outcome: GateReject,
			Reason: fmt.Sprintf("Credit score %d is below minimum requirement of %d",
				score, cfg.MinCreditScore),
		}
	}

	dti := req.DebtToIncomeRatio()
	if dti > cfg.MaxDTIRatio {
		return GateResult{
			Outcome:  GateReject,
			DTIRatio: dti,
			Reason: fmt.Sprintf("Debt-to-income ratio %.2f%% exceeds maximum allowed %.2f%%",
				dti*100, cfg.MaxDTIRatio*100),
		}
	}

	if ye := req.Employment.YearsEmployed; ye != nil && *ye > 0 {
		monthsEmployed := *ye * 12
		if monthsEmployed < float64(cfg.MinEmploymentMonths) {
			return GateResult{
				Outcome:     GateNeedInfo,
				Description: needInfoEmploymentHistory,
			}
		}
	}

	return GateResult{Outcome: GateContinue, DTIRatio: dti}
}
