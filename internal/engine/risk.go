// internal/engine/risk.go
package engine

import (
	"time"

	"loan-underwriter/internal/models"
)

// riskScore sums seven independently-capped point bands and clamps the
// total to 100. Higher means riskier. The function is pure: everything it
// needs, including the reference time for years-since calculations, comes
// in as an argument.
func riskScore(req models.LoanRequest, dtiRatio float64, asOf time.Time) int {
	score := 0

	score += creditScorePoints(req.CreditHistory.CreditScore)
	score += dtiPoints(dtiRatio)
	score += tenurePoints(req.Employment.YearsEmployed)
	score += utilizationPoints(req.CreditHistory.CreditUtilization)
	score += latePaymentPoints(req.CreditHistory.NumberOfLatePayments12M, req.CreditHistory.NumberOfLatePayments24M)

	if req.Financial.HasBankruptcy {
		score += adverseEventPoints(req.Financial.BankruptcyDate, asOf)
	}
	if req.Financial.HasForeclosure {
		score += adverseEventPoints(req.Financial.ForeclosureDate, asOf)
	}

	score += loanToValuePoints(req.LoanDetails)

	if score > 100 {
		score = 100
	}
	return score
}

// creditScorePoints contributes 5-30 points.
func creditScorePoints(creditScore int) int {
	if creditScore < 600 {
		return 30
	} else if creditScore < 650 {
		return 25
	} else if creditScore < 700 {
		return 20
	} else if creditScore < 750 {
		return 15
	} else if creditScore < 800 {
		return 10
	}
	return 5
}

// dtiPoints contributes 5-25 points.
func dtiPoints(dtiRatio float64) int {
	if dtiRatio > 0.40 {
		return 25
	} else if dtiRatio > 0.35 {
		return 20
	} else if dtiRatio > 0.30 {
		return 15
	} else if dtiRatio > 0.25 {
		return 10
	}
	return 5
}

// tenurePoints contributes 0-15 points. Unknown tenure (absent or zero)
// contributes nothing.
func tenurePoints(yearsEmployed *float64) int {
	if yearsEmployed == nil || *yearsEmployed <= 0 {
		return 0
	}
	years := *yearsEmployed
	if years < 1 {
		return 15
	} else if years < 2 {
		return 12
	} else if years < 5 {
		return 8
	}
	return 3
}

// utilizationPoints contributes 0-10 points.
func utilizationPoints(utilization float64) int {
	if utilization > 80 {
		return 10
	} else if utilization > 60 {
		return 8
	} else if utilization > 40 {
		return 5
	} else if utilization > 20 {
		return 3
	}
	return 0
}

// latePaymentPoints contributes 0-10 points, weighting the 12-month window
// over the 24-month one.
func latePaymentPoints(late12m, late24m int) int {
	if late12m > 2 {
		return 10
	} else if late12m > 0 {
		return 7
	} else if late24m > 3 {
		return 5
	}
	return 0
}

// adverseEventPoints contributes 0-10 points based on how recent a
// bankruptcy or foreclosure is. Events older than seven years, or with no
// usable date, contribute nothing.
func adverseEventPoints(eventDate *string, asOf time.Time) int {
	years := yearsSince(eventDate, asOf)
	if years == nil || *years <= 0 {
		return 0
	}
	if *years < 3 {
		return 10
	} else if *years < 5 {
		return 7
	} else if *years < 7 {
		return 5
	}
	return 0
}

// loanToValuePoints contributes 0-10 points when a property value is
// present.
func loanToValuePoints(details models.LoanDetails) int {
	if details.PropertyValue == nil || *details.PropertyValue <= 0 {
		return 0
	}
	ltv := details.LoanToValue()
	if ltv > 0.95 {
		return 10
	} else if ltv > 0.90 {
		return 8
	} else if ltv > 0.85 {
		return 6
	} else if ltv > 0.80 {
		return 4
	}
	return 0
}

// yearsSince converts a YYYY-MM-DD date into fractional years before asOf.
// Returns nil when the date is absent or unparsable.
func yearsSince(dateStr *string, asOf time.Time) *float64 {
	if dateStr == nil {
		return nil
	}
	parsed, err := time.Parse(dateLayout, *dateStr)
	if err != nil {
		return nil
	}
	years := asOf.Sub(parsed).Hours() / 24 / 365.25
	return &years
}
