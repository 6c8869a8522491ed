// internal/engine/validator.go
package engine

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"loan-underwriter/internal/models"
)

var (
	ssnPattern   = regexp.MustCompile(`^\d{3}-\d{2}-\d{4}$`)
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\+?1?\d{10,15}$`)
	zipPattern   = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
)

const dateLayout = "2006-01-02"

// Validate checks every constraint on the application and returns the full
// list of violations. An empty slice means the request is valid. Validation
// never short-circuits: callers get every problem in one pass.
func Validate(req models.LoanRequest, asOf time.Time) []string {
	var violations []string

	if strings.TrimSpace(req.RequestID) == "" {
		violations = append(violations, "request_id must not be empty")
	}

	violations = append(violations, validateApplicant(req.Applicant, asOf)...)
	violations = append(violations, validateEmployment(req.Employment)...)
	violations = append(violations, validateFinancial(req.Financial)...)
	violations = append(violations, validateCreditHistory(req.CreditHistory)...)
	violations = append(violations, validateLoanDetails(req.LoanDetails)...)

	return violations
}

func validateApplicant(a models.ApplicantInfo, asOf time.Time) []string {
	var violations []string

	if l := len(a.FirstName); l < 1 || l > 100 {
		violations = append(violations, "applicant.first_name must be between 1 and 100 characters")
	}
	if l := len(a.LastName); l < 1 || l > 100 {
		violations = append(violations, "applicant.last_name must be between 1 and 100 characters")
	}

	if dob, err := time.Parse(dateLayout, a.DateOfBirth); err != nil {
		violations = append(violations, "applicant.date_of_birth must be a valid date in YYYY-MM-DD format")
	} else {
		age := yearsBetween(dob, asOf)
		if age < 18 || age > 100 {
			violations = append(violations, fmt.Sprintf("applicant.date_of_birth implies age %d, must be between 18 and 100", age))
		}
	}

	if !ssnPattern.MatchString(a.SSN) {
		violations = append(violations, "applicant.ssn must match format XXX-XX-XXXX")
	}
	if !emailPattern.MatchString(a.Email) {
		violations = append(violations, "applicant.email must be a valid email address")
	}
	if !phonePattern.MatchString(a.Phone) {
		violations = append(violations, "applicant.phone must be a valid phone number")
	}
	if l := len(a.Address); l < 5 || l > 200 {
		violations = append(violations, "applicant.address must be between 5 and 200 characters")
	}
	if l := len(a.City); l < 2 || l > 100 {
		violations = append(violations, "applicant.city must be between 2 and 100 characters")
	}
	if len(a.State) != 2 {
		violations = append(violations, "applicant.state must be a 2-letter code")
	}
	if !zipPattern.MatchString(a.ZipCode) {
		violations = append(violations, "applicant.zip_code must match format XXXXX or XXXXX-XXXX")
	}

	return violations
}

func validateEmployment(e models.EmploymentInfo) []string {
	var violations []string

	if !e.Status.Valid() {
		violations = append(violations, fmt.Sprintf("employment.status %q is not a recognized employment status", string(e.Status)))
	}

	if e.Status.RequiresEmployerDetails() {
		if strings.TrimSpace(e.EmployerName) == "" {
			violations = append(violations, "employment.employer_name is required when status is employed or self_employed")
		}
		if strings.TrimSpace(e.JobTitle) == "" {
			violations = append(violations, "employment.job_title is required when status is employed or self_employed")
		}
	}
	if len(e.EmployerName) > 200 {
		violations = append(violations, "employment.employer_name must be at most 200 characters")
	}
	if len(e.JobTitle) > 100 {
		violations = append(violations, "employment.job_title must be at most 100 characters")
	}

	if e.YearsEmployed != nil && (*e.YearsEmployed < 0 || *e.YearsEmployed > 60) {
		violations = append(violations, "employment.years_employed must be between 0 and 60")
	}
	if e.MonthlyIncome <= 0 || e.MonthlyIncome > 1000000 {
		violations = append(violations, "employment.monthly_income must be greater than 0 and at most 1000000")
	}
	if e.AdditionalIncome < 0 || e.AdditionalIncome > 1000000 {
		violations = append(violations, "employment.additional_income must be between 0 and 1000000")
	}

	return violations
}

func validateFinancial(f models.FinancialInfo) []string {
	var violations []string

	if f.MonthlyDebtPayments < 0 || f.MonthlyDebtPayments > 1000000 {
		violations = append(violations, "financial.monthly_debt_payments must be between 0 and 1000000")
	}
	if f.CheckingBalance != nil && *f.CheckingBalance < 0 {
		violations = append(violations, "financial.checking_balance must not be negative")
	}
	if f.SavingsBalance != nil && *f.SavingsBalance < 0 {
		violations = append(violations, "financial.savings_balance must not be negative")
	}
	if f.InvestmentBalance != nil && *f.InvestmentBalance < 0 {
		violations = append(violations, "financial.investment_balance must not be negative")
	}

	if f.HasBankruptcy {
		if f.BankruptcyDate == nil {
			violations = append(violations, "financial.bankruptcy_date is required when has_bankruptcy is true")
		} else if _, err := time.Parse(dateLayout, *f.BankruptcyDate); err != nil {
			violations = append(violations, "financial.bankruptcy_date must be a valid date in YYYY-MM-DD format")
		}
	}
	if f.HasForeclosure {
		if f.ForeclosureDate == nil {
			violations = append(violations, "financial.foreclosure_date is required when has_foreclosure is true")
		} else if _, err := time.Parse(dateLayout, *f.ForeclosureDate); err != nil {
			violations = append(violations, "financial.foreclosure_date must be a valid date in YYYY-MM-DD format")
		}
	}

	return violations
}

func validateCreditHistory(c models.CreditHistory) []string {
	var violations []string

	if c.CreditScore < 300 || c.CreditScore > 850 {
		violations = append(violations, "credit_history.credit_score must be between 300 and 850")
	}
	if c.NumberOfCreditCards < 0 || c.NumberOfCreditCards > 50 {
		violations = append(violations, "credit_history.number_of_credit_cards must be between 0 and 50")
	}
	if c.TotalCreditLimit < 0 {
		violations = append(violations, "credit_history.total_credit_limit must not be negative")
	}
	if c.CreditUtilization < 0 || c.CreditUtilization > 100 {
		violations = append(violations, "credit_history.credit_utilization must be between 0 and 100")
	}
	if c.NumberOfLatePayments12M < 0 {
		violations = append(violations, "credit_history.number_of_late_payments_12m must not be negative")
	}
	if c.NumberOfLatePayments24M < 0 {
		violations = append(violations, "credit_history.number_of_late_payments_24m must not be negative")
	}
	if c.NumberOfInquiries6M < 0 {
		violations = append(violations, "credit_history.number_of_inquiries_6m must not be negative")
	}
	if c.OldestCreditLineYears != nil && (*c.OldestCreditLineYears < 0 || *c.OldestCreditLineYears > 80) {
		violations = append(violations, "credit_history.oldest_credit_line_years must be between 0 and 80")
	}

	return violations
}

func validateLoanDetails(l models.LoanDetails) []string {
	var violations []string

	if l.Amount <= 0 || l.Amount > 10000000 {
		violations = append(violations, "loan_details.amount must be greater than 0 and at most 10000000")
	}
	if !l.Purpose.Valid() {
		violations = append(violations, fmt.Sprintf("loan_details.purpose %q is not a recognized loan purpose", string(l.Purpose)))
	}
	if l.TermMonths < 1 || l.TermMonths > 360 {
		violations = append(violations, "loan_details.term_months must be between 1 and 360")
	}

	if l.PropertyValue != nil && *l.PropertyValue <= 0 {
		violations = append(violations, "loan_details.property_value must be greater than 0")
	}
	if l.Purpose.RequiresPropertyValue() && l.PropertyValue == nil {
		violations = append(violations, fmt.Sprintf("loan_details.property_value is required when purpose is %s", string(l.Purpose)))
	}

	if l.DownPayment < 0 {
		violations = append(violations, "loan_details.down_payment must not be negative")
	}
	if l.DownPayment >= l.Amount && l.Amount > 0 {
		violations = append(violations, "loan_details.down_payment must be strictly less than the loan amount")
	}

	return violations
}

// yearsBetween returns whole years from start to end, calendar-adjusted.
func yearsBetween(start, end time.Time) int {
	years := end.Year() - start.Year()
	if end.Month() < start.Month() ||
		(end.Month() == start.Month() && end.Day() < start.Day()) {
		years--
	}
	return years
}
