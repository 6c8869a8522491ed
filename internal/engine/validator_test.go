// internal/engine/validator_test.go
package engine

import (
	"testing"
	"time"

	"loan-underwriter/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestValidate_ValidRequest(t *testing.T) {
	violations := Validate(createStrongRequest(), testAsOf)
	assert.Empty(t, violations)

	violations = Validate(createMarginalRequest(), testAsOf)
	assert.Empty(t, violations)
}

func TestValidate_CollectsAllViolations(t *testing.T) {
	req := createStrongRequest()
	req.RequestID = ""
	req.Applicant.SSN = "123456789"
	req.CreditHistory.CreditScore = 250
	req.LoanDetails.Amount = 0

	violations := Validate(req, testAsOf)

	// Every problem is reported in one pass, not just the first.
	assert.Len(t, violations, 4)
	assert.Contains(t, violations, "request_id must not be empty")
	assert.Contains(t, violations, "applicant.ssn must match format XXX-XX-XXXX")
	assert.Contains(t, violations, "credit_history.credit_score must be between 300 and 850")
	assert.Contains(t, violations, "loan_details.amount must be greater than 0 and at most 10000000")
}

func TestValidate_Applicant(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*models.LoanRequest)
		violation string
	}{
		{
			name:      "empty first name",
			mutate:    func(r *models.LoanRequest) { r.Applicant.FirstName = "" },
			violation: "applicant.first_name must be between 1 and 100 characters",
		},
		{
			name:      "malformed date of birth",
			mutate:    func(r *models.LoanRequest) { r.Applicant.DateOfBirth = "15/06/1988" },
			violation: "applicant.date_of_birth must be a valid date in YYYY-MM-DD format",
		},
		{
			name:      "applicant under 18",
			mutate:    func(r *models.LoanRequest) { r.Applicant.DateOfBirth = "2010-01-01" },
			violation: "applicant.date_of_birth implies age 16, must be between 18 and 100",
		},
		{
			name:      "applicant over 100",
			mutate:    func(r *models.LoanRequest) { r.Applicant.DateOfBirth = "1920-01-01" },
			violation: "applicant.date_of_birth implies age 106, must be between 18 and 100",
		},
		{
			name:      "bad email",
			mutate:    func(r *models.LoanRequest) { r.Applicant.Email = "not-an-email" },
			violation: "applicant.email must be a valid email address",
		},
		{
			name:      "bad phone",
			mutate:    func(r *models.LoanRequest) { r.Applicant.Phone = "555-CALL" },
			violation: "applicant.phone must be a valid phone number",
		},
		{
			name:      "state not two letters",
			mutate:    func(r *models.LoanRequest) { r.Applicant.State = "Texas" },
			violation: "applicant.state must be a 2-letter code",
		},
		{
			name:      "bad zip code",
			mutate:    func(r *models.LoanRequest) { r.Applicant.ZipCode = "787" },
			violation: "applicant.zip_code must match format XXXXX or XXXXX-XXXX",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := createStrongRequest()
			tt.mutate(&req)
			violations := Validate(req, testAsOf)
			assert.Contains(t, violations, tt.violation)
		})
	}
}

func TestValidate_Employment(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*models.LoanRequest)
		violation string
	}{
		{
			name:      "unknown status",
			mutate:    func(r *models.LoanRequest) { r.Employment.Status = "freelancing" },
			violation: `employment.status "freelancing" is not a recognized employment status`,
		},
		{
			name:      "employed without employer name",
			mutate:    func(r *models.LoanRequest) { r.Employment.EmployerName = "" },
			violation: "employment.employer_name is required when status is employed or self_employed",
		},
		{
			name:      "employed without job title",
			mutate:    func(r *models.LoanRequest) { r.Employment.JobTitle = "" },
			violation: "employment.job_title is required when status is employed or self_employed",
		},
		{
			name:      "years employed out of range",
			mutate:    func(r *models.LoanRequest) { r.Employment.YearsEmployed = floatPtr(75) },
			violation: "employment.years_employed must be between 0 and 60",
		},
		{
			name:      "zero monthly income",
			mutate:    func(r *models.LoanRequest) { r.Employment.MonthlyIncome = 0 },
			violation: "employment.monthly_income must be greater than 0 and at most 1000000",
		},
		{
			name:      "negative additional income",
			mutate:    func(r *models.LoanRequest) { r.Employment.AdditionalIncome = -100 },
			violation: "employment.additional_income must be between 0 and 1000000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := createStrongRequest()
			tt.mutate(&req)
			violations := Validate(req, testAsOf)
			assert.Contains(t, violations, tt.violation)
		})
	}
}

func TestValidate_Employment_RetiredNeedsNoEmployer(t *testing.T) {
	req := createStrongRequest()
	req.Employment.Status = models.EmploymentRetired
	req.Employment.EmployerName = ""
	req.Employment.JobTitle = ""

	violations := Validate(req, testAsOf)
	assert.Empty(t, violations)
}

func TestValidate_Financial(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*models.LoanRequest)
		violation string
	}{
		{
			name:      "negative debt payments",
			mutate:    func(r *models.LoanRequest) { r.Financial.MonthlyDebtPayments = -50 },
			violation: "financial.monthly_debt_payments must be between 0 and 1000000",
		},
		{
			name:      "negative savings balance",
			mutate:    func(r *models.LoanRequest) { r.Financial.SavingsBalance = floatPtr(-1) },
			violation: "financial.savings_balance must not be negative",
		},
		{
			name: "bankruptcy flagged without date",
			mutate: func(r *models.LoanRequest) {
				r.Financial.HasBankruptcy = true
				r.Financial.BankruptcyDate = nil
			},
			violation: "financial.bankruptcy_date is required when has_bankruptcy is true",
		},
		{
			name: "bankruptcy date unparsable",
			mutate: func(r *models.LoanRequest) {
				r.Financial.HasBankruptcy = true
				r.Financial.BankruptcyDate = strPtr("last year")
			},
			violation: "financial.bankruptcy_date must be a valid date in YYYY-MM-DD format",
		},
		{
			name: "foreclosure flagged without date",
			mutate: func(r *models.LoanRequest) {
				r.Financial.HasForeclosure = true
				r.Financial.ForeclosureDate = nil
			},
			violation: "financial.foreclosure_date is required when has_foreclosure is true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := createStrongRequest()
			tt.mutate(&req)
			violations := Validate(req, testAsOf)
			assert.Contains(t, violations, tt.violation)
		})
	}
}

func TestValidate_CreditHistory(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*models.LoanRequest)
		violation string
	}{
		{
			name:      "credit score below 300",
			mutate:    func(r *models.LoanRequest) { r.CreditHistory.CreditScore = 250 },
			violation: "credit_history.credit_score must be between 300 and 850",
		},
		{
			name:      "credit score above 850",
			mutate:    func(r *models.LoanRequest) { r.CreditHistory.CreditScore = 900 },
			violation: "credit_history.credit_score must be between 300 and 850",
		},
		{
			name:      "utilization above 100",
			mutate:    func(r *models.LoanRequest) { r.CreditHistory.CreditUtilization = 110 },
			violation: "credit_history.credit_utilization must be between 0 and 100",
		},
		{
			name:      "negative late payments",
			mutate:    func(r *models.LoanRequest) { r.CreditHistory.NumberOfLatePayments12M = -1 },
			violation: "credit_history.number_of_late_payments_12m must not be negative",
		},
		{
			name:      "oldest credit line out of range",
			mutate:    func(r *models.LoanRequest) { r.CreditHistory.OldestCreditLineYears = floatPtr(90) },
			violation: "credit_history.oldest_credit_line_years must be between 0 and 80",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := createStrongRequest()
			tt.mutate(&req)
			violations := Validate(req, testAsOf)
			assert.Contains(t, violations, tt.violation)
		})
	}
}

func TestValidate_LoanDetails(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*models.LoanRequest)
		violation string
	}{
		{
			name:      "amount above cap",
			mutate:    func(r *models.LoanRequest) { r.LoanDetails.Amount = 20000000 },
			violation: "loan_details.amount must be greater than 0 and at most 10000000",
		},
		{
			name:      "unknown purpose",
			mutate:    func(r *models.LoanRequest) { r.LoanDetails.Purpose = "vacation" },
			violation: `loan_details.purpose "vacation" is not a recognized loan purpose`,
		},
		{
			name:      "term too long",
			mutate:    func(r *models.LoanRequest) { r.LoanDetails.TermMonths = 480 },
			violation: "loan_details.term_months must be between 1 and 360",
		},
		{
			name:      "home purchase without property value",
			mutate:    func(r *models.LoanRequest) { r.LoanDetails.PropertyValue = nil },
			violation: "loan_details.property_value is required when purpose is home_purchase",
		},
		{
			name:      "property value not positive",
			mutate:    func(r *models.LoanRequest) { r.LoanDetails.PropertyValue = floatPtr(0) },
			violation: "loan_details.property_value must be greater than 0",
		},
		{
			name:      "down payment equals amount",
			mutate:    func(r *models.LoanRequest) { r.LoanDetails.DownPayment = 250000 },
			violation: "loan_details.down_payment must be strictly less than the loan amount",
		},
		{
			name:      "negative down payment",
			mutate:    func(r *models.LoanRequest) { r.LoanDetails.DownPayment = -500 },
			violation: "loan_details.down_payment must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := createStrongRequest()
			tt.mutate(&req)
			violations := Validate(req, testAsOf)
			assert.Contains(t, violations, tt.violation)
		})
	}
}

func TestValidate_PersonalLoanNeedsNoProperty(t *testing.T) {
	req := createStrongRequest()
	req.LoanDetails.Purpose = models.PurposePersonal
	req.LoanDetails.PropertyValue = nil

	violations := Validate(req, testAsOf)
	assert.Empty(t, violations)
}

func TestYearsBetween(t *testing.T) {
	tests := []struct {
		name     string
		start    time.Time
		end      time.Time
		expected int
	}{
		{
			name:     "birthday already passed this year",
			start:    time.Date(1988, 1, 10, 0, 0, 0, 0, time.UTC),
			end:      time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
			expected: 38,
		},
		{
			name:     "birthday later this year",
			start:    time.Date(1988, 6, 15, 0, 0, 0, 0, time.UTC),
			end:      time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
			expected: 37,
		},
		{
			name:     "birthday today",
			start:    time.Date(2000, 3, 15, 0, 0, 0, 0, time.UTC),
			end:      time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
			expected: 26,
		},
		{
			name:     "day before birthday",
			start:    time.Date(2000, 3, 16, 0, 0, 0, 0, time.UTC),
			end:      time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
			expected: 25,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, yearsBetween(tt.start, tt.end))
		})
	}
}
