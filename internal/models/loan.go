// internal/models/loan.go
package models

import "time"

// EmploymentStatus enumerates the accepted employment situations.
type EmploymentStatus string

const (
	EmploymentEmployed     EmploymentStatus = "employed"
	EmploymentSelfEmployed EmploymentStatus = "self_employed"
	EmploymentUnemployed   EmploymentStatus = "unemployed"
	EmploymentRetired      EmploymentStatus = "retired"
	EmploymentStudent      EmploymentStatus = "student"
)

// Valid reports whether the status is one of the accepted values.
func (s EmploymentStatus) Valid() bool {
	switch s {
	case EmploymentEmployed, EmploymentSelfEmployed, EmploymentUnemployed,
		EmploymentRetired, EmploymentStudent:
		return true
	}
	return false
}

// RequiresEmployerDetails reports whether employer name and job title are
// mandatory for this status.
func (s EmploymentStatus) RequiresEmployerDetails() bool {
	return s == EmploymentEmployed || s == EmploymentSelfEmployed
}

// LoanPurpose enumerates the accepted loan purposes.
type LoanPurpose string

const (
	PurposeHomePurchase      LoanPurpose = "home_purchase"
	PurposeHomeRefinance     LoanPurpose = "home_refinance"
	PurposeAuto              LoanPurpose = "auto"
	PurposePersonal          LoanPurpose = "personal"
	PurposeBusiness          LoanPurpose = "business"
	PurposeEducation         LoanPurpose = "education"
	PurposeDebtConsolidation LoanPurpose = "debt_consolidation"
)

// Valid reports whether the purpose is one of the accepted values.
func (p LoanPurpose) Valid() bool {
	switch p {
	case PurposeHomePurchase, PurposeHomeRefinance, PurposeAuto, PurposePersonal,
		PurposeBusiness, PurposeEducation, PurposeDebtConsolidation:
		return true
	}
	return false
}

// RequiresPropertyValue reports whether a property value must accompany the
// loan (home purchase and refinance).
func (p LoanPurpose) RequiresPropertyValue() bool {
	return p == PurposeHomePurchase || p == PurposeHomeRefinance
}

// ApplicantInfo identifies the person applying. Dates use YYYY-MM-DD.
type ApplicantInfo struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DateOfBirth string `json:"date_of_birth"`
	SSN         string `json:"ssn"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	City        string `json:"city"`
	State       string `json:"state"`
	ZipCode     string `json:"zip_code"`
}

type EmploymentInfo struct {
	Status           EmploymentStatus `json:"status"`
	EmployerName     string           `json:"employer_name,omitempty"`
	JobTitle         string           `json:"job_title,omitempty"`
	YearsEmployed    *float64         `json:"years_employed,omitempty"`
	MonthlyIncome    float64          `json:"monthly_income"`
	AdditionalIncome float64          `json:"additional_income"`
}

// TotalMonthlyIncome is primary income plus any additional income.
func (e EmploymentInfo) TotalMonthlyIncome() float64 {
	return e.MonthlyIncome + e.AdditionalIncome
}

type FinancialInfo struct {
	MonthlyDebtPayments float64  `json:"monthly_debt_payments"`
	CheckingBalance     *float64 `json:"checking_balance,omitempty"`
	SavingsBalance      *float64 `json:"savings_balance,omitempty"`
	InvestmentBalance   *float64 `json:"investment_balance,omitempty"`
	HasBankruptcy       bool     `json:"has_bankruptcy"`
	BankruptcyDate      *string  `json:"bankruptcy_date,omitempty"`
	HasForeclosure      bool     `json:"has_foreclosure"`
	ForeclosureDate     *string  `json:"foreclosure_date,omitempty"`
}

type CreditHistory struct {
	CreditScore             int      `json:"credit_score"`
	NumberOfCreditCards     int      `json:"number_of_credit_cards"`
	TotalCreditLimit        float64  `json:"total_credit_limit"`
	CreditUtilization       float64  `json:"credit_utilization"`
	NumberOfLatePayments12M int      `json:"number_of_late_payments_12m"`
	NumberOfLatePayments24M int      `json:"number_of_late_payments_24m"`
	NumberOfInquiries6M     int      `json:"number_of_inquiries_6m"`
	OldestCreditLineYears   *float64 `json:"oldest_credit_line_years,omitempty"`
}

type LoanDetails struct {
	Amount        float64     `json:"amount"`
	Purpose       LoanPurpose `json:"purpose"`
	TermMonths    int         `json:"term_months"`
	PropertyValue *float64    `json:"property_value,omitempty"`
	DownPayment   float64     `json:"down_payment"`
}

// LoanToValue is the requested amount over the collateral property value.
// Zero when no property value is present.
func (l LoanDetails) LoanToValue() float64 {
	if l.PropertyValue == nil || *l.PropertyValue <= 0 {
		return 0
	}
	return l.Amount / *l.PropertyValue
}

// LoanRequest is the full application payload submitted for evaluation.
type LoanRequest struct {
	RequestID     string         `json:"request_id"`
	Applicant     ApplicantInfo  `json:"applicant"`
	Employment    EmploymentInfo `json:"employment"`
	Financial     FinancialInfo  `json:"financial"`
	CreditHistory CreditHistory  `json:"credit_history"`
	LoanDetails   LoanDetails    `json:"loan_details"`
	Timestamp     time.Time      `json:"timestamp"`
}

// DebtToIncomeRatio is monthly debt over primary monthly income. When income
// is zero the ratio saturates at 1.0 so downstream ceilings always trip.
func (r LoanRequest) DebtToIncomeRatio() float64 {
	if r.Employment.MonthlyIncome <= 0 {
		return 1.0
	}
	return r.Financial.MonthlyDebtPayments / r.Employment.MonthlyIncome
}
