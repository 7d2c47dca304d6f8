package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Contract holds the billing parameters for a single debtor. It is built once
// from configuration at startup and never mutated afterwards; every
// calculation receives it by value.
type Contract struct {
	// StartYear and StartMonth anchor the month of the first installment.
	StartYear  int
	StartMonth time.Month

	// BusinessDaysAfterMonthStart is the N in "due on the N-th business day
	// of the installment's month", counting the first qualifying business
	// day as 1.
	BusinessDaysAfterMonthStart int

	InstallmentCount int
	InstallmentValue decimal.Decimal

	// MultaPercent is the flat late penalty, applied once when an
	// installment becomes overdue.
	MultaPercent decimal.Decimal

	// InterestMonthlyPercent is the nominal monthly compound interest rate
	// (juros de mora), pro-rated per day on a 30-day month basis.
	InterestMonthlyPercent decimal.Decimal

	// GraceDays is how many days after the due date pass before penalty and
	// interest start accruing.
	GraceDays int

	// Region selects the holiday calendar (e.g. "BR").
	Region string

	// Location is the civil time zone in which "today" is evaluated.
	Location *time.Location
}

// Validate checks the contract fields that the schedule and accrual engines
// depend on. A failing field is a configuration error, not a runtime one.
func (c Contract) Validate() error {
	if c.StartYear < 1990 || c.StartYear > 2200 {
		return &ErrConfiguration{Field: "START_YEAR", Message: "out of sane range"}
	}
	if c.StartMonth < time.January || c.StartMonth > time.December {
		return &ErrConfiguration{Field: "START_MONTH", Message: "must be 1-12"}
	}
	if c.BusinessDaysAfterMonthStart < 1 {
		return &ErrConfiguration{Field: "BUSINESS_DAYS_AFTER_MONTH_START", Message: "must be >= 1"}
	}
	if c.InstallmentCount < 1 {
		return &ErrConfiguration{Field: "INSTALLMENTS", Message: "must be positive"}
	}
	if !c.InstallmentValue.IsPositive() {
		return &ErrConfiguration{Field: "INSTALLMENT_VALUE", Message: "must be positive"}
	}
	if c.MultaPercent.IsNegative() {
		return &ErrConfiguration{Field: "MULTA_PERCENT", Message: "must not be negative"}
	}
	if c.InterestMonthlyPercent.IsNegative() {
		return &ErrConfiguration{Field: "INTEREST_MONTHLY_PERCENT", Message: "must not be negative"}
	}
	if c.GraceDays < 0 {
		return &ErrConfiguration{Field: "GRACE_DAYS", Message: "must not be negative"}
	}
	if c.Region == "" {
		return &ErrConfiguration{Field: "HOLIDAY_REGION", Message: "required"}
	}
	if c.Location == nil {
		return &ErrConfiguration{Field: "TIMEZONE", Message: "required"}
	}
	return nil
}

// MonthsSpanned returns the first and last (year, month) a schedule built from
// this contract targets. Spill-over past a month boundary can push a due date
// one month (and therefore up to one year) further.
func (c Contract) MonthsSpanned() (firstYear int, lastYear int) {
	last := int(c.StartMonth) - 1 + c.InstallmentCount - 1
	return c.StartYear, c.StartYear + last/12
}

// Installment is one slice of the debt, derived from the Contract.
type Installment struct {
	// Index is the 1-based position in the schedule; ordering is fixed.
	Index int

	// DueDate is midnight of the civil due date in the contract's zone.
	DueDate time.Time

	Value decimal.Decimal
}
