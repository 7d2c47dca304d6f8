package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// InstallmentStatus is the point-in-time state of one installment.
type InstallmentStatus string

const (
	StatusPending  InstallmentStatus = "PENDING"
	StatusDueToday InstallmentStatus = "DUE_TODAY"
	StatusOverdue  InstallmentStatus = "OVERDUE"
	StatusPaid     InstallmentStatus = "PAID"
)

// StatementLine carries the computed charges for one installment at the
// statement's reference date.
type StatementLine struct {
	Installment Installment
	Status      InstallmentStatus

	// DaysOverdue counts days past the grace period; zero unless OVERDUE.
	DaysOverdue int

	PenaltyAmount  decimal.Decimal
	InterestAmount decimal.Decimal

	// TotalOwed = value + penalty + interest (zero extra when not overdue).
	TotalOwed decimal.Decimal
}

// Statement is the ephemeral, per-evaluation view of the whole debt.
// It is recomputed on every request and never cached: it depends on the
// caller-supplied reference date and the external paid set.
type Statement struct {
	// ReferenceDate is the civil date ("today") the statement was computed
	// for, at midnight in the contract's zone.
	ReferenceDate time.Time

	Lines []StatementLine

	// TotalDebtOriginal is the sum of all installment values, paid or not.
	TotalDebtOriginal decimal.Decimal

	// TotalOwedNow is the sum of TotalOwed over the unpaid installments.
	TotalOwedNow decimal.Decimal

	// NextDueIndex is the lowest index not yet PAID; zero when all are paid.
	NextDueIndex int
}

// NextDue returns the lowest-index unpaid line, or nil when everything is
// settled.
func (s *Statement) NextDue() *StatementLine {
	if s.NextDueIndex == 0 {
		return nil
	}
	for i := range s.Lines {
		if s.Lines[i].Installment.Index == s.NextDueIndex {
			return &s.Lines[i]
		}
	}
	return nil
}

// DueToday returns the line falling due on the reference date, or nil.
// This is the signal the notifier uses to decide whether to message the
// debtor on a given run.
func (s *Statement) DueToday() *StatementLine {
	for i := range s.Lines {
		if s.Lines[i].Status == StatusDueToday {
			return &s.Lines[i]
		}
	}
	return nil
}

// Overdue returns all lines currently past their grace period.
func (s *Statement) Overdue() []StatementLine {
	var out []StatementLine
	for _, l := range s.Lines {
		if l.Status == StatusOverdue {
			out = append(out, l)
		}
	}
	return out
}

// ============================================================
// API response types (JSON shapes served by the HTTP layer)
// ============================================================

// InstallmentResponse is the wire form of one installment.
type InstallmentResponse struct {
	Index   int    `json:"index"`
	DueDate string `json:"dueDate"` // YYYY-MM-DD
	Value   string `json:"value"`
}

// StatementLineResponse is the wire form of one statement line.
type StatementLineResponse struct {
	Index          int    `json:"index"`
	DueDate        string `json:"dueDate"`
	Value          string `json:"value"`
	Status         string `json:"status"`
	DaysOverdue    int    `json:"daysOverdue"`
	PenaltyAmount  string `json:"penaltyAmount"`
	InterestAmount string `json:"interestAmount"`
	TotalOwed      string `json:"totalOwed"`
}

// StatementResponse is returned by GET /v1/statement.
type StatementResponse struct {
	ReferenceDate     string                  `json:"referenceDate"`
	Installments      []StatementLineResponse `json:"installments"`
	TotalDebtOriginal string                  `json:"totalDebtOriginal"`
	TotalOwedNow      string                  `json:"totalOwedNow"`
	NextDueIndex      int                     `json:"nextDueIndex"`
}

// DueTodayResponse is returned by GET /v1/installments/due-today.
type DueTodayResponse struct {
	ReferenceDate string                 `json:"referenceDate"`
	DueToday      bool                   `json:"dueToday"`
	Installment   *StatementLineResponse `json:"installment,omitempty"`
}

// NotifyResult reports what a notifier sweep did.
type NotifyResult struct {
	ReferenceDate string `json:"referenceDate"`
	DueToday      bool   `json:"dueToday"`
	Installment   int    `json:"installment,omitempty"`
	WhatsAppSent  bool   `json:"whatsappSent"`
	EmailSent     bool   `json:"emailSent"`
	OverdueCount  int    `json:"overdueCount"`
}
