package billing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mfcastro/cobranca-assistant-go/internal/domain"
)

// powPrecision is the working precision for the fractional exponentiation in
// the pro-rata daily rate. Amounts are only rounded to centavos at the very
// end, so intermediate digits are kept generously.
const powPrecision = 16

var (
	one      = decimal.NewFromInt(1)
	hundred  = decimal.NewFromInt(100)
	thirtyD  = decimal.NewFromInt(30)
	zeroDec  = decimal.Decimal{}
	centavos = int32(2)
)

// ComputeStatement evaluates a schedule as of a reference instant, producing
// one line per installment with its status and, for overdue lines, the
// accrued penalty and interest. paid maps installment index to settled.
//
// Status per line, with D = calendar days between due date and now:
//   - paid[index] → PAID, zero accruals regardless of lateness
//   - D < 0 → PENDING
//   - D == 0 → DUE_TODAY
//   - 0 < D <= grace → PENDING (within grace, nothing accrues)
//   - D > grace → OVERDUE with daysOverdue = D − grace, flat penalty plus
//     compound pro-rata interest over daysOverdue
//
// Monetary results are rounded half-up to centavos only at the end; totals
// sum the rounded line values so the statement always foots.
func ComputeStatement(c domain.Contract, schedule []domain.Installment, now time.Time, paid map[int]bool) (*domain.Statement, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if now.IsZero() {
		return nil, &domain.ErrInvalidInstant{Value: now.String(), Reason: "zero instant"}
	}
	now = now.In(c.Location)
	if now.Year() < c.StartYear {
		return nil, &domain.ErrInvalidInstant{
			Value:  now.Format("2006-01-02"),
			Reason: fmt.Sprintf("before contract start year %d", c.StartYear),
		}
	}

	st := &domain.Statement{
		ReferenceDate: now,
		Lines:         make([]domain.StatementLine, 0, len(schedule)),
	}

	for _, inst := range schedule {
		line := domain.StatementLine{
			Installment: inst,
			TotalOwed:   inst.Value.Round(centavos),
		}

		switch {
		case paid[inst.Index]:
			line.Status = domain.StatusPaid
			line.TotalOwed = zeroDec.Round(centavos)
		default:
			days := daysBetween(inst.DueDate, now)
			switch {
			case days < 0:
				line.Status = domain.StatusPending
			case days == 0:
				line.Status = domain.StatusDueToday
			case days <= c.GraceDays:
				line.Status = domain.StatusPending
			default:
				line.Status = domain.StatusOverdue
				line.DaysOverdue = days - c.GraceDays
				line.PenaltyAmount = penalty(inst.Value, c.MultaPercent)
				line.InterestAmount = interest(inst.Value, c.InterestMonthlyPercent, line.DaysOverdue)
				line.TotalOwed = inst.Value.Add(line.PenaltyAmount).Add(line.InterestAmount).Round(centavos)
			}
		}

		if line.Status != domain.StatusPaid {
			st.TotalOwedNow = st.TotalOwedNow.Add(line.TotalOwed)
			if st.NextDueIndex == 0 {
				st.NextDueIndex = inst.Index
			}
		}
		st.TotalDebtOriginal = st.TotalDebtOriginal.Add(inst.Value)
		st.Lines = append(st.Lines, line)
	}

	st.TotalDebtOriginal = st.TotalDebtOriginal.Round(centavos)
	st.TotalOwedNow = st.TotalOwedNow.Round(centavos)
	return st, nil
}

// penalty is the flat multa: value × percent/100, rounded to centavos.
func penalty(value, percent decimal.Decimal) decimal.Decimal {
	return value.Mul(percent.Div(hundred)).Round(centavos)
}

// interest compounds a monthly rate pro-rata per day over the principal only:
// daily = (1+monthly)^(1/30) − 1, interest = value × ((1+daily)^days − 1).
// Exponentiation with a fractional exponent keeps powPrecision digits; the
// result is rounded to centavos.
func interest(value, monthlyPercent decimal.Decimal, days int) decimal.Decimal {
	monthly := monthlyPercent.Div(hundred)
	base := one.Add(monthly)
	exponent := decimal.NewFromInt(int64(days)).Div(thirtyD)
	factor, err := base.PowWithPrecision(exponent, powPrecision)
	if err != nil {
		// base is > 0 by contract validation; PowWithPrecision only fails on
		// zero/negative bases with fractional exponents.
		return zeroDec.Round(centavos)
	}
	return value.Mul(factor.Sub(one)).Round(centavos)
}

// daysBetween returns whole calendar days from a to b, ignoring time of day
// and DST shifts. Negative when b is before a's date.
func daysBetween(a, b time.Time) int {
	au := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bu := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bu.Sub(au) / (24 * time.Hour))
}
