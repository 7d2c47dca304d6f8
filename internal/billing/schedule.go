package billing

import (
	"time"

	"github.com/mfcastro/cobranca-assistant-go/internal/domain"
)

// BuildSchedule derives the due date of every installment of a contract. The
// first installment falls in the contract's start month; each subsequent one
// falls in the next calendar month, rolling the year over as needed. Within a
// month the due date is the N-th business day counted inclusively from the
// 1st, where N is the contract's BusinessDaysAfterMonthStart; if the month
// runs out of business days the count continues into the following month.
//
// The result is ordered, has strictly increasing due dates, and every date is
// midnight in the contract's time zone.
func BuildSchedule(c domain.Contract, cal *Calendar) ([]domain.Installment, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	schedule := make([]domain.Installment, 0, c.InstallmentCount)
	year, month := c.StartYear, c.StartMonth
	for i := 1; i <= c.InstallmentCount; i++ {
		due, err := nthBusinessDay(cal, year, month, c.BusinessDaysAfterMonthStart, c.Location)
		if err != nil {
			return nil, err
		}
		schedule = append(schedule, domain.Installment{
			Index:   i,
			DueDate: due,
			Value:   c.InstallmentValue,
		})

		month++
		if month > time.December {
			month = time.January
			year++
		}
	}
	return schedule, nil
}

// nthBusinessDay walks forward from the 1st of the month counting business
// days inclusively and returns the n-th one. The walk may cross into the next
// month when the starting month has fewer than n business days.
func nthBusinessDay(cal *Calendar, year int, month time.Month, n int, loc *time.Location) (time.Time, error) {
	d := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	count := 0
	for {
		ok, err := cal.IsBusinessDay(d)
		if err != nil {
			return time.Time{}, err
		}
		if ok {
			count++
			if count == n {
				return d, nil
			}
		}
		d = d.AddDate(0, 0, 1)
	}
}
