// Package billing implements the schedule and accrual engine: due-date
// derivation over a business-day calendar and the penalty/interest math for
// overdue installments. Everything here is pure — no I/O, no clock, no shared
// mutable state — so all functions are safe for concurrent callers.
package billing

import (
	"time"

	"github.com/mfcastro/cobranca-assistant-go/internal/domain"
)

// Calendar is an immutable business-day lookup for one region over a fixed
// span of years. It is loaded once, upfront, and shared freely for reads.
//
// A lookup outside the loaded span is ErrCalendarDataMissing, never "no
// holidays": assuming an empty table would silently shift due dates.
type Calendar struct {
	region    string
	firstYear int
	lastYear  int

	// holidays[year] maps month*100+day to true.
	holidays map[int]map[int]bool
}

// NewCalendar builds the holiday table for region covering firstYear through
// lastYear inclusive. Only "BR" (Brazilian national holidays) is shipped;
// other regions are a configuration error so a typo can't produce an empty
// calendar.
func NewCalendar(region string, firstYear, lastYear int) (*Calendar, error) {
	if region != "BR" {
		return nil, &domain.ErrConfiguration{Field: "HOLIDAY_REGION", Message: "unsupported region: " + region}
	}
	if lastYear < firstYear {
		return nil, &domain.ErrConfiguration{Field: "HOLIDAY_REGION", Message: "invalid year range"}
	}

	c := &Calendar{
		region:    region,
		firstYear: firstYear,
		lastYear:  lastYear,
		holidays:  make(map[int]map[int]bool, lastYear-firstYear+1),
	}
	for y := firstYear; y <= lastYear; y++ {
		c.holidays[y] = brazilHolidays(y)
	}
	return c, nil
}

// Region returns the region this calendar was built for.
func (c *Calendar) Region() string { return c.region }

// Covers reports whether the calendar has data for the given year.
func (c *Calendar) Covers(year int) bool {
	return year >= c.firstYear && year <= c.lastYear
}

// IsHoliday reports whether d is a holiday. The year must be covered.
func (c *Calendar) IsHoliday(d time.Time) (bool, error) {
	set, ok := c.holidays[d.Year()]
	if !ok {
		return false, &domain.ErrCalendarDataMissing{Region: c.region, Year: d.Year()}
	}
	return set[int(d.Month())*100+d.Day()], nil
}

// IsBusinessDay reports whether d is neither a weekend day nor a holiday.
func (c *Calendar) IsBusinessDay(d time.Time) (bool, error) {
	if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false, nil
	}
	holiday, err := c.IsHoliday(d)
	if err != nil {
		return false, err
	}
	return !holiday, nil
}

// brazilHolidays returns the Brazilian national holidays of one year as
// month*100+day keys.
func brazilHolidays(year int) map[int]bool {
	set := map[int]bool{
		1*100 + 1:   true, // Confraternização Universal
		4*100 + 21:  true, // Tiradentes
		5*100 + 1:   true, // Dia do Trabalho
		9*100 + 7:   true, // Independência
		10*100 + 12: true, // Nossa Senhora Aparecida
		11*100 + 2:  true, // Finados
		11*100 + 15: true, // Proclamação da República
		12*100 + 25: true, // Natal
	}
	// Dia da Consciência Negra is a national holiday since Lei 14.759/2023.
	if year >= 2024 {
		set[11*100+20] = true
	}

	easter := easterSunday(year)
	goodFriday := easter.AddDate(0, 0, -2)
	set[int(goodFriday.Month())*100+goodFriday.Day()] = true

	return set
}

// easterSunday computes Easter for a Gregorian year (anonymous/Meeus
// algorithm). Good Friday, the only movable national holiday, derives from it.
func easterSunday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}
