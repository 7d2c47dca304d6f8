package billing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfcastro/cobranca-assistant-go/internal/domain"
)

func buildTestSchedule(t *testing.T, c domain.Contract) []domain.Installment {
	t.Helper()
	schedule, err := BuildSchedule(c, testCalendar(t, 2026, 2027))
	require.NoError(t, err)
	return schedule
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got),
		"want %s got %s %v", want, got.String(), msgAndArgs)
}

func TestComputeStatementAllPending(t *testing.T) {
	c := testContract(t)
	schedule := buildTestSchedule(t, c)

	now := time.Date(2026, time.January, 2, 10, 0, 0, 0, c.Location)
	st, err := ComputeStatement(c, schedule, now, nil)
	require.NoError(t, err)
	require.Len(t, st.Lines, 6)

	for _, line := range st.Lines {
		assert.Equal(t, domain.StatusPending, line.Status)
		assert.Zero(t, line.DaysOverdue)
		assertMoney(t, "386.56", line.TotalOwed)
	}
	assert.Equal(t, 1, st.NextDueIndex)
	assertMoney(t, "2319.36", st.TotalDebtOriginal)
	assertMoney(t, "2319.36", st.TotalOwedNow)
}

func TestComputeStatementDueToday(t *testing.T) {
	c := testContract(t)
	schedule := buildTestSchedule(t, c)

	// Time of day is irrelevant, only the civil date counts.
	now := time.Date(2026, time.January, 8, 23, 30, 0, 0, c.Location)
	st, err := ComputeStatement(c, schedule, now, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusDueToday, st.Lines[0].Status)
	assertMoney(t, "386.56", st.Lines[0].TotalOwed)
	due := st.DueToday()
	require.NotNil(t, due)
	assert.Equal(t, 1, due.Installment.Index)
}

func TestComputeStatementOverdueAccruals(t *testing.T) {
	c := testContract(t)
	schedule := buildTestSchedule(t, c)

	// 10 days past the Jan 8 due date. Penalty 386.56 × 2% = 7.7312 → 7.73.
	// Interest 386.56 × ((1.01)^(10/30) − 1) = 1.2843... → 1.28.
	now := time.Date(2026, time.January, 18, 9, 0, 0, 0, c.Location)
	st, err := ComputeStatement(c, schedule, now, nil)
	require.NoError(t, err)

	first := st.Lines[0]
	assert.Equal(t, domain.StatusOverdue, first.Status)
	assert.Equal(t, 10, first.DaysOverdue)
	assertMoney(t, "7.73", first.PenaltyAmount)
	assertMoney(t, "1.28", first.InterestAmount)
	assertMoney(t, "395.57", first.TotalOwed)

	// The remaining five are untouched.
	for _, line := range st.Lines[1:] {
		assert.Equal(t, domain.StatusPending, line.Status)
		assertMoney(t, "386.56", line.TotalOwed)
	}
	assertMoney(t, "2328.37", st.TotalOwedNow) // 395.57 + 5×386.56
	overdue := st.Overdue()
	require.Len(t, overdue, 1)
	assert.Equal(t, 1, overdue[0].Installment.Index)
}

func TestComputeStatementGraceBoundary(t *testing.T) {
	c := testContract(t)
	c.GraceDays = 3
	schedule := buildTestSchedule(t, c)

	// Exactly at the grace limit nothing accrues yet.
	atLimit := time.Date(2026, time.January, 11, 12, 0, 0, 0, c.Location)
	st, err := ComputeStatement(c, schedule, atLimit, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, st.Lines[0].Status)
	assertMoney(t, "386.56", st.Lines[0].TotalOwed)

	// One day past the limit the grace window is deducted: four days late
	// counts as a single overdue day. Interest 386.56 × ((1.01)^(1/30) − 1)
	// = 0.1282... → 0.13; the flat penalty is unaffected by grace.
	past := time.Date(2026, time.January, 12, 12, 0, 0, 0, c.Location)
	st, err = ComputeStatement(c, schedule, past, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOverdue, st.Lines[0].Status)
	assert.Equal(t, 1, st.Lines[0].DaysOverdue)
	assertMoney(t, "7.73", st.Lines[0].PenaltyAmount)
	assertMoney(t, "0.13", st.Lines[0].InterestAmount)
	assertMoney(t, "394.42", st.Lines[0].TotalOwed)
}

func TestComputeStatementRejectsInvalidInstant(t *testing.T) {
	c := testContract(t)
	schedule := buildTestSchedule(t, c)

	_, err := ComputeStatement(c, schedule, time.Time{}, nil)
	var errInstant *domain.ErrInvalidInstant
	require.ErrorAs(t, err, &errInstant)

	before := time.Date(2019, time.June, 1, 0, 0, 0, 0, c.Location)
	_, err = ComputeStatement(c, schedule, before, nil)
	require.ErrorAs(t, err, &errInstant)
}

func TestComputeStatementNormalizesInstantToContractZone(t *testing.T) {
	c := testContract(t)
	schedule := buildTestSchedule(t, c)

	// Jan 19 01:00 UTC is still Jan 18 in São Paulo (UTC−3), so lateness
	// against the Jan 8 due date is 10 days, not 11.
	now := time.Date(2026, time.January, 19, 1, 0, 0, 0, time.UTC)
	st, err := ComputeStatement(c, schedule, now, nil)
	require.NoError(t, err)
	assert.Equal(t, 10, st.Lines[0].DaysOverdue)
}

func TestComputeStatementPaidSuppressesAccrual(t *testing.T) {
	c := testContract(t)
	schedule := buildTestSchedule(t, c)

	now := time.Date(2026, time.March, 20, 8, 0, 0, 0, c.Location)
	paid := map[int]bool{1: true, 2: true}
	st, err := ComputeStatement(c, schedule, now, paid)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPaid, st.Lines[0].Status)
	assert.Equal(t, domain.StatusPaid, st.Lines[1].Status)
	assertMoney(t, "0.00", st.Lines[0].TotalOwed)
	assertMoney(t, "0.00", st.Lines[0].PenaltyAmount)

	// Installment 3 (due Mar 6) is the first unpaid one and is overdue.
	assert.Equal(t, domain.StatusOverdue, st.Lines[2].Status)
	assert.Equal(t, 14, st.Lines[2].DaysOverdue)
	assert.Equal(t, 3, st.NextDueIndex)
}

func TestComputeStatementAllPaid(t *testing.T) {
	c := testContract(t)
	schedule := buildTestSchedule(t, c)

	paid := map[int]bool{1: true, 2: true, 3: true, 4: true, 5: true, 6: true}
	st, err := ComputeStatement(c, schedule, time.Date(2026, time.July, 1, 0, 0, 0, 0, c.Location), paid)
	require.NoError(t, err)

	assert.Equal(t, 0, st.NextDueIndex)
	assert.Nil(t, st.NextDue())
	assertMoney(t, "0.00", st.TotalOwedNow)
	assertMoney(t, "2319.36", st.TotalDebtOriginal)
}

func TestComputeStatementZeroRates(t *testing.T) {
	c := testContract(t)
	c.MultaPercent = decimal.Zero
	c.InterestMonthlyPercent = decimal.Zero
	schedule := buildTestSchedule(t, c)

	now := time.Date(2026, time.February, 10, 0, 0, 0, 0, c.Location)
	st, err := ComputeStatement(c, schedule, now, nil)
	require.NoError(t, err)

	first := st.Lines[0]
	assert.Equal(t, domain.StatusOverdue, first.Status)
	assertMoney(t, "0.00", first.PenaltyAmount)
	assertMoney(t, "0.00", first.InterestAmount)
	assertMoney(t, "386.56", first.TotalOwed)
}

func TestRoundingIsHalfUp(t *testing.T) {
	// 117.25 × 2% = 2.345, which must round to 2.35, not 2.34.
	got := penalty(decimal.RequireFromString("117.25"), decimal.RequireFromString("2.0"))
	assertMoney(t, "2.35", got)
}

func TestInterestThirtyDaysMatchesMonthlyRate(t *testing.T) {
	// At exactly 30 days overdue the pro-rata factor is the full monthly
	// rate: 386.56 × 1% = 3.8656 → 3.87.
	got := interest(decimal.RequireFromString("386.56"), decimal.RequireFromString("1.0"), 30)
	assertMoney(t, "3.87", got)
}

func TestDaysBetweenIgnoresTimeOfDay(t *testing.T) {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	due := time.Date(2026, time.January, 8, 0, 0, 0, 0, loc)
	assert.Equal(t, 0, daysBetween(due, time.Date(2026, time.January, 8, 23, 59, 0, 0, loc)))
	assert.Equal(t, 1, daysBetween(due, time.Date(2026, time.January, 9, 0, 1, 0, 0, loc)))
	assert.Equal(t, -1, daysBetween(due, time.Date(2026, time.January, 7, 23, 0, 0, 0, loc)))
}

func TestComputeStatementInvalidContract(t *testing.T) {
	c := testContract(t)
	schedule := buildTestSchedule(t, c)
	c.GraceDays = -1
	_, err := ComputeStatement(c, schedule, time.Now(), nil)
	require.Error(t, err)
}
