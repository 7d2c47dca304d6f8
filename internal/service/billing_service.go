// Package service holds the application services: billing evaluation, debtor
// message formatting, the notification sweep and the chat assistant.
package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/mfcastro/cobranca-assistant-go/internal/billing"
	"github.com/mfcastro/cobranca-assistant-go/internal/domain"
	"github.com/mfcastro/cobranca-assistant-go/internal/infra/observability"
	"github.com/mfcastro/cobranca-assistant-go/internal/port"
)

var billingTracer = otel.Tracer("service/billing")

// Billing evaluates the contract: it owns the derived schedule and computes
// statements against the payment ledger.
type Billing struct {
	contract domain.Contract
	schedule []domain.Installment
	ledger   port.PaymentLedger
	metrics  *observability.Metrics
	logger   *zap.Logger

	// nowOverride pins "today" for dry runs; zero means the real clock.
	nowOverride time.Time
}

// NewBilling derives the schedule once and keeps it for the lifetime of the
// service. The schedule is a pure function of the contract and calendar, so
// a derivation failure here is a startup failure.
func NewBilling(
	contract domain.Contract,
	cal *billing.Calendar,
	ledger port.PaymentLedger,
	metrics *observability.Metrics,
	logger *zap.Logger,
	nowOverride time.Time,
) (*Billing, error) {
	schedule, err := billing.BuildSchedule(contract, cal)
	if err != nil {
		return nil, err
	}
	return &Billing{
		contract:    contract,
		schedule:    schedule,
		ledger:      ledger,
		metrics:     metrics,
		logger:      logger,
		nowOverride: nowOverride,
	}, nil
}

// Contract returns the contract being serviced.
func (b *Billing) Contract() domain.Contract { return b.contract }

// Schedule returns the derived installment plan.
func (b *Billing) Schedule() []domain.Installment { return b.schedule }

// Now returns the evaluation instant: the pinned override when configured,
// otherwise the current time in the contract's zone.
func (b *Billing) Now() time.Time {
	if !b.nowOverride.IsZero() {
		return b.nowOverride
	}
	return time.Now().In(b.contract.Location)
}

// Statement computes the debt statement as of the given instant, consulting
// the ledger for settled installments.
func (b *Billing) Statement(ctx context.Context, asOf time.Time) (*domain.Statement, error) {
	ctx, span := billingTracer.Start(ctx, "Billing.Statement")
	defer span.End()
	span.SetAttributes(attribute.String("statement.as_of", asOf.Format("2006-01-02")))

	start := time.Now()
	defer func() {
		b.metrics.RecordRequestDuration("statement", time.Since(start))
	}()

	paid, err := b.ledger.PaidInstallments(ctx)
	if err != nil {
		b.logger.Error("failed to fetch paid installments", zap.Error(err))
		b.metrics.IncrExternalError("payments")
		return nil, err
	}

	st, err := billing.ComputeStatement(b.contract, b.schedule, asOf, paid)
	if err != nil {
		return nil, err
	}
	b.metrics.IncrStatement()
	return st, nil
}

// DueToday reports whether an installment falls due on the given date and,
// if so, returns its statement line.
func (b *Billing) DueToday(ctx context.Context, asOf time.Time) (*domain.StatementLine, *domain.Statement, error) {
	st, err := b.Statement(ctx, asOf)
	if err != nil {
		return nil, nil, err
	}
	return st.DueToday(), st, nil
}

// ParseCivilDate parses a YYYY-MM-DD value into midnight of that date in loc.
// Malformed input is an *domain.ErrInvalidInstant.
func ParseCivilDate(value string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", value, loc)
	if err != nil {
		return time.Time{}, &domain.ErrInvalidInstant{Value: value, Reason: "expected YYYY-MM-DD"}
	}
	return t, nil
}
