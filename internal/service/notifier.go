package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mfcastro/cobranca-assistant-go/internal/domain"
	"github.com/mfcastro/cobranca-assistant-go/internal/infra/observability"
	"github.com/mfcastro/cobranca-assistant-go/internal/port"
)

var notifierTracer = otel.Tracer("service/notifier")

// Notifier runs the daily charge sweep: when an installment falls due on the
// evaluation date it messages the debtor on WhatsApp and email, and it logs
// every installment already overdue.
type Notifier struct {
	billing   *Billing
	formatter *Formatter
	messenger port.Messenger
	mailer    port.Mailer
	metrics   *observability.Metrics
	logger    *zap.Logger

	debtorPhone string
	debtorEmail string
}

// NewNotifier creates a Notifier.
func NewNotifier(
	billing *Billing,
	formatter *Formatter,
	messenger port.Messenger,
	mailer port.Mailer,
	metrics *observability.Metrics,
	logger *zap.Logger,
	debtorPhone, debtorEmail string,
) *Notifier {
	return &Notifier{
		billing:     billing,
		formatter:   formatter,
		messenger:   messenger,
		mailer:      mailer,
		metrics:     metrics,
		logger:      logger,
		debtorPhone: debtorPhone,
		debtorEmail: debtorEmail,
	}
}

// Run performs one sweep as of the billing service's evaluation instant.
func (n *Notifier) Run(ctx context.Context) (*domain.NotifyResult, error) {
	return n.RunAt(ctx, n.billing.Now())
}

// RunAt performs one sweep as of an explicit instant. Both channels are
// attempted concurrently; a failure on one does not suppress the other, and
// the result reports each channel separately.
func (n *Notifier) RunAt(ctx context.Context, now time.Time) (*domain.NotifyResult, error) {
	ctx, span := notifierTracer.Start(ctx, "Notifier.RunAt")
	defer span.End()

	start := time.Now()
	defer func() {
		n.metrics.RecordRequestDuration("notify", time.Since(start))
	}()

	st, err := n.billing.Statement(ctx, now)
	if err != nil {
		return nil, err
	}

	result := &domain.NotifyResult{
		ReferenceDate: now.Format("2006-01-02"),
	}

	for _, line := range st.Overdue() {
		result.OverdueCount++
		n.logger.Warn("parcela vencida",
			zap.Int("installment", line.Installment.Index),
			zap.String("due_date", line.Installment.DueDate.Format("2006-01-02")),
			zap.Int("days_overdue", line.DaysOverdue),
			zap.String("total_owed", line.TotalOwed.StringFixed(2)),
		)
	}

	due := st.DueToday()
	if due == nil {
		n.logger.Info("nenhuma parcela vencendo hoje",
			zap.String("reference_date", result.ReferenceDate))
		return result, nil
	}

	result.DueToday = true
	result.Installment = due.Installment.Index
	body := n.formatter.ChargeMessage(due)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sid, err := n.messenger.SendWhatsApp(gCtx, n.debtorPhone, body)
		if err != nil {
			n.logger.Error("whatsapp charge failed",
				zap.Int("installment", due.Installment.Index),
				zap.Error(err),
			)
			n.metrics.RecordNotification("whatsapp", "error")
			n.metrics.IncrExternalError("twilio")
			return nil // keep the email attempt alive
		}
		result.WhatsAppSent = true
		n.metrics.RecordNotification("whatsapp", "sent")
		n.logger.Info("whatsapp charge sent",
			zap.Int("installment", due.Installment.Index),
			zap.String("sid", sid),
		)
		return nil
	})

	g.Go(func() error {
		subject := n.formatter.ChargeSubject(due)
		if err := n.mailer.Send(gCtx, n.debtorEmail, subject, body); err != nil {
			n.logger.Error("email charge failed",
				zap.Int("installment", due.Installment.Index),
				zap.Error(err),
			)
			n.metrics.RecordNotification("email", "error")
			n.metrics.IncrExternalError("smtp")
			return nil
		}
		result.EmailSent = true
		n.metrics.RecordNotification("email", "sent")
		return nil
	})

	// Channel errors are already absorbed above.
	_ = g.Wait()

	return result, nil
}
