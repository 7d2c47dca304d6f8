package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/mfcastro/cobranca-assistant-go/internal/domain"
)

// Formatter renders the Portuguese-language messages sent to the debtor and
// the context block handed to the chat assistant.
type Formatter struct {
	debtorName string
	pixKey     string
	currency   string
}

// NewFormatter creates a Formatter.
func NewFormatter(debtorName, pixKey, currency string) *Formatter {
	return &Formatter{debtorName: debtorName, pixKey: pixKey, currency: currency}
}

const dateLayout = "02/01/2006"

// ChargeMessage builds the WhatsApp/email text for one installment. Overdue
// lines carry the accrued penalty and interest.
func (f *Formatter) ChargeMessage(line *domain.StatementLine) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Olá %s,\n", f.debtorName)
	fmt.Fprintf(&b, "Parcela %d: %s %s\n",
		line.Installment.Index, f.currency, line.Installment.Value.StringFixed(2))
	fmt.Fprintf(&b, "Vencimento (dia útil): %s\n", line.Installment.DueDate.Format(dateLayout))

	if line.Status == domain.StatusOverdue {
		fmt.Fprintf(&b, "Multa: %s | Juros acumulados: %s\n",
			line.PenaltyAmount.StringFixed(2), line.InterestAmount.StringFixed(2))
		fmt.Fprintf(&b, "Total devido neste momento: %s\n", line.TotalOwed.StringFixed(2))
	}

	fmt.Fprintf(&b, "Chave PIX para pagamento: %s\n", f.pixKey)
	b.WriteString("Por favor, efetue o pagamento.")
	return b.String()
}

// ChargeSubject builds the email subject for one installment's charge.
func (f *Formatter) ChargeSubject(line *domain.StatementLine) string {
	return fmt.Sprintf("Cobrança parcela %d", line.Installment.Index)
}

// StatementMessage renders the whole statement as debtor-readable text,
// served by GET /v1/statement/message.
func (f *Formatter) StatementMessage(st *domain.Statement) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Olá %s, segue o resumo da sua dívida em %s:\n\n",
		f.debtorName, st.ReferenceDate.Format(dateLayout))

	for _, line := range st.Lines {
		switch line.Status {
		case domain.StatusPaid:
			fmt.Fprintf(&b, "Parcela %d - paga\n", line.Installment.Index)
		case domain.StatusOverdue:
			fmt.Fprintf(&b, "Parcela %d - VENCIDA em %s (%d dias) - total %s %s\n",
				line.Installment.Index, line.Installment.DueDate.Format(dateLayout),
				line.DaysOverdue, f.currency, line.TotalOwed.StringFixed(2))
		case domain.StatusDueToday:
			fmt.Fprintf(&b, "Parcela %d - vence HOJE (%s) - %s %s\n",
				line.Installment.Index, line.Installment.DueDate.Format(dateLayout),
				f.currency, line.Installment.Value.StringFixed(2))
		default:
			fmt.Fprintf(&b, "Parcela %d - vence em %s - %s %s\n",
				line.Installment.Index, line.Installment.DueDate.Format(dateLayout),
				f.currency, line.Installment.Value.StringFixed(2))
		}
	}

	fmt.Fprintf(&b, "\nTotal da dívida: %s %s\n", f.currency, st.TotalDebtOriginal.StringFixed(2))
	fmt.Fprintf(&b, "Total devido neste momento: %s %s\n", f.currency, st.TotalOwedNow.StringFixed(2))
	fmt.Fprintf(&b, "Chave PIX para pagamento: %s", f.pixKey)
	return b.String()
}

// ContextBlock builds the situational context injected into the assistant's
// system prompt: totals, the PIX key and the overdue/upcoming installments
// within a week of the reference date.
func (f *Formatter) ContextBlock(st *domain.Statement) string {
	var overdue, upcoming []string
	for _, line := range st.Lines {
		due := line.Installment.DueDate.Format(dateLayout)
		switch {
		case line.Status == domain.StatusOverdue:
			overdue = append(overdue, fmt.Sprintf("Parcela %d vencida em %s - R$ %s (total com encargos: R$ %s)",
				line.Installment.Index, due, line.Installment.Value.StringFixed(2), line.TotalOwed.StringFixed(2)))
		case line.Status == domain.StatusDueToday:
			upcoming = append(upcoming, fmt.Sprintf("Parcela %d vencendo HOJE (%s) - R$ %s",
				line.Installment.Index, due, line.Installment.Value.StringFixed(2)))
		case line.Status == domain.StatusPending && daysUntil(st, line) <= 7:
			upcoming = append(upcoming, fmt.Sprintf("Parcela %d vence em %s - R$ %s",
				line.Installment.Index, due, line.Installment.Value.StringFixed(2)))
		}
	}

	var b strings.Builder
	b.WriteString("Informações da Cobrança:\n")
	fmt.Fprintf(&b, "- Devedor: %s\n", f.debtorName)
	fmt.Fprintf(&b, "- Total de parcelas: %d\n", len(st.Lines))
	fmt.Fprintf(&b, "- Total da dívida: R$ %s\n", st.TotalDebtOriginal.StringFixed(2))
	fmt.Fprintf(&b, "- Total devido neste momento: R$ %s\n", st.TotalOwedNow.StringFixed(2))
	fmt.Fprintf(&b, "- Chave PIX: %s\n", f.pixKey)
	fmt.Fprintf(&b, "- Data atual: %s\n\n", st.ReferenceDate.Format(dateLayout))

	if len(overdue) > 0 {
		b.WriteString("Parcelas Vencidas:\n")
		for _, p := range overdue {
			fmt.Fprintf(&b, "  - %s\n", p)
		}
		b.WriteString("\n")
	}
	if len(upcoming) > 0 {
		b.WriteString("Próximas Parcelas:\n")
		for _, p := range upcoming {
			fmt.Fprintf(&b, "  - %s\n", p)
		}
		b.WriteString("\n")
	}
	if len(overdue) == 0 && len(upcoming) == 0 {
		b.WriteString("Nenhuma parcela vencida ou próxima do vencimento.\n\n")
	}
	return b.String()
}

func daysUntil(st *domain.Statement, line domain.StatementLine) int {
	ref := st.ReferenceDate
	refDay := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, time.UTC)
	due := line.Installment.DueDate
	dueDay := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, time.UTC)
	return int(dueDay.Sub(refDay) / (24 * time.Hour))
}
