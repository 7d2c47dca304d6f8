// Package port declares the outbound interfaces the services depend on.
// Adapters under internal/infra implement them; tests substitute fakes.
package port

import (
	"context"

	"github.com/mfcastro/cobranca-assistant-go/internal/domain"
)

// PaymentLedger answers which installments have been settled. Implementations
// are the payments REST client and a static, env-seeded ledger.
type PaymentLedger interface {
	// PaidInstallments returns the set of settled installment indexes.
	PaidInstallments(ctx context.Context) (map[int]bool, error)
}

// Messenger delivers a WhatsApp message to a phone number in E.164 form and
// returns the provider's message identifier.
type Messenger interface {
	SendWhatsApp(ctx context.Context, to, body string) (string, error)
}

// Mailer sends a plain-text email notification.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// ChatCompleter produces the assistant's answer for a conversation history.
// The last message is the current user turn.
type ChatCompleter interface {
	Complete(ctx context.Context, messages []domain.ChatMessage) (*domain.ChatCompletion, error)
}
