package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/mfcastro/cobranca-assistant-go/internal/domain"
	"github.com/mfcastro/cobranca-assistant-go/internal/infra/cache"
	"github.com/mfcastro/cobranca-assistant-go/internal/infra/observability"
	"github.com/mfcastro/cobranca-assistant-go/internal/port"
)

var assistantTracer = otel.Tracer("service/assistant")

// systemPrompt frames the LLM as a polite, firm debt-collection attendant.
// The per-request statement context is appended to it.
const systemPrompt = `Você é um assistente virtual profissional e educado para cobrança de dívidas.

Sua função é:
1. Responder perguntas sobre a dívida de forma clara e objetiva
2. Fornecer informações sobre parcelas, valores e vencimentos
3. Orientar sobre formas de pagamento (PIX)
4. Ser empático e profissional, mas firme quando necessário
5. NUNCA ser agressivo ou ameaçador
6. Sempre manter tom respeitoso e profissional

Informações importantes:
- Use a chave PIX fornecida no contexto para pagamentos
- Sempre mencione valores em Reais (R$)
- Seja claro sobre datas de vencimento
- Se houver parcelas vencidas, mencione mas seja educado

Responda de forma concisa, clara e profissional. Use emojis moderadamente.`

// maxHistoryTurns caps how many past exchanges are replayed to the provider.
const maxHistoryTurns = 10

// Assistant answers debtor questions over the current statement, keeping a
// short per-conversation history so follow-up questions work.
type Assistant struct {
	completer port.ChatCompleter
	billing   *Billing
	formatter *Formatter
	history   *cache.Store[[]domain.ChatMessage]
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewAssistant creates the assistant. completer may be nil when no LLM
// provider is configured; Answer then fails with an external-service error.
func NewAssistant(
	completer port.ChatCompleter,
	billing *Billing,
	formatter *Formatter,
	history *cache.Store[[]domain.ChatMessage],
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Assistant {
	return &Assistant{
		completer: completer,
		billing:   billing,
		formatter: formatter,
		history:   history,
		metrics:   metrics,
		logger:    logger,
	}
}

// Ready reports whether a chat provider is configured. Without one the
// assistant exists but every Answer call fails.
func (a *Assistant) Ready() bool {
	return a.completer != nil
}

// Answer produces the assistant's reply for one user turn. The statement is
// recomputed per request so the context the model sees is always current.
func (a *Assistant) Answer(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	ctx, span := assistantTracer.Start(ctx, "Assistant.Answer")
	defer span.End()

	start := time.Now()
	defer func() {
		a.metrics.RecordRequestDuration("chat", time.Since(start))
	}()

	query := strings.TrimSpace(req.Query)
	if query == "" {
		a.metrics.IncrChatRequest("error")
		return nil, &domain.ErrValidation{Field: "query", Message: "must not be empty"}
	}
	if a.completer == nil {
		a.metrics.IncrChatRequest("error")
		return nil, &domain.ErrExternalService{Service: "groq", Err: errNoProvider}
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	span.SetAttributes(attribute.String("chat.conversation_id", conversationID))

	st, err := a.billing.Statement(ctx, a.billing.Now())
	if err != nil {
		a.metrics.IncrChatRequest("error")
		return nil, err
	}

	var past []domain.ChatMessage
	if cached, ok := a.history.Get(conversationID); ok {
		a.metrics.IncrCacheHit("conversation")
		past = cached
	} else {
		a.metrics.IncrCacheMiss("conversation")
	}

	messages := make([]domain.ChatMessage, 0, len(past)+2)
	messages = append(messages, domain.ChatMessage{
		Role:    "system",
		Content: systemPrompt + "\n\n" + a.formatter.ContextBlock(st),
	})
	messages = append(messages, past...)
	messages = append(messages, domain.ChatMessage{Role: "user", Content: query})

	completion, err := a.completer.Complete(ctx, messages)
	if err != nil {
		a.logger.Error("chat completion failed",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
		a.metrics.IncrExternalError("groq")
		a.metrics.IncrChatRequest("error")
		return nil, err
	}

	a.metrics.RecordTokens(completion.PromptTokens, completion.CompletionTokens)
	a.metrics.IncrChatRequest("success")

	past = append(past,
		domain.ChatMessage{Role: "user", Content: query},
		domain.ChatMessage{Role: "assistant", Content: completion.Answer},
	)
	if len(past) > 2*maxHistoryTurns {
		past = past[len(past)-2*maxHistoryTurns:]
	}
	a.history.Set(conversationID, past)

	return &domain.ChatResponse{
		ConversationID: conversationID,
		Answer:         completion.Answer,
	}, nil
}

var errNoProvider = &domain.ErrConfiguration{Field: "GROQ_API_KEY", Message: "chat provider not configured"}
