package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mfcastro/cobranca-assistant-go/internal/billing"
	"github.com/mfcastro/cobranca-assistant-go/internal/domain"
	"github.com/mfcastro/cobranca-assistant-go/internal/handler"
	"github.com/mfcastro/cobranca-assistant-go/internal/infra/cache"
	"github.com/mfcastro/cobranca-assistant-go/internal/infra/client"
	"github.com/mfcastro/cobranca-assistant-go/internal/infra/mail"
	"github.com/mfcastro/cobranca-assistant-go/internal/infra/observability"
	"github.com/mfcastro/cobranca-assistant-go/internal/port"
	"github.com/mfcastro/cobranca-assistant-go/internal/service"
)

type stubCompleter struct {
	answer string
	err    error
}

func (s *stubCompleter) Complete(context.Context, []domain.ChatMessage) (*domain.ChatCompletion, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &domain.ChatCompletion{Answer: s.answer, PromptTokens: 10, CompletionTokens: 5}, nil
}

// newTestRouter builds the full router over a static ledger and a stubbed
// LLM, with "today" pinned to pinnedNow.
func newTestRouter(t *testing.T, pinnedNow string, paid []int, completer *stubCompleter) http.Handler {
	t.Helper()
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	contract := domain.Contract{
		StartYear:                   2026,
		StartMonth:                  time.January,
		BusinessDaysAfterMonthStart: 5,
		InstallmentCount:            6,
		InstallmentValue:            decimal.RequireFromString("386.56"),
		MultaPercent:                decimal.RequireFromString("2.0"),
		InterestMonthlyPercent:      decimal.RequireFromString("1.0"),
		Region:                      "BR",
		Location:                    loc,
	}
	cal, err := billing.NewCalendar("BR", 2026, 2027)
	if err != nil {
		t.Fatalf("calendar: %v", err)
	}
	now, err := service.ParseCivilDate(pinnedNow, loc)
	if err != nil {
		t.Fatalf("parse now: %v", err)
	}

	metrics := observability.NewMetrics()
	logger := zap.NewNop()

	billingSvc, err := service.NewBilling(contract, cal, client.NewStaticLedger(paid), metrics, logger, now)
	if err != nil {
		t.Fatalf("billing service: %v", err)
	}
	formatter := service.NewFormatter("Fulano da Silva", "fulano@pix.example", "BRL")
	notifier := service.NewNotifier(billingSvc, formatter,
		client.NewLogMessenger(logger), mail.NewLogMailer(logger),
		metrics, logger, "+5511999999999", "fulano@example.com")
	var cc port.ChatCompleter
	if completer != nil {
		cc = completer
	}
	assistant := service.NewAssistant(cc, billingSvc, formatter,
		cache.New[[]domain.ChatMessage](time.Minute), metrics, logger)

	return handler.NewRouter(handler.Deps{
		Billing:     billingSvc,
		Formatter:   formatter,
		Notifier:    notifier,
		Assistant:   assistant,
		Metrics:     metrics,
		Logger:      logger,
		DebtorPhone: "+5511999999999",
	})
}

func get(t *testing.T, router http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t, "2026-01-02", nil, &stubCompleter{answer: "ok"})

	rec := get(t, router, "/healthz")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Status  string `json:"status"`
		Chatbot bool   `json:"chatbot"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !body.Chatbot {
		t.Error("expected chatbot true with a provider configured")
	}
}

func TestHealthzWithoutChatProvider(t *testing.T) {
	router := newTestRouter(t, "2026-01-02", nil, nil)

	rec := get(t, router, "/healthz")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Chatbot bool `json:"chatbot"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Chatbot {
		t.Error("expected chatbot false without a provider")
	}
}

func TestReadyz(t *testing.T) {
	router := newTestRouter(t, "2026-01-02", nil, &stubCompleter{answer: "ok"})

	if rec := get(t, router, "/readyz"); rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, "2026-01-02", nil, &stubCompleter{answer: "ok"})

	if rec := get(t, router, "/metrics"); rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestGetSchedule(t *testing.T) {
	router := newTestRouter(t, "2026-01-02", nil, &stubCompleter{answer: "ok"})

	rec := get(t, router, "/v1/schedule")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var out []domain.InstallmentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 6 {
		t.Fatalf("expected 6 installments, got %d", len(out))
	}
	if out[0].DueDate != "2026-01-08" {
		t.Errorf("expected first due 2026-01-08, got %s", out[0].DueDate)
	}
	if out[0].Value != "386.56" {
		t.Errorf("expected value 386.56, got %s", out[0].Value)
	}
}

func TestGetStatementWithAsOf(t *testing.T) {
	router := newTestRouter(t, "2026-01-02", nil, &stubCompleter{answer: "ok"})

	rec := get(t, router, "/v1/statement?as_of=2026-01-18")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var out domain.StatementResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.ReferenceDate != "2026-01-18" {
		t.Errorf("expected reference 2026-01-18, got %s", out.ReferenceDate)
	}
	first := out.Installments[0]
	if first.Status != "OVERDUE" || first.DaysOverdue != 10 {
		t.Errorf("expected first line 10 days overdue, got %+v", first)
	}
	if first.PenaltyAmount != "7.73" || first.InterestAmount != "1.28" || first.TotalOwed != "395.57" {
		t.Errorf("unexpected accruals %+v", first)
	}
}

func TestGetStatementMalformedAsOf(t *testing.T) {
	router := newTestRouter(t, "2026-01-02", nil, &stubCompleter{answer: "ok"})

	if rec := get(t, router, "/v1/statement?as_of=18/01/2026"); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestGetStatementMessage(t *testing.T) {
	router := newTestRouter(t, "2026-01-02", []int{1}, &stubCompleter{answer: "ok"})

	rec := get(t, router, "/v1/statement/message?as_of=2026-02-10")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Parcela 1 - paga") {
		t.Errorf("expected paid line in message:\n%s", body)
	}
	if !strings.Contains(body, "fulano@pix.example") {
		t.Errorf("expected PIX key in message:\n%s", body)
	}
}

func TestGetDueToday(t *testing.T) {
	router := newTestRouter(t, "2026-01-08", nil, &stubCompleter{answer: "ok"})

	rec := get(t, router, "/v1/installments/due-today")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var out domain.DueTodayResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.DueToday || out.Installment == nil || out.Installment.Index != 1 {
		t.Errorf("expected installment 1 due today, got %+v", out)
	}
}

func TestGetDueTodayQuiet(t *testing.T) {
	router := newTestRouter(t, "2026-01-02", nil, &stubCompleter{answer: "ok"})

	rec := get(t, router, "/v1/installments/due-today")
	var out domain.DueTodayResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.DueToday || out.Installment != nil {
		t.Errorf("expected no installment due, got %+v", out)
	}
}

func TestPostChat(t *testing.T) {
	router := newTestRouter(t, "2026-01-18", nil, &stubCompleter{answer: "Você deve R$ 395,57."})

	req := httptest.NewRequest(http.MethodPost, "/v1/chat",
		strings.NewReader(`{"query":"Quanto devo?"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var out domain.ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Answer != "Você deve R$ 395,57." {
		t.Errorf("unexpected answer %q", out.Answer)
	}
	if out.ConversationID == "" {
		t.Error("expected conversation id")
	}
}

func TestPostChatEmptyQuery(t *testing.T) {
	router := newTestRouter(t, "2026-01-18", nil, &stubCompleter{answer: "ok"})

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"query":""}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestPostChatProviderFailure(t *testing.T) {
	router := newTestRouter(t, "2026-01-18", nil,
		&stubCompleter{err: &domain.ErrExternalService{Service: "groq", Err: context.DeadlineExceeded}})

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"query":"Oi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", rec.Code)
	}
}

func TestChatMetricsSnapshot(t *testing.T) {
	router := newTestRouter(t, "2026-01-18", nil, &stubCompleter{answer: "ok"})

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"query":"Oi"}`))
	router.ServeHTTP(httptest.NewRecorder(), req)

	rec := get(t, router, "/v1/metrics/chat")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var out domain.ChatMetrics
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.TotalRequests != 1 {
		t.Errorf("expected 1 request, got %d", out.TotalRequests)
	}
}

func TestNotifyRun(t *testing.T) {
	router := newTestRouter(t, "2026-01-08", nil, &stubCompleter{answer: "ok"})

	req := httptest.NewRequest(http.MethodPost, "/v1/dev/notify-run", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var out domain.NotifyResult
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.DueToday || out.Installment != 1 {
		t.Errorf("expected installment 1 due today, got %+v", out)
	}
	if !out.WhatsAppSent {
		t.Error("expected whatsapp sent via log messenger")
	}
}

func TestNotifyRunWithAsOf(t *testing.T) {
	router := newTestRouter(t, "2026-01-02", nil, &stubCompleter{answer: "ok"})

	req := httptest.NewRequest(http.MethodPost, "/v1/dev/notify-run?as_of=2026-02-06", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var out domain.NotifyResult
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.DueToday || out.Installment != 2 {
		t.Errorf("expected installment 2 due on 2026-02-06, got %+v", out)
	}
	if out.OverdueCount != 1 {
		t.Errorf("expected installment 1 overdue by then, got %d", out.OverdueCount)
	}
}
