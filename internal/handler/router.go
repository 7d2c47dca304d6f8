// Package handler wires the HTTP surface: the billing API, the chat
// endpoint, the Twilio webhook and the operational routes.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/mfcastro/cobranca-assistant-go/internal/domain"
	"github.com/mfcastro/cobranca-assistant-go/internal/infra/observability"
	"github.com/mfcastro/cobranca-assistant-go/internal/service"
)

var tracer = otel.Tracer("handler")

// Deps bundles everything the router serves.
type Deps struct {
	Billing   *service.Billing
	Formatter *service.Formatter
	Notifier  *service.Notifier
	Assistant *service.Assistant
	Metrics   *observability.Metrics
	Logger    *zap.Logger

	// DebtorPhone is the only number the Twilio webhook answers to.
	DebtorPhone string
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(d.Logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(d))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(d.Metrics.Registry, promhttp.HandlerOpts{}))

	// --- Twilio webhook ---
	r.Post("/webhook/twilio", twilioWebhookHandler(d))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Get("/schedule", scheduleHandler(d))
		r.Get("/statement", statementHandler(d))
		r.Get("/statement/message", statementMessageHandler(d))
		r.Get("/installments/due-today", dueTodayHandler(d))
		r.Post("/chat", chatHandler(d))
		r.Get("/metrics/chat", chatMetricsHandler(d))
		r.Post("/dev/notify-run", notifyRunHandler(d))
	})

	return r
}

// ============================================================
// Billing — GET /v1/schedule
// ============================================================

func scheduleHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "GET /v1/schedule")
		defer span.End()

		schedule := d.Billing.Schedule()
		out := make([]domain.InstallmentResponse, 0, len(schedule))
		for _, inst := range schedule {
			out = append(out, toInstallmentResponse(inst))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// ============================================================
// Billing — GET /v1/statement[?as_of=YYYY-MM-DD]
// ============================================================

func statementHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/statement")
		defer span.End()

		ref, err := asOf(r, d.Billing)
		if err != nil {
			handleServiceError(w, err, d.Logger)
			return
		}
		st, err := d.Billing.Statement(ctx, ref)
		if err != nil {
			handleServiceError(w, err, d.Logger)
			return
		}
		writeJSON(w, http.StatusOK, toStatementResponse(st))
	}
}

// ============================================================
// Billing — GET /v1/statement/message
// ============================================================

func statementMessageHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/statement/message")
		defer span.End()

		ref, err := asOf(r, d.Billing)
		if err != nil {
			handleServiceError(w, err, d.Logger)
			return
		}
		st, err := d.Billing.Statement(ctx, ref)
		if err != nil {
			handleServiceError(w, err, d.Logger)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(d.Formatter.StatementMessage(st)))
	}
}

// ============================================================
// Billing — GET /v1/installments/due-today
// ============================================================

func dueTodayHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/installments/due-today")
		defer span.End()

		ref, err := asOf(r, d.Billing)
		if err != nil {
			handleServiceError(w, err, d.Logger)
			return
		}
		due, st, err := d.Billing.DueToday(ctx, ref)
		if err != nil {
			handleServiceError(w, err, d.Logger)
			return
		}

		resp := domain.DueTodayResponse{
			ReferenceDate: st.ReferenceDate.Format(civilDate),
			DueToday:      due != nil,
		}
		if due != nil {
			line := toLineResponse(*due)
			resp.Installment = &line
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// ============================================================
// Chat — POST /v1/chat
// ============================================================

func chatHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/chat")
		defer span.End()

		var req domain.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		resp, err := d.Assistant.Answer(ctx, req)
		if err != nil {
			handleServiceError(w, err, d.Logger)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func chatMetricsHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.Metrics.GetChatSnapshot())
	}
}

// ============================================================
// Operations — POST /v1/dev/notify-run
// ============================================================

// notifyRunHandler triggers one notification sweep on demand, outside the
// cron schedule. Useful with as_of or NOW_OVERRIDE for dry runs.
func notifyRunHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/dev/notify-run")
		defer span.End()

		ref, err := asOf(r, d.Billing)
		if err != nil {
			handleServiceError(w, err, d.Logger)
			return
		}
		result, err := d.Notifier.RunAt(ctx, ref)
		if err != nil {
			handleServiceError(w, err, d.Logger)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// ============================================================
// Operational endpoints
// ============================================================

func healthzHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":       "ok",
			"installments": len(d.Billing.Schedule()),
			"chatbot":      d.Assistant.Ready(),
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
