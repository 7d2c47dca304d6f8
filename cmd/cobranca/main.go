package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mfcastro/cobranca-assistant-go/internal/billing"
	"github.com/mfcastro/cobranca-assistant-go/internal/config"
	"github.com/mfcastro/cobranca-assistant-go/internal/domain"
	"github.com/mfcastro/cobranca-assistant-go/internal/handler"
	"github.com/mfcastro/cobranca-assistant-go/internal/infra/cache"
	"github.com/mfcastro/cobranca-assistant-go/internal/infra/client"
	"github.com/mfcastro/cobranca-assistant-go/internal/infra/mail"
	"github.com/mfcastro/cobranca-assistant-go/internal/infra/observability"
	"github.com/mfcastro/cobranca-assistant-go/internal/infra/resilience"
	"github.com/mfcastro/cobranca-assistant-go/internal/port"
	"github.com/mfcastro/cobranca-assistant-go/internal/service"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Bool("test_mode", cfg.TestMode),
		zap.Int("installments", cfg.Installments),
		zap.String("timezone", cfg.Timezone),
		zap.String("notify_cron", cfg.NotifyCron),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
	)

	// --- Contract ---
	contract, err := cfg.Contract()
	if err != nil {
		logger.Fatal("invalid contract configuration", zap.Error(err))
	}

	nowOverride, err := cfg.Now(contract.Location)
	if err != nil {
		logger.Fatal("invalid NOW_OVERRIDE", zap.Error(err))
	}
	if !nowOverride.IsZero() {
		logger.Warn("evaluation clock pinned",
			zap.String("now_override", cfg.NowOverride))
	}

	// Load one year past the schedule's last month so December spill-over
	// stays covered.
	firstYear, lastYear := contract.MonthsSpanned()
	calendar, err := billing.NewCalendar(contract.Region, firstYear, lastYear+1)
	if err != nil {
		logger.Fatal("failed to build holiday calendar", zap.Error(err))
	}

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "cobranca-assistant")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	var ledger port.PaymentLedger
	if cfg.PaymentsAPIURL != "" {
		logger.Info("using payments API as ledger",
			zap.String("payments_api_url", cfg.PaymentsAPIURL),
			zap.String("contract_id", cfg.ContractID),
		)
		ledger = client.NewPaymentsClient(httpClient, cfg.PaymentsAPIURL, cfg.ContractID, resilienceCfg)
	} else {
		logger.Info("using static ledger",
			zap.Ints("paid_installments", cfg.PaidInstallments))
		ledger = client.NewStaticLedger(cfg.PaidInstallments)
	}

	var messenger port.Messenger
	if !cfg.TestMode && cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" && cfg.TwilioFrom != "" {
		messenger = client.NewTwilioClient(httpClient, cfg.TwilioBaseURL,
			cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFrom, resilienceCfg)
		logger.Info("whatsapp delivery via Twilio enabled")
	} else {
		messenger = client.NewLogMessenger(logger)
		logger.Warn("whatsapp delivery in log-only mode")
	}

	var mailer port.Mailer
	if !cfg.TestMode && cfg.SMTPHost != "" {
		mailer = mail.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort,
			cfg.SMTPUsername, cfg.SMTPPassword, cfg.SenderEmail, logger)
		logger.Info("email delivery via SMTP enabled", zap.String("smtp_host", cfg.SMTPHost))
	} else {
		mailer = mail.NewLogMailer(logger)
		logger.Warn("email delivery in log-only mode")
	}

	var completer port.ChatCompleter
	if cfg.GroqAPIKey != "" {
		completer = client.NewGroqClient(httpClient, cfg.GroqBaseURL,
			cfg.GroqAPIKey, cfg.GroqModel, resilienceCfg)
		logger.Info("chat assistant enabled", zap.String("model", cfg.GroqModel))
	} else {
		logger.Warn("GROQ_API_KEY not set, chat endpoints will fail")
	}

	// --- Services ---
	billingSvc, err := service.NewBilling(contract, calendar, ledger, metrics, logger, nowOverride)
	if err != nil {
		logger.Fatal("failed to derive schedule", zap.Error(err))
	}
	logger.Info("schedule derived",
		zap.Int("installments", len(billingSvc.Schedule())),
		zap.String("first_due", billingSvc.Schedule()[0].DueDate.Format("2006-01-02")),
	)

	formatter := service.NewFormatter(cfg.DebtorName, cfg.PixKey, cfg.Currency)

	notifier := service.NewNotifier(billingSvc, formatter, messenger, mailer,
		metrics, logger, cfg.DebtorPhone, cfg.DebtorEmail)

	conversations := cache.New[[]domain.ChatMessage](cfg.ConversationTTL)
	defer conversations.Close()

	assistantSvc := service.NewAssistant(completer, billingSvc, formatter,
		conversations, metrics, logger)

	// --- Notification cron ---
	scheduler := cron.New(cron.WithLocation(contract.Location))
	_, err = scheduler.AddFunc(cfg.NotifyCron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := notifier.Run(ctx); err != nil {
			logger.Error("notification sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		logger.Fatal("invalid NOTIFY_CRON expression", zap.Error(err))
	}
	scheduler.Start()
	defer scheduler.Stop()

	// --- Router ---
	router := handler.NewRouter(handler.Deps{
		Billing:     billingSvc,
		Formatter:   formatter,
		Notifier:    notifier,
		Assistant:   assistantSvc,
		Metrics:     metrics,
		Logger:      logger,
		DebtorPhone: cfg.DebtorPhone,
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
