// Package config loads the service configuration from environment variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mfcastro/cobranca-assistant-go/internal/domain"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Contract
	StartYear                   int
	StartMonth                  int
	BusinessDaysAfterMonthStart int
	Installments                int
	InstallmentValue            string
	MultaPercent                string
	InterestMonthlyPercent      string
	GraceDays                   int
	Currency                    string
	Timezone                    string
	HolidayRegion               string

	// Debtor
	DebtorName  string
	DebtorPhone string
	DebtorEmail string
	PixKey      string

	// Payments ledger
	PaymentsAPIURL   string // empty: use the static ledger
	ContractID       string
	PaidInstallments []int // static ledger seed, e.g. PAID_INSTALLMENTS=1,2

	// Twilio
	TwilioBaseURL    string
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string

	// Groq
	GroqBaseURL string
	GroqAPIKey  string
	GroqModel   string

	// SMTP
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SenderEmail  string

	// Notification sweep
	NotifyCron string

	// Test mode: log outbound messages instead of calling providers.
	TestMode bool

	// NowOverride pins "today" (YYYY-MM-DD) for dry runs; empty = real clock.
	NowOverride string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Conversation memory
	ConversationTTL time.Duration

	// Observability
	OTLPEndpoint string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		StartYear:                   getEnvInt("START_YEAR", 2026),
		StartMonth:                  getEnvInt("START_MONTH", 1),
		BusinessDaysAfterMonthStart: getEnvInt("BUSINESS_DAYS_AFTER_MONTH_START", 5),
		Installments:                getEnvInt("INSTALLMENTS", 6),
		InstallmentValue:            getEnv("INSTALLMENT_VALUE", "386.56"),
		MultaPercent:                getEnv("MULTA_PERCENT", "2.0"),
		InterestMonthlyPercent:      getEnv("INTEREST_MONTHLY_PERCENT", "1.0"),
		GraceDays:                   getEnvInt("GRACE_DAYS", 0),
		Currency:                    getEnv("CURRENCY", "BRL"),
		Timezone:                    getEnv("TIMEZONE", "America/Sao_Paulo"),
		HolidayRegion:               getEnv("HOLIDAY_REGION", "BR"),

		DebtorName:  getEnv("DEBTOR_NAME", "Devedor"),
		DebtorPhone: getEnv("DEBTOR_PHONE", ""),
		DebtorEmail: getEnv("DEBTOR_EMAIL", ""),
		PixKey:      getEnv("PIX_KEY", ""),

		PaymentsAPIURL:   getEnv("PAYMENTS_API_URL", ""),
		ContractID:       getEnv("CONTRACT_ID", "default"),
		PaidInstallments: getEnvIntList("PAID_INSTALLMENTS"),

		TwilioBaseURL:    getEnv("TWILIO_BASE_URL", "https://api.twilio.com"),
		TwilioAccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFrom:       getEnv("TWILIO_FROM", ""),

		GroqBaseURL: getEnv("GROQ_BASE_URL", "https://api.groq.com/openai"),
		GroqAPIKey:  getEnv("GROQ_API_KEY", ""),
		GroqModel:   getEnv("GROQ_MODEL", "llama-3.1-8b-instant"),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnv("SMTP_PORT", "587"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SenderEmail:  getEnv("SENDER_EMAIL", ""),

		NotifyCron: getEnv("NOTIFY_CRON", "0 9 * * *"),

		TestMode:    getEnvBool("TEST_MODE", true),
		NowOverride: getEnv("NOW_OVERRIDE", ""),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 10*time.Second),

		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 10),

		ConversationTTL: getEnvDuration("CONVERSATION_TTL", 30*time.Minute),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}
}

// Contract materializes and validates the billing contract described by the
// configuration. Malformed numbers and unknown time zones are configuration
// errors.
func (c *Config) Contract() (domain.Contract, error) {
	value, err := decimal.NewFromString(c.InstallmentValue)
	if err != nil {
		return domain.Contract{}, &domain.ErrConfiguration{Field: "INSTALLMENT_VALUE", Message: "not a decimal: " + c.InstallmentValue}
	}
	multa, err := decimal.NewFromString(c.MultaPercent)
	if err != nil {
		return domain.Contract{}, &domain.ErrConfiguration{Field: "MULTA_PERCENT", Message: "not a decimal: " + c.MultaPercent}
	}
	interest, err := decimal.NewFromString(c.InterestMonthlyPercent)
	if err != nil {
		return domain.Contract{}, &domain.ErrConfiguration{Field: "INTEREST_MONTHLY_PERCENT", Message: "not a decimal: " + c.InterestMonthlyPercent}
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return domain.Contract{}, &domain.ErrConfiguration{Field: "TIMEZONE", Message: "unknown time zone: " + c.Timezone}
	}

	contract := domain.Contract{
		StartYear:                   c.StartYear,
		StartMonth:                  time.Month(c.StartMonth),
		BusinessDaysAfterMonthStart: c.BusinessDaysAfterMonthStart,
		InstallmentCount:            c.Installments,
		InstallmentValue:            value,
		MultaPercent:                multa,
		InterestMonthlyPercent:      interest,
		GraceDays:                   c.GraceDays,
		Region:                      c.HolidayRegion,
		Location:                    loc,
	}
	if err := contract.Validate(); err != nil {
		return domain.Contract{}, err
	}
	return contract, nil
}

// Now resolves the evaluation instant. A set NOW_OVERRIDE must parse as
// YYYY-MM-DD; a malformed value is a hard error, never silently ignored.
func (c *Config) Now(loc *time.Location) (time.Time, error) {
	if c.NowOverride == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation("2006-01-02", c.NowOverride, loc)
	if err != nil {
		return time.Time{}, &domain.ErrInvalidInstant{Value: c.NowOverride, Reason: "NOW_OVERRIDE expects YYYY-MM-DD"}
	}
	return t, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes":
			return true
		case "0", "false", "no":
			return false
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvIntList(key string) []int {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []int
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if i, err := strconv.Atoi(part); err == nil {
			out = append(out, i)
		}
	}
	return out
}
