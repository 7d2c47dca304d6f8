// Package client holds the outbound HTTP adapters: Twilio for WhatsApp, Groq
// for chat completions and the payments API for the settled-installment set.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/mfcastro/cobranca-assistant-go/internal/domain"
	"github.com/mfcastro/cobranca-assistant-go/internal/infra/resilience"
)

var tracer = otel.Tracer("client")

// TwilioClient sends WhatsApp messages through Twilio's Messages API.
type TwilioClient struct {
	httpClient *http.Client
	baseURL    string
	accountSID string
	authToken  string
	// from is the sandbox/sender number, already prefixed "whatsapp:".
	from  string
	guard *resilience.Guard
	cfg   resilience.Config
}

// NewTwilioClient creates a TwilioClient. baseURL is overridable for tests;
// pass "https://api.twilio.com" in production.
func NewTwilioClient(httpClient *http.Client, baseURL, accountSID, authToken, from string, cfg resilience.Config) *TwilioClient {
	if !strings.HasPrefix(from, "whatsapp:") {
		from = "whatsapp:" + from
	}
	return &TwilioClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		guard:      resilience.NewGuard("twilio", cfg.MaxConcurrency),
		cfg:        cfg,
	}
}

// SendWhatsApp delivers body to the given number (E.164) and returns the
// Twilio message SID.
func (c *TwilioClient) SendWhatsApp(ctx context.Context, to, body string) (string, error) {
	ctx, span := tracer.Start(ctx, "TwilioClient.SendWhatsApp")
	defer span.End()
	span.SetAttributes(attribute.String("messaging.destination", to))

	if !strings.HasPrefix(to, "whatsapp:") {
		to = "whatsapp:" + to
	}

	var sid string
	err := c.guard.Do(ctx, func() error {
		return resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			form := url.Values{}
			form.Set("From", c.from)
			form.Set("To", to)
			form.Set("Body", body)

			endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, c.accountSID)
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
			if err != nil {
				return err
			}
			req.SetBasicAuth(c.accountSID, c.authToken)
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				return fmt.Errorf("twilio returned status %d", resp.StatusCode)
			}

			var payload struct {
				SID string `json:"sid"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
				return err
			}
			sid = payload.SID
			return nil
		})
	})

	if err != nil {
		var open *domain.ErrCircuitOpen
		if errors.As(err, &open) {
			return "", err
		}
		return "", &domain.ErrExternalService{Service: "twilio", Err: err}
	}
	return sid, nil
}

// LogMessenger is the TEST_MODE stand-in: it logs the message instead of
// calling Twilio and fabricates a SID.
type LogMessenger struct {
	logger *zap.Logger
	seq    int
}

// NewLogMessenger creates a LogMessenger.
func NewLogMessenger(logger *zap.Logger) *LogMessenger {
	return &LogMessenger{logger: logger}
}

// SendWhatsApp logs the outgoing message and returns a synthetic SID.
func (m *LogMessenger) SendWhatsApp(_ context.Context, to, body string) (string, error) {
	m.seq++
	sid := fmt.Sprintf("TEST-%04d", m.seq)
	m.logger.Info("whatsapp (test mode, not sent)",
		zap.String("to", to),
		zap.String("sid", sid),
		zap.String("body", body),
	)
	return sid, nil
}
