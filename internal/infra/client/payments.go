package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/attribute"

	"github.com/mfcastro/cobranca-assistant-go/internal/domain"
	"github.com/mfcastro/cobranca-assistant-go/internal/infra/resilience"
)

// PaymentsClient fetches the settled-installment set from the payments API.
type PaymentsClient struct {
	httpClient *http.Client
	baseURL    string
	contractID string
	guard      *resilience.Guard
	cfg        resilience.Config
}

// NewPaymentsClient creates a PaymentsClient for one contract.
func NewPaymentsClient(httpClient *http.Client, baseURL, contractID string, cfg resilience.Config) *PaymentsClient {
	return &PaymentsClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		contractID: contractID,
		guard:      resilience.NewGuard("payments", cfg.MaxConcurrency),
		cfg:        cfg,
	}
}

// PaidInstallments returns the settled installment indexes for the contract.
func (c *PaymentsClient) PaidInstallments(ctx context.Context) (map[int]bool, error) {
	ctx, span := tracer.Start(ctx, "PaymentsClient.PaidInstallments")
	defer span.End()
	span.SetAttributes(attribute.String("contract.id", c.contractID))

	var paid map[int]bool
	err := c.guard.Do(ctx, func() error {
		return resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			url := fmt.Sprintf("%s/v1/contracts/%s/payments", c.baseURL, c.contractID)
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return err
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusNotFound {
				return &domain.ErrNotFound{Resource: "contract", ID: c.contractID}
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("payments API returned status %d", resp.StatusCode)
			}

			var payload struct {
				Paid []int `json:"paid"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
				return err
			}

			paid = make(map[int]bool, len(payload.Paid))
			for _, idx := range payload.Paid {
				paid[idx] = true
			}
			return nil
		})
	})

	if err != nil {
		var open *domain.ErrCircuitOpen
		if errors.As(err, &open) {
			return nil, err
		}
		return nil, &domain.ErrExternalService{Service: "payments", Err: err}
	}
	return paid, nil
}

// StaticLedger is an env-seeded ledger for deployments without a payments
// API: the paid set is fixed at startup.
type StaticLedger struct {
	paid map[int]bool
}

// NewStaticLedger creates a StaticLedger marking the given indexes as paid.
func NewStaticLedger(indexes []int) *StaticLedger {
	paid := make(map[int]bool, len(indexes))
	for _, idx := range indexes {
		paid[idx] = true
	}
	return &StaticLedger{paid: paid}
}

// PaidInstallments returns a copy of the fixed paid set.
func (l *StaticLedger) PaidInstallments(context.Context) (map[int]bool, error) {
	out := make(map[int]bool, len(l.paid))
	for k, v := range l.paid {
		out[k] = v
	}
	return out, nil
}
