package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/attribute"

	"github.com/mfcastro/cobranca-assistant-go/internal/domain"
	"github.com/mfcastro/cobranca-assistant-go/internal/infra/resilience"
)

// GroqClient calls Groq's OpenAI-compatible chat completions endpoint.
type GroqClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	guard      *resilience.Guard
	cfg        resilience.Config
}

// NewGroqClient creates a GroqClient. baseURL is overridable for tests; pass
// "https://api.groq.com/openai" in production.
func NewGroqClient(httpClient *http.Client, baseURL, apiKey, model string, cfg resilience.Config) *GroqClient {
	return &GroqClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		guard:      resilience.NewGuard("groq", cfg.MaxConcurrency),
		cfg:        cfg,
	}
}

type groqRequest struct {
	Model       string               `json:"model"`
	Messages    []domain.ChatMessage `json:"messages"`
	Temperature float64              `json:"temperature"`
	MaxTokens   int                  `json:"max_tokens"`
}

type groqResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message domain.ChatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Complete sends the conversation to Groq and returns the assistant's answer
// with token accounting.
func (c *GroqClient) Complete(ctx context.Context, messages []domain.ChatMessage) (*domain.ChatCompletion, error) {
	ctx, span := tracer.Start(ctx, "GroqClient.Complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", c.model),
		attribute.Int("llm.messages", len(messages)),
	)

	var completion *domain.ChatCompletion
	err := c.guard.Do(ctx, func() error {
		return resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			payload, err := json.Marshal(groqRequest{
				Model:       c.model,
				Messages:    messages,
				Temperature: 0.3,
				MaxTokens:   512,
			})
			if err != nil {
				return err
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodPost,
				c.baseURL+"/v1/chat/completions", bytes.NewReader(payload))
			if err != nil {
				return err
			}
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
			req.Header.Set("Content-Type", "application/json")

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("groq returned status %d", resp.StatusCode)
			}

			var out groqResponse
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				return err
			}
			if len(out.Choices) == 0 {
				return fmt.Errorf("groq returned no choices")
			}

			completion = &domain.ChatCompletion{
				Answer:           out.Choices[0].Message.Content,
				Model:            out.Model,
				PromptTokens:     out.Usage.PromptTokens,
				CompletionTokens: out.Usage.CompletionTokens,
			}
			return nil
		})
	})

	if err != nil {
		var open *domain.ErrCircuitOpen
		if errors.As(err, &open) {
			return nil, err
		}
		return nil, &domain.ErrExternalService{Service: "groq", Err: err}
	}
	return completion, nil
}
