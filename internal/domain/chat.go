package domain

// ============================================================
// Chat — request/response between the caller and this service
// ============================================================

// ChatRequest is the body of POST /v1/chat.
type ChatRequest struct {
	Query          string `json:"query"`
	ConversationID string `json:"conversationId,omitempty"`
}

// ChatResponse carries the generated answer back to the caller.
type ChatResponse struct {
	ConversationID string `json:"conversationId"`
	Answer         string `json:"answer"`
}

// ============================================================
// Chat — types exchanged with the LLM provider
// ============================================================

// ChatMessage is one turn of a conversation, in the provider's
// chat-completions shape.
type ChatMessage struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// ChatCompletion is the provider's reply plus token accounting.
type ChatCompletion struct {
	Answer           string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// ChatMetrics is the snapshot served by GET /v1/metrics/chat.
type ChatMetrics struct {
	TotalRequests       int64   `json:"total_requests"`
	ErrorRate           float64 `json:"error_rate"`
	AvgTokensPerRequest float64 `json:"avg_tokens_per_request"`
	EstimatedCostUSD    float64 `json:"estimated_cost_usd"`
	CacheHitRate        float64 `json:"cache_hit_rate"`
	Period              string  `json:"period"`
}
