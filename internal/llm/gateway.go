package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// ErrQuotaExceeded is returned when a user has used up their per-minute
// LLM call budget.
var ErrQuotaExceeded = fmt.Errorf("llm: per-user quota exceeded")

// Completion is the gateway's uniform result.
type Completion struct {
	Text       string  `json:"text"`
	TokensUsed int     `json:"tokens_used"`
	Model      string  `json:"model"`
	LatencyS   float64 `json:"latency_s"`
}

// Client is a text-in/text-out completion backend.
type Client interface {
	Complete(ctx context.Context, prompt string) (Completion, error)
}

// ContextPack is the compact context sent with every prompt: only the
// user's card identities and the resolved merchant/category, never full
// catalog rows.
type ContextPack struct {
	Cards    []CardSummary
	Merchant string
	Category string
}

// CardSummary is the minimal card identity shared with the model.
type CardSummary struct {
	Bank string
	Name string
	Tier string
}

// OpenAIClient talks to an OpenAI-compatible chat completions endpoint.
type OpenAIClient struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Model string `json:"model"`
}

type chatError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// NewOpenAIClient creates a chat completions client.
func NewOpenAIClient(baseURL, apiKey, model string) *OpenAIClient {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAIClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{},
	}
}

// Complete sends one prompt and returns the first choice.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (Completion, error) {
	start := time.Now()

	body, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return Completion{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Completion{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return Completion{}, fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Completion{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr chatError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error.Message != "" {
			return Completion{}, fmt.Errorf("completion failed (%d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return Completion{}, fmt.Errorf("completion failed with status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return Completion{}, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return Completion{}, fmt.Errorf("no choices returned")
	}

	model := parsed.Model
	if model == "" {
		model = c.model
	}

	return Completion{
		Text:       strings.TrimSpace(parsed.Choices[0].Message.Content),
		TokensUsed: parsed.Usage.TotalTokens,
		Model:      model,
		LatencyS:   time.Since(start).Seconds(),
	}, nil
}

// userBucket is a fixed-window call counter for one user.
type userBucket struct {
	remaining   int
	windowStart time.Time
}

// Quota enforces a per-user calls-per-minute budget.
type Quota struct {
	callsPerMinute int

	mu      sync.Mutex
	buckets map[string]*userBucket
}

// NewQuota creates a per-user quota of callsPerMinute.
func NewQuota(callsPerMinute int) *Quota {
	return &Quota{
		callsPerMinute: callsPerMinute,
		buckets:        make(map[string]*userBucket),
	}
}

// Allow consumes one call from the user's budget if available.
func (q *Quota) Allow(userID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	b, ok := q.buckets[userID]
	if !ok || now.Sub(b.windowStart) >= time.Minute {
		b = &userBucket{remaining: q.callsPerMinute, windowStart: now}
		q.buckets[userID] = b
	}

	if b.remaining <= 0 {
		return false
	}
	b.remaining--
	return true
}

// Gateway is the last-resort answer path. It must only be reached when
// the classifier declined and the cache missed; the pipeline owns that
// ordering.
type Gateway struct {
	client Client
	quota  *Quota
}

// NewGateway wires a completion client with a per-user quota.
func NewGateway(client Client, quota *Quota) *Gateway {
	return &Gateway{client: client, quota: quota}
}

// Complete checks the user's quota, builds a compact prompt from the
// context pack, and calls the backend.
func (g *Gateway) Complete(ctx context.Context, userID, question string, pack ContextPack) (Completion, error) {
	if !g.quota.Allow(userID) {
		return Completion{}, ErrQuotaExceeded
	}

	return g.client.Complete(ctx, BuildPrompt(question, pack))
}

// BuildPrompt renders the question with the compact context pack.
func BuildPrompt(question string, pack ContextPack) string {
	var b strings.Builder
	b.WriteString("You are a credit card advisor. Answer briefly and concretely.\n\n")

	if len(pack.Cards) > 0 {
		b.WriteString("The user holds these cards:\n")
		for _, card := range pack.Cards {
			fmt.Fprintf(&b, "- %s %s (%s)\n", card.Bank, card.Name, card.Tier)
		}
		b.WriteString("\n")
	} else {
		b.WriteString("The user has not added any cards.\n\n")
	}

	if pack.Merchant != "" {
		fmt.Fprintf(&b, "Merchant in question: %s\n", pack.Merchant)
	}
	if pack.Category != "" {
		fmt.Fprintf(&b, "Spending category: %s\n", pack.Category)
	}

	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	return b.String()
}
