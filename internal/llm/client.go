// Package llm provides the hosted-model client used to synthesize
// research reports. It speaks the Azure OpenAI chat-completions wire
// format and enforces an approximate input token budget before any
// request goes out.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/landmarkd/internal/config"
	"github.com/fyrsmithlabs/landmarkd/internal/retry"
)

// ErrGenerationFailed is returned when report generation fails after
// retries exhaust or the upstream rejects the content. It is never
// swapped for placeholder text.
var ErrGenerationFailed = errors.New("report generation failed")

const (
	defaultRateLimit = 2 // requests per second
	defaultBurst     = 4
	temperature      = 0.5
)

// Config configures the LLM client.
type Config struct {
	Endpoint    string
	APIKey      config.Secret
	Deployment  string
	APIVersion  string
	Timeout     time.Duration
	MaxTokens   int
	InputBudget int
	Retry       retry.Config
}

// Client calls the hosted model. Stateless and safe for concurrent use.
type Client struct {
	endpoint    string
	apiKey      config.Secret
	deployment  string
	apiVersion  string
	maxTokens   int
	inputBudget int
	httpClient  *http.Client
	limiter     *rate.Limiter
	retryCfg    retry.Config
	logger      *zap.Logger
}

// NewClient creates an LLM client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("llm endpoint is required")
	}
	if !cfg.APIKey.IsSet() {
		return nil, fmt.Errorf("llm api key is required")
	}
	if cfg.Deployment == "" {
		cfg.Deployment = "gpt-4"
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2023-05-15"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2000
	}
	if cfg.InputBudget == 0 {
		cfg.InputBudget = DefaultInputBudget
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		endpoint:    trimSlash(cfg.Endpoint),
		apiKey:      cfg.APIKey,
		deployment:  cfg.Deployment,
		apiVersion:  cfg.APIVersion,
		maxTokens:   cfg.MaxTokens,
		inputBudget: cfg.InputBudget,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		limiter:     rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
		retryCfg:    cfg.Retry,
		logger:      logger.Named("llm"),
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type chatError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// GenerateReport assembles the prompt from in, trims it to the input
// budget, and returns the generated report text.
func (c *Client) GenerateReport(ctx context.Context, in PromptInput) (string, error) {
	prompt := BuildPrompt(in, c.inputBudget)

	if prompt.PassagesKept < len(in.Passages) || prompt.TurnsKept < len(in.History) {
		c.logger.Debug("trimmed prompt to input budget",
			zap.Int("passages_kept", prompt.PassagesKept),
			zap.Int("passages_supplied", len(in.Passages)),
			zap.Int("turns_kept", prompt.TurnsKept),
			zap.Int("turns_supplied", len(in.History)))
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	req := chatRequest{
		Messages: []chatMessage{
			{Role: "system", Content: prompt.System},
			{Role: "user", Content: prompt.User},
		},
		MaxTokens:   c.maxTokens,
		Temperature: temperature,
	}

	text, err := retry.Do(ctx, c.retryCfg, c.logger, "chat completion", func(ctx context.Context) (string, error) {
		return c.doRequest(ctx, req)
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	return text, nil
}

func (c *Client) doRequest(ctx context.Context, req chatRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		c.endpoint, url.PathEscape(c.deployment), url.QueryEscape(c.apiVersion))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api-key", c.apiKey.Value())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", retry.Transient(fmt.Errorf("chat request failed: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", retry.Transient(fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", retry.Transient(fmt.Errorf("model API returned %d", resp.StatusCode))
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr chatError
		if jsonErr := json.Unmarshal(raw, &apiErr); jsonErr == nil && apiErr.Error.Code != "" {
			// Content-policy rejections are permanent; surface them
			// rather than retrying.
			return "", fmt.Errorf("model API error %s: %s", apiErr.Error.Code, apiErr.Error.Message)
		}
		return "", fmt.Errorf("model API returned %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty response from model")
	}
	choice := parsed.Choices[0]
	if choice.FinishReason == "content_filter" {
		return "", fmt.Errorf("response blocked by content filter")
	}
	if choice.Message.Content == "" {
		return "", fmt.Errorf("model returned empty content")
	}
	return choice.Message.Content, nil
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}
