// Package vectorsearch provides a client for the semantic-search API.
// It issues free-text queries, optionally scoped to a landmark, and
// normalizes the upstream hits into scored passages.
package vectorsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/landmarkd/internal/retry"
)

// MaxTopK is the remote API's result cap per query.
const MaxTopK = 50

// ErrSearchUnavailable is returned when the search API cannot be reached
// after retries are exhausted.
var ErrSearchUnavailable = errors.New("vector search unavailable")

// ErrSearchRejected is returned when the search API rejects the query
// outright (a 4xx status). The upstream is healthy; the request is not.
var ErrSearchRejected = errors.New("vector search rejected the query")

// ErrEmptyQuery is returned for a blank query string.
var ErrEmptyQuery = errors.New("query must not be empty")

// Passage is one scored text excerpt returned by semantic search.
type Passage struct {
	ChunkID    string  `json:"chunk_id"`
	Text       string  `json:"text"`
	Title      string  `json:"title,omitempty"`
	Page       int     `json:"page,omitempty"`
	LandmarkID string  `json:"landmark_id,omitempty"`
	Score      float64 `json:"score"`
}

// Query describes one search request. Filters carries extra metadata
// constraints passed through to the upstream filter object.
type Query struct {
	Text       string
	LandmarkID string
	TopK       int
	MinScore   float64
	Filters    map[string]string
}

// Config configures the vector search client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Retry   retry.Config
}

// Client talks to the semantic-search API. It is stateless and safe for
// concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retryCfg   retry.Config
	logger     *zap.Logger
}

// NewClient creates a vector search client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("vector search base URL is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    trimSlash(cfg.BaseURL),
		httpClient: &http.Client{Timeout: timeout},
		retryCfg:   cfg.Retry,
		logger:     logger.Named("vectorsearch"),
	}, nil
}

type queryRequest struct {
	Query    string            `json:"query"`
	TopK     int               `json:"top_k"`
	Filters  map[string]string `json:"filters,omitempty"`
	MinScore float64           `json:"min_score,omitempty"`
}

type queryResponse struct {
	Results []queryResult `json:"results"`
}

type queryResult struct {
	ID       string          `json:"id"`
	Text     string          `json:"text"`
	Score    float64         `json:"score"`
	Metadata queryResultMeta `json:"metadata"`
}

type queryResultMeta struct {
	Title      string `json:"title"`
	Page       int    `json:"page"`
	LandmarkID string `json:"landmark_id"`
}

// Search performs one semantic search. Results are returned in the order
// the upstream provides them (descending score); malformed items are
// dropped rather than failing the call.
func (c *Client) Search(ctx context.Context, q Query) ([]Passage, error) {
	if q.Text == "" {
		return nil, ErrEmptyQuery
	}
	if q.TopK <= 0 {
		q.TopK = 10
	}
	if q.TopK > MaxTopK {
		q.TopK = MaxTopK
	}

	payload := queryRequest{
		Query:    q.Text,
		TopK:     q.TopK,
		MinScore: q.MinScore,
	}
	if q.LandmarkID != "" || len(q.Filters) > 0 {
		payload.Filters = make(map[string]string, len(q.Filters)+1)
		for k, v := range q.Filters {
			if v != "" {
				payload.Filters[k] = v
			}
		}
		if q.LandmarkID != "" {
			payload.Filters["landmark_id"] = q.LandmarkID
		}
	}

	resp, err := retry.Do(ctx, c.retryCfg, c.logger, "vector query", func(ctx context.Context) (*queryResponse, error) {
		return c.doQuery(ctx, payload)
	})
	if err != nil {
		if errors.Is(err, ErrSearchRejected) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrSearchUnavailable, err)
	}

	passages := make([]Passage, 0, len(resp.Results))
	for _, item := range resp.Results {
		if item.ID == "" || item.Text == "" {
			c.logger.Warn("dropping malformed search result",
				zap.String("id", item.ID))
			continue
		}
		passages = append(passages, Passage{
			ChunkID:    item.ID,
			Text:       item.Text,
			Title:      item.Metadata.Title,
			Page:       item.Metadata.Page,
			LandmarkID: item.Metadata.LandmarkID,
			Score:      item.Score,
		})
	}

	c.logger.Debug("vector search complete",
		zap.Int("results", len(passages)),
		zap.String("landmark_id", q.LandmarkID))

	return passages, nil
}

func (c *Client) doQuery(ctx context.Context, payload queryRequest) (*queryResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/query", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Transport failures and client timeouts are transient.
		return nil, retry.Transient(fmt.Errorf("search request failed: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, retry.Transient(fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, retry.Transient(fmt.Errorf("search API returned %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrSearchRejected, resp.StatusCode, truncate(raw, 200))
	}

	var parsed queryResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}
	return &parsed, nil
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
