// Package landmark provides a client for the structured landmark metadata
// API. Upstream field naming is inconsistent, so responses pass through an
// ordered alias table before anything else sees them.
package landmark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/landmarkd/internal/retry"
)

var (
	// ErrLandmarkNotFound is returned when the API has no record for the id.
	ErrLandmarkNotFound = errors.New("landmark not found")

	// ErrMetadataUnavailable is returned for transport or server failures
	// after retries are exhausted.
	ErrMetadataUnavailable = errors.New("landmark metadata unavailable")
)

const (
	defaultCacheTTL   = 5 * time.Minute
	defaultCacheSweep = 10 * time.Minute
)

// Config configures the metadata client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Retry   retry.Config
}

// Client talks to the landmark metadata API. Lookups by id go through a
// short-lived read cache since a single research request can fetch the
// same landmark several times.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retryCfg   retry.Config
	cache      *gocache.Cache
	logger     *zap.Logger
}

// NewClient creates a metadata client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("metadata base URL is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    trimSlash(cfg.BaseURL),
		httpClient: &http.Client{Timeout: timeout},
		retryCfg:   cfg.Retry,
		cache:      gocache.New(defaultCacheTTL, defaultCacheSweep),
		logger:     logger.Named("landmark"),
	}, nil
}

// GetLandmark fetches one landmark by its LPC id (e.g. "LP-00073").
func (c *Client) GetLandmark(ctx context.Context, id string) (*Record, error) {
	if id == "" {
		return nil, fmt.Errorf("landmark id is required")
	}

	if cached, found := c.cache.Get(id); found {
		rec := cached.(Record)
		return &rec, nil
	}

	raw, err := retry.Do(ctx, c.retryCfg, c.logger, "metadata get", func(ctx context.Context) (map[string]any, error) {
		return c.getJSON(ctx, c.baseURL+"/api/LPCReport/"+url.PathEscape(id), nil)
	})
	if err != nil {
		if errors.Is(err, ErrLandmarkNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrLandmarkNotFound, id)
		}
		return nil, fmt.Errorf("%w: %v", ErrMetadataUnavailable, err)
	}

	rec, ok := normalizeRecord(raw)
	if !ok {
		return nil, fmt.Errorf("%w: record for %s has no recognizable identity", ErrMetadataUnavailable, id)
	}

	c.cache.Set(id, rec, gocache.DefaultExpiration)
	return &rec, nil
}

// Search queries landmarks matching the filters. Malformed result items
// are dropped rather than failing the call.
func (c *Client) Search(ctx context.Context, f Filters) ([]Record, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(max(f.Page, 1)))
	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = 10
	}
	params.Set("limit", strconv.Itoa(pageSize))
	if f.Text != "" {
		params.Set("SearchText", f.Text)
	}
	if f.Borough != "" {
		params.Set("Borough", f.Borough)
	}
	if f.Neighborhood != "" {
		params.Set("Neighborhood", f.Neighborhood)
	}
	if f.Style != "" {
		params.Set("ParentStyleList", f.Style)
	}

	raw, err := retry.Do(ctx, c.retryCfg, c.logger, "metadata search", func(ctx context.Context) (map[string]any, error) {
		return c.getJSON(ctx, c.baseURL+"/api/LPCReports", params)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMetadataUnavailable, err)
	}

	items, _ := raw["results"].([]any)
	records := make([]Record, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		rec, ok := normalizeRecord(m)
		if !ok {
			c.logger.Warn("dropping search result without identity")
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Photos fetches the photo archive entries for a landmark. An empty list
// is not an error.
func (c *Client) Photos(ctx context.Context, id string) ([]Photo, error) {
	if id == "" {
		return nil, fmt.Errorf("landmark id is required")
	}

	params := url.Values{}
	params.Set("LpcId", id)
	params.Set("limit", "50")
	params.Set("page", "1")

	raw, err := retry.Do(ctx, c.retryCfg, c.logger, "metadata photos", func(ctx context.Context) (map[string]any, error) {
		return c.getJSON(ctx, c.baseURL+"/api/LpcPhotoArchive", params)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMetadataUnavailable, err)
	}

	items, _ := raw["results"].([]any)
	photos := make([]Photo, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		p := Photo{}
		if u, ok := m["url"].(string); ok {
			p.URL = u
		}
		if p.URL == "" {
			continue
		}
		if s, ok := m["description"].(string); ok {
			p.Caption = s
		}
		if y, ok := m["year"].(float64); ok {
			p.Year = int(y)
		}
		if s, ok := m["source"].(string); ok {
			p.Source = s
		}
		if b, ok := m["isHistorical"].(bool); ok {
			p.Historical = b
		}
		photos = append(photos, p)
	}
	return photos, nil
}

// getJSON performs one GET and decodes the body. A 404 is permanent and
// maps to ErrLandmarkNotFound; 429 and 5xx are transient.
func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values) (map[string]any, error) {
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, retry.Transient(fmt.Errorf("metadata request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, retry.Transient(fmt.Errorf("failed to read response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrLandmarkNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, retry.Transient(fmt.Errorf("metadata API returned %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("metadata API returned %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse metadata response: %w", err)
	}
	return parsed, nil
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
