package vectorsearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/landmarkd/internal/retry"
)

// fastRetry keeps test backoff negligible.
func fastRetry() retry.Config {
	return retry.Config{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	client, err := NewClient(Config{
		BaseURL: serverURL,
		Timeout: 5 * time.Second,
		Retry:   fastRetry(),
	}, zap.NewNop())
	require.NoError(t, err)
	return client
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{}, zap.NewNop())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "base URL")
}

func TestSearch_EmptyQuery(t *testing.T) {
	client := newTestClient(t, "http://localhost:1")
	_, err := client.Search(context.Background(), Query{})
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestSearch_RequestShape(t *testing.T) {
	var captured queryRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/query", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(queryResponse{})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.Search(context.Background(), Query{
		Text:       "cast iron facades",
		LandmarkID: "LP-00123",
		TopK:       7,
		MinScore:   0.6,
	})
	require.NoError(t, err)

	assert.Equal(t, "cast iron facades", captured.Query)
	assert.Equal(t, 7, captured.TopK)
	assert.Equal(t, 0.6, captured.MinScore)
	assert.Equal(t, map[string]string{"landmark_id": "LP-00123"}, captured.Filters)
}

func TestSearch_MergesMetadataFilters(t *testing.T) {
	var captured queryRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(queryResponse{})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.Search(context.Background(), Query{
		Text:       "cast iron facades",
		LandmarkID: "LP-00123",
		Filters:    map[string]string{"borough": "Manhattan", "style": ""},
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"landmark_id": "LP-00123",
		"borough":     "Manhattan",
	}, captured.Filters, "empty filter values should be dropped, landmark id merged in")
}

func TestSearch_TopKBounds(t *testing.T) {
	var captured queryRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(queryResponse{})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	_, err := client.Search(context.Background(), Query{Text: "q"})
	require.NoError(t, err)
	assert.Equal(t, 10, captured.TopK, "zero top_k should default to 10")

	_, err = client.Search(context.Background(), Query{Text: "q", TopK: 500})
	require.NoError(t, err)
	assert.Equal(t, MaxTopK, captured.TopK, "top_k should be capped at the API limit")
}

func TestSearch_DropsMalformedResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(queryResponse{Results: []queryResult{
			{ID: "chunk-1", Text: "The Flatiron Building was completed in 1902.", Score: 0.91,
				Metadata: queryResultMeta{Title: "Designation Report", Page: 3, LandmarkID: "LP-00073"}},
			{ID: "", Text: "missing id", Score: 0.88},
			{ID: "chunk-3", Text: "", Score: 0.85},
			{ID: "chunk-4", Text: "Its steel frame drew crowds during construction.", Score: 0.80},
		}})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	passages, err := client.Search(context.Background(), Query{Text: "flatiron"})
	require.NoError(t, err)

	require.Len(t, passages, 2, "results without id or text should be dropped")
	assert.Equal(t, "chunk-1", passages[0].ChunkID)
	assert.Equal(t, "Designation Report", passages[0].Title)
	assert.Equal(t, 3, passages[0].Page)
	assert.Equal(t, "LP-00073", passages[0].LandmarkID)
	assert.Equal(t, 0.91, passages[0].Score)
	assert.Equal(t, "chunk-4", passages[1].ChunkID)
}

func TestSearch_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(queryResponse{Results: []queryResult{
			{ID: "chunk-1", Text: "text", Score: 0.7},
		}})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	passages, err := client.Search(context.Background(), Query{Text: "q"})
	require.NoError(t, err)
	assert.Len(t, passages, 1)
	assert.Equal(t, int32(3), calls.Load(), "should retry twice before succeeding")
}

func TestSearch_UnavailableAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.Search(context.Background(), Query{Text: "q"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSearchUnavailable)
	assert.Equal(t, int32(3), calls.Load(), "should exhaust the attempt cap")
}

func TestSearch_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad filter"}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.Search(context.Background(), Query{Text: "q"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSearchRejected, "a 4xx is a rejection, not unavailability")
	assert.NotErrorIs(t, err, ErrSearchUnavailable)
	assert.Equal(t, int32(1), calls.Load(), "4xx responses should not be retried")
}
