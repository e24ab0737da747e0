package openrouter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolcrm/enrichment/config"
	"github.com/schoolcrm/enrichment/internal/core"
)

func testConfig(baseURL string) config.RouterConfig {
	return config.RouterConfig{
		BaseURL:     baseURL,
		APIKey:      "test-key",
		Model:       "openai/gpt-4o-mini",
		ContentPath: "choices[0].message.content",
		ModelPath:   "model",
		MaxTokens:   256,
		Title:       "enrichment-worker",
		RetryCount:  2,
	}
}

func classifyRequest() core.ClassifyRequest {
	return core.ClassifyRequest{
		Task: "intent_classification",
		Messages: []core.ChatMessage{
			{Role: "system", Content: "classify"},
			{Role: "user", Content: "i want to book a trial lesson"},
		},
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(config.RouterConfig{BaseURL: "http://x"}, Options{})
	require.ErrorIs(t, err, ErrNotConfigured)

	cfg := testConfig("http://x")
	cfg.ContentPath = "choices[0"
	_, err = New(cfg, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compile content path")
}

func TestRouter_Classify(t *testing.T) {
	var got struct {
		Model     string             `json:"model"`
		Messages  []core.ChatMessage `json:"messages"`
		MaxTokens int                `json:"max_tokens"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, completionsPath, r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "enrichment-worker", r.Header.Get("X-Title"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"model": "openai/gpt-4o-mini-2024-07-18",
			"choices": [{"message": {"role": "assistant", "content": "{\"intent\":\"book_trial\",\"stage\":\"lead\"}"}}]
		}`))
	}))
	defer srv.Close()

	r, err := New(testConfig(srv.URL), Options{})
	require.NoError(t, err)

	req := classifyRequest()
	req.MaxTokens = 64
	resp, err := r.Classify(context.Background(), req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"intent":"book_trial","stage":"lead"}`, resp.Content)
	assert.Equal(t, "openai/gpt-4o-mini-2024-07-18", resp.Model)

	assert.Equal(t, "openai/gpt-4o-mini", got.Model)
	assert.Equal(t, 64, got.MaxTokens)
	assert.Len(t, got.Messages, 2)
}

func TestRouter_Classify_CustomPaths(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"output": {"text": "[]"}}`))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.ContentPath = "output.text"
	cfg.ModelPath = "meta.model"
	r, err := New(cfg, Options{})
	require.NoError(t, err)

	require.NotNil(t, r.contentPath)

	resp, err := r.Classify(context.Background(), classifyRequest())
	require.NoError(t, err)
	assert.Equal(t, "[]", resp.Content)
	// Falls back to the configured model when the response does not name one.
	assert.Equal(t, "openai/gpt-4o-mini", resp.Model)
}

func TestRouter_Classify_Errors(t *testing.T) {
	t.Run("retries server errors then succeeds", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{}"}}]}`))
		}))
		defer srv.Close()

		r, err := New(testConfig(srv.URL), Options{RetryWait: time.Millisecond})
		require.NoError(t, err)

		resp, err := r.Classify(context.Background(), classifyRequest())
		require.NoError(t, err)
		assert.Equal(t, "{}", resp.Content)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("client errors are not retried", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"No auth credentials found","code":401}}`))
		}))
		defer srv.Close()

		r, err := New(testConfig(srv.URL), Options{RetryWait: time.Millisecond})
		require.NoError(t, err)

		_, err = r.Classify(context.Background(), classifyRequest())
		var se *StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
		assert.Equal(t, "No auth credentials found", se.Message)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("missing content", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[]}`))
		}))
		defer srv.Close()

		r, err := New(testConfig(srv.URL), Options{})
		require.NoError(t, err)

		_, err = r.Classify(context.Background(), classifyRequest())
		require.ErrorIs(t, err, ErrEmptyContent)
	})

	t.Run("no messages", func(t *testing.T) {
		r, err := New(testConfig("http://127.0.0.1:1"), Options{})
		require.NoError(t, err)
		_, err = r.Classify(context.Background(), core.ClassifyRequest{Task: "intent_classification"})
		require.Error(t, err)
	})
}

func TestProviderMessage(t *testing.T) {
	assert.Equal(t, "rate limited", providerMessage([]byte(`{"error":{"message":"rate limited"}}`)))
	assert.Equal(t, "bad model", providerMessage([]byte(`{"error":"bad model"}`)))
	assert.Equal(t, "upstream down", providerMessage([]byte(`upstream down`)))

	// Long plain bodies are cut on a rune boundary.
	long := providerMessage([]byte(strings.Repeat("é", 300)))
	assert.True(t, utf8.ValidString(long))
	assert.Equal(t, maxProviderMessage, utf8.RuneCountInString(long))
}
