// Package gemini implements core.Embedder with the Gemini embedding API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"google.golang.org/genai"

	"github.com/schoolcrm/enrichment/config"
	"github.com/schoolcrm/enrichment/internal/core"
)

// maxInputRunes bounds the text sent for one embedding.
const maxInputRunes = 10000

// ErrNotConfigured is returned by New when no API key is set.
var ErrNotConfigured = errors.New("embedder is not configured")

type embedContentFunc func(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	config *genai.EmbedContentConfig,
) (*genai.EmbedContentResponse, error)

// Embedder calls Models.EmbedContent with retry and exponential backoff.
type Embedder struct {
	embed      embedContentFunc
	model      string
	dimensions int32
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	logger     *slog.Logger
}

var _ core.Embedder = (*Embedder)(nil)

// New creates a Gemini API client and wraps it in an Embedder.
func New(ctx context.Context, cfg config.EmbedderConfig, logger *slog.Logger) (*Embedder, error) {
	cfg.Sanitize()
	if !cfg.IsConfigured() {
		return nil, ErrNotConfigured
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newEmbedder(client.Models.EmbedContent, cfg, logger), nil
}

func newEmbedder(fn embedContentFunc, cfg config.EmbedderConfig, logger *slog.Logger) *Embedder {
	cfg.Sanitize()
	if logger == nil {
		logger = slog.Default()
	}
	return &Embedder{
		embed:      fn,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.RetryDelay,
		maxDelay:   30 * time.Second,
		logger:     logger.With("component", "embedder", "model", cfg.Model),
	}
}

// Model returns the embedding model name.
func (e *Embedder) Model() string { return e.model }

// Embed returns the embedding of text. Retryable API errors are retried up to
// maxRetries times; the caller's context bounds the whole operation.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("text for embedding cannot be empty")
	}
	if utf8.RuneCountInString(text) > maxInputRunes {
		text = string([]rune(text)[:maxInputRunes])
	}

	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	var embedCfg *genai.EmbedContentConfig
	if e.dimensions > 0 {
		embedCfg = &genai.EmbedContentConfig{OutputDimensionality: genai.Ptr(e.dimensions)}
	}

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			delay := e.backoff(attempt)
			e.logger.DebugContext(ctx, "retrying embedding", "attempt", attempt, "delay", delay, "error", lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, fmt.Errorf("embed retry: %w", ctx.Err())
			}
		}

		resp, err := e.embed(ctx, e.model, contents, embedCfg)
		if err == nil {
			return vectorFrom(resp)
		}
		lastErr = err
		if !isRetryable(err) {
			return nil, fmt.Errorf("embed content: %w", err)
		}
	}
	return nil, fmt.Errorf("embed content: max retries (%d) exceeded: %w", e.maxRetries, lastErr)
}

func (e *Embedder) backoff(attempt int) time.Duration {
	delay := e.baseDelay << (attempt - 1)
	if delay <= 0 || delay > e.maxDelay {
		delay = e.maxDelay
	}
	return delay
}

func vectorFrom(resp *genai.EmbedContentResponse) ([]float32, error) {
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, errors.New("no embeddings returned")
	}
	values := resp.Embeddings[0].Values
	if len(values) == 0 {
		return nil, errors.New("embedding vector is empty")
	}
	for i, v := range values {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, fmt.Errorf("invalid embedding value at index %d: %v", i, v)
		}
	}
	return values, nil
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.Code)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return retryableStatus(apiErrPtr.Code)
	}

	msg := err.Error()
	for _, s := range []string{"connection refused", "connection reset", "timeout", "temporary failure", "EOF"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
