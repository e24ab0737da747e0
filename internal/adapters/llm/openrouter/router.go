// Package openrouter implements core.ModelRouter against an OpenAI-compatible
// chat completions endpoint such as OpenRouter.
package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	jmespath "github.com/jmespath-community/go-jmespath"
	"github.com/tidwall/gjson"

	"github.com/schoolcrm/enrichment/config"
	"github.com/schoolcrm/enrichment/internal/core"
)

const (
	completionsPath = "/chat/completions"
	// maxProviderMessage caps, in runes, a raw error body kept on StatusError.
	maxProviderMessage = 200
)

var (
	// ErrNotConfigured is returned by New when the base URL or API key is missing.
	ErrNotConfigured = errors.New("model router is not configured")
	// ErrEmptyContent is returned when the provider response has no content at ContentPath.
	ErrEmptyContent = errors.New("model router returned no content")
)

// StatusError reports a non-2xx provider response.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("model router status %d", e.StatusCode)
	}
	return fmt.Sprintf("model router status %d: %s", e.StatusCode, e.Message)
}

// HTTPStatus exposes the provider status to error classification.
func (e *StatusError) HTTPStatus() int { return e.StatusCode }

// Router is a resty client bound to one provider and default model.
type Router struct {
	client      *resty.Client
	cfg         config.RouterConfig
	contentPath jmespath.JMESPath
	modelPath   jmespath.JMESPath
	logger      *slog.Logger
}

var _ core.ModelRouter = (*Router)(nil)

// Options configures optional Router dependencies.
type Options struct {
	Logger *slog.Logger
	// HTTPClient replaces the default transport, mainly for tests.
	HTTPClient *http.Client
	// RetryWait is the initial wait between retries. Defaults to 500ms.
	RetryWait time.Duration
}

// New builds a Router. The JMESPath expressions in cfg are compiled up front so
// a bad expression fails at startup rather than on the first job.
func New(cfg config.RouterConfig, opts Options) (*Router, error) {
	cfg.Sanitize()
	if !cfg.IsConfigured() {
		return nil, ErrNotConfigured
	}
	contentPath, err := jmespath.Compile(cfg.ContentPath)
	if err != nil {
		return nil, fmt.Errorf("compile content path %q: %w", cfg.ContentPath, err)
	}
	modelPath, err := jmespath.Compile(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("compile model path %q: %w", cfg.ModelPath, err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	wait := opts.RetryWait
	if wait <= 0 {
		wait = 500 * time.Millisecond
	}

	var client *resty.Client
	if opts.HTTPClient != nil {
		client = resty.NewWithClient(opts.HTTPClient)
	} else {
		client = resty.New()
	}
	client.
		SetBaseURL(cfg.BaseURL).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(wait).
		SetRetryMaxWaitTime(10 * wait).
		AddRetryCondition(retryable)
	if cfg.Referer != "" {
		client.SetHeader("HTTP-Referer", cfg.Referer)
	}
	if cfg.Title != "" {
		client.SetHeader("X-Title", cfg.Title)
	}

	return &Router{
		client:      client,
		cfg:         cfg,
		contentPath: contentPath,
		modelPath:   modelPath,
		logger:      logger.With("component", "model_router"),
	}, nil
}

type completionRequest struct {
	Model       string             `json:"model"`
	Messages    []core.ChatMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens,omitempty"`
	Temperature float64            `json:"temperature"`
}

// Classify sends req as one chat completion and returns the raw content.
func (r *Router) Classify(ctx context.Context, req core.ClassifyRequest) (*core.ClassifyResponse, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("classify request has no messages")
	}
	maxTokens := r.cfg.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(completionRequest{
			Model:       r.cfg.Model,
			Messages:    req.Messages,
			MaxTokens:   maxTokens,
			Temperature: r.cfg.Temperature,
		}).
		Post(completionsPath)
	if err != nil {
		return nil, fmt.Errorf("classify %s: %w", req.Task, err)
	}
	if resp.IsError() {
		return nil, &StatusError{
			StatusCode: resp.StatusCode(),
			Message:    providerMessage(resp.Body()),
		}
	}

	content, model, err := r.extract(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("classify %s: %w", req.Task, err)
	}
	r.logger.DebugContext(ctx, "classification received",
		"task", req.Task,
		"model", model,
		"latency", resp.Time(),
	)
	return &core.ClassifyResponse{Content: content, Model: model}, nil
}

func (r *Router) extract(body []byte) (string, string, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", "", fmt.Errorf("decode response: %w", err)
	}

	rawContent, err := r.contentPath.Search(doc)
	if err != nil {
		return "", "", fmt.Errorf("evaluate content path: %w", err)
	}
	content, _ := rawContent.(string)
	if strings.TrimSpace(content) == "" {
		return "", "", ErrEmptyContent
	}

	model := r.cfg.Model
	if rawModel, err := r.modelPath.Search(doc); err == nil {
		if s, ok := rawModel.(string); ok && s != "" {
			model = s
		}
	}
	return content, model, nil
}

// providerMessage pulls the provider's error message out of an error body.
func providerMessage(body []byte) string {
	for _, path := range []string{"error.message", "error", "message"} {
		if v := gjson.GetBytes(body, path); v.Exists() && v.Type == gjson.String {
			return v.String()
		}
	}
	msg := []rune(strings.TrimSpace(string(body)))
	if len(msg) > maxProviderMessage {
		msg = msg[:maxProviderMessage]
	}
	return string(msg)
}

func retryable(resp *resty.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	if resp == nil {
		return false
	}
	code := resp.StatusCode()
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
