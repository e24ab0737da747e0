package config

import (
	"strings"
	"time"
)

// RouterConfig configures the OpenAI-compatible chat completions endpoint
// used for intent classification.
type RouterConfig struct {
	BaseURL string `env:"BASE_URL" envDefault:"https://openrouter.ai/api/v1"`
	APIKey  string `env:"API_KEY"`
	Model   string `env:"MODEL"    envDefault:"openai/gpt-4o-mini"`

	// ContentPath and ModelPath are JMESPath expressions evaluated against the
	// provider response body.
	ContentPath string `env:"CONTENT_PATH" envDefault:"choices[0].message.content"`
	ModelPath   string `env:"MODEL_PATH"   envDefault:"model"`

	MaxTokens   int     `env:"MAX_TOKENS"  envDefault:"256"`
	Temperature float64 `env:"TEMPERATURE" envDefault:"0"`

	// Referer and Title are forwarded as OpenRouter attribution headers.
	Referer string `env:"REFERER"`
	Title   string `env:"TITLE"   envDefault:"enrichment-worker"`

	RetryCount int `env:"RETRY_COUNT" envDefault:"2"`
}

// Sanitize applies guardrails to router configuration values.
func (r *RouterConfig) Sanitize() {
	r.BaseURL = strings.TrimRight(strings.TrimSpace(r.BaseURL), "/")
	r.APIKey = strings.TrimSpace(r.APIKey)
	if r.ContentPath = strings.TrimSpace(r.ContentPath); r.ContentPath == "" {
		r.ContentPath = "choices[0].message.content"
	}
	if r.ModelPath = strings.TrimSpace(r.ModelPath); r.ModelPath == "" {
		r.ModelPath = "model"
	}
	if r.MaxTokens < 16 {
		r.MaxTokens = 16
	}
	if r.Temperature < 0 {
		r.Temperature = 0
	}
	if r.RetryCount < 0 {
		r.RetryCount = 0
	}
}

// IsConfigured reports whether classification calls can be made.
func (r *RouterConfig) IsConfigured() bool {
	return r.BaseURL != "" && r.APIKey != ""
}

// EmbedderConfig configures the Gemini embedding client.
type EmbedderConfig struct {
	APIKey     string        `env:"API_KEY"`
	Model      string        `env:"MODEL"      envDefault:"gemini-embedding-001"`
	Dimensions int32         `env:"DIMENSIONS" envDefault:"768"`
	MaxRetries int           `env:"MAX_RETRIES" envDefault:"3"`
	RetryDelay time.Duration `env:"RETRY_DELAY" envDefault:"500ms"`
}

// Sanitize applies guardrails to embedder configuration values.
func (e *EmbedderConfig) Sanitize() {
	e.APIKey = strings.TrimSpace(e.APIKey)
	if e.Model = strings.TrimSpace(e.Model); e.Model == "" {
		e.Model = "gemini-embedding-001"
	}
	if e.Dimensions < 0 {
		e.Dimensions = 0
	}
	if e.MaxRetries < 1 {
		e.MaxRetries = 1
	}
	if e.RetryDelay <= 0 {
		e.RetryDelay = 500 * time.Millisecond
	}
}

// IsConfigured reports whether embedding calls can be made.
func (e *EmbedderConfig) IsConfigured() bool {
	return e.APIKey != ""
}
