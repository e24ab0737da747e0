package config

import "time"

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// AllowedOrigin is echoed in Access-Control-Allow-Origin for the trigger endpoint.
	AllowedOrigin string `env:"HTTP_CORS_ALLOWED_ORIGIN" envDefault:"*"`

	// RequestTimeout bounds a single trigger invocation, model calls included.
	RequestTimeout time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"120s"`

	// MaxBodyBytes caps request bodies accepted by JSON endpoints.
	MaxBodyBytes int64 `env:"HTTP_MAX_BODY_BYTES" envDefault:"65536"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	if h.AllowedOrigin == "" {
		h.AllowedOrigin = "*"
	}
	if h.RequestTimeout < time.Second {
		h.RequestTimeout = time.Second
	}
	if h.MaxBodyBytes < 1024 {
		h.MaxBodyBytes = 1024
	}
}
