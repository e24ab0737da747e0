package config

import (
	"os"
	"strings"
)

// AppConfig is the whole process configuration, read from the environment
// by caarlos0/env. Each group lives in its own file with its defaults and a
// Sanitize method.
type AppConfig struct {
	// IsDev enables development behaviour such as text logs in the admin CLI.
	// Set DEV=true or APP_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// Database configuration
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`
	Cache    CacheConfig `envPrefix:"CACHE_"`

	// HTTP server configuration
	HTTP HTTPConfig

	// Service mode configuration
	Services string `env:"SERVICES" envDefault:"http"`

	// Worker configuration (orchestrator runs triggered by cron)
	Worker WorkerConfig `envPrefix:"WORKER_"`

	// Reaper configuration
	Reaper ReaperConfig `envPrefix:"REAPER_"`

	// Model providers
	Router   RouterConfig   `envPrefix:"ROUTER_"`
	Embedder EmbedderConfig `envPrefix:"EMBEDDER_"`

	// Observability configuration
	Observability ObservabilityConfig
}

// Sanitize clamps every group to safe ranges. Call it once after parsing.
func (c *AppConfig) Sanitize() {
	c.HTTP.Sanitize()
	c.Redis.Sanitize()
	c.Cache.Sanitize()
	c.Worker.Sanitize()
	c.Reaper.Sanitize()
	c.Router.Sanitize()
	c.Embedder.Sanitize()
	c.Observability.Sanitize()

	c.detectDevMode()
}

// detectDevMode falls back to APP_ENV when DEV is unset.
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		appEnv := strings.ToLower(os.Getenv("APP_ENV"))
		c.IsDev = appEnv == "development" || appEnv == "dev"
	}
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

func (c *AppConfig) IsHTTPServerEnabled() bool { return c.Enabled(ServiceModeHTTP) }
func (c *AppConfig) IsWorkerEnabled() bool     { return c.Enabled(ServiceModeWorker) }
func (c *AppConfig) IsReaperEnabled() bool     { return c.Enabled(ServiceModeReaper) }

// Enabled reports whether SERVICES parses and includes mode.
func (c *AppConfig) Enabled(mode ServiceMode) bool {
	services, err := c.GetEnabledServices()
	return err == nil && services[mode]
}
