package bootstrap

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/schoolcrm/enrichment/config"
	schedrunner "github.com/schoolcrm/enrichment/internal/adapters/scheduler"
	"github.com/schoolcrm/enrichment/internal/domain/job"
)

var logLevel = new(slog.LevelVar)

// InitLogger initializes the structured logger at info level.
// SetLogLevel adjusts it once configuration is loaded.
func InitLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// SetLogLevel changes the level of loggers created by InitLogger. It accepts
// slog level names such as "debug" or "warn+2"; anything else means info.
func SetLogLevel(level string) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	logLevel.Set(l)
}

// LoadConfig reads .env when present, then the process environment.
func LoadConfig() (config.AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return config.AppConfig{}, fmt.Errorf("load .env file: %w", err)
	}
	return loadConfig(env.Options{})
}

func loadConfig(opts env.Options) (config.AppConfig, error) {
	cfg, err := env.ParseAsWithOptions[config.AppConfig](opts)
	if err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	cfg.Sanitize()
	return cfg, nil
}

// ValidateServiceConfig checks that at least one service is enabled and that
// the enabled services have what they need to start.
func ValidateServiceConfig(cfg *config.AppConfig) error {
	if cfg == nil {
		return errors.New("service config is required")
	}
	services, err := cfg.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("invalid service configuration: %w", err)
	}

	if len(services) == 0 {
		return errors.New("no services enabled")
	}

	var errs []error
	if services[config.ServiceModeHTTP] || services[config.ServiceModeWorker] {
		if !cfg.Router.IsConfigured() {
			errs = append(errs, errors.New("ROUTER_API_KEY and ROUTER_BASE_URL are required to run jobs"))
		}
		if !cfg.Embedder.IsConfigured() {
			errs = append(errs, errors.New("EMBEDDER_API_KEY is required to run jobs"))
		}
	}
	if services[config.ServiceModeWorker] {
		for _, g := range cfg.Worker.Groups {
			if _, gerr := job.ParseWorkerGroup(g); gerr != nil {
				errs = append(errs, fmt.Errorf("WORKER_GROUPS: %w", gerr))
			}
		}
		if perr := schedrunner.ValidateSchedule(cfg.Worker.Schedule); perr != nil {
			errs = append(errs, fmt.Errorf("WORKER_SCHEDULE %q: %w", cfg.Worker.Schedule, perr))
		}
	}
	return errors.Join(errs...)
}

// GetEnabledServices returns the enabled service names sorted, or none when
// SERVICES does not parse.
func GetEnabledServices(cfg *config.AppConfig) []string {
	out := []string{}
	if cfg == nil {
		return out
	}
	services, err := cfg.GetEnabledServices()
	if err != nil {
		return out
	}
	for mode := range services {
		out = append(out, string(mode))
	}
	slices.Sort(out)
	return out
}
