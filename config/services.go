package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP trigger and operational endpoints.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeWorker runs cron-driven orchestrator ticks per worker group.
	ServiceModeWorker ServiceMode = "worker"
	// ServiceModeReaper runs lease reclaim and old job cleanup.
	ServiceModeReaper ServiceMode = "reaper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeHTTP,
		ServiceModeWorker,
		ServiceModeReaper,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	for _, part := range strings.Split(servicesStr, ",") {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP, ServiceModeWorker, ServiceModeReaper:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: http, worker, reaper)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

const (
	// DefaultBatchSize is the claim size used when a caller does not ask for one.
	DefaultBatchSize = 20
	// MaxBatchSize caps a single claim.
	MaxBatchSize = 100
)

// WorkerConfig contains orchestrator and cron worker configuration.
type WorkerConfig struct {
	// Groups are the worker groups the cron worker ticks. Unknown names are
	// rejected by bootstrap.ValidateServiceConfig.
	Groups []string `env:"GROUPS" envDefault:"normalize,embed,annotate,cluster"`

	// Schedule is a robfig/cron spec applied to every group.
	Schedule string `env:"SCHEDULE" envDefault:"@every 10s"`

	// BatchSize is the default claim size per tick.
	BatchSize int `env:"BATCH_SIZE" envDefault:"20"`

	// MaxBatchSize caps batch sizes requested over HTTP.
	MaxBatchSize int `env:"MAX_BATCH_SIZE" envDefault:"100"`

	// Concurrency is the number of jobs processed in parallel inside one run.
	Concurrency int `env:"CONCURRENCY" envDefault:"4"`

	// ClaimLease is how long a claimed job is owned before the reaper may reclaim it.
	ClaimLease time.Duration `env:"CLAIM_LEASE" envDefault:"5m"`

	// ModelTimeout bounds every model router and embedder call.
	ModelTimeout time.Duration `env:"MODEL_TIMEOUT" envDefault:"30s"`
}

// Sanitize applies guardrails to worker configuration values.
func (w *WorkerConfig) Sanitize() {
	groups := make([]string, 0, len(w.Groups))
	seen := make(map[string]struct{}, len(w.Groups))
	for _, g := range w.Groups {
		g = strings.ToLower(strings.TrimSpace(g))
		if g == "" {
			continue
		}
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		groups = append(groups, g)
	}
	w.Groups = groups

	if strings.TrimSpace(w.Schedule) == "" {
		w.Schedule = "@every 10s"
	}
	if w.MaxBatchSize < 1 || w.MaxBatchSize > MaxBatchSize {
		w.MaxBatchSize = MaxBatchSize
	}
	if w.BatchSize < 1 {
		w.BatchSize = DefaultBatchSize
	}
	if w.BatchSize > w.MaxBatchSize {
		w.BatchSize = w.MaxBatchSize
	}
	if w.Concurrency < 1 {
		w.Concurrency = 1
	}
	if w.Concurrency > 64 {
		w.Concurrency = 64
	}
	if w.ClaimLease < 30*time.Second {
		w.ClaimLease = 30 * time.Second
	}
	if w.ModelTimeout < time.Second {
		w.ModelTimeout = time.Second
	}
	// A model call must finish well inside the lease or the job gets reclaimed mid-flight.
	if w.ModelTimeout >= w.ClaimLease {
		w.ModelTimeout = w.ClaimLease / 2
	}
}

// ReaperConfig contains job reaper service configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"INTERVAL" envDefault:"1m"`

	// MaxReclaims is how many times an expired claim is returned to pending
	// before the job is failed instead.
	MaxReclaims int `env:"MAX_RECLAIMS" envDefault:"3"`

	// CompletedMaxAge is the maximum age for completed jobs before deletion.
	CompletedMaxAge time.Duration `env:"COMPLETED_MAX_AGE" envDefault:"168h"` // 7 days

	// FailedMaxAge is the maximum age for failed jobs before deletion.
	FailedMaxAge time.Duration `env:"FAILED_MAX_AGE" envDefault:"720h"` // 30 days

	// BatchSize is the maximum number of rows to process per operation.
	BatchSize int `env:"BATCH_SIZE" envDefault:"1000"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	if r.Interval < 10*time.Second {
		r.Interval = 10 * time.Second
	}
	if r.MaxReclaims < 0 {
		r.MaxReclaims = 0
	}
	if r.CompletedMaxAge < time.Hour {
		r.CompletedMaxAge = time.Hour
	}
	if r.FailedMaxAge < time.Hour {
		r.FailedMaxAge = time.Hour
	}
	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
	if r.BatchSize > 10000 {
		r.BatchSize = 10000
	}
}
