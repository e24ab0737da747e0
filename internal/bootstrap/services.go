package bootstrap

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/schoolcrm/enrichment/config"
	"github.com/schoolcrm/enrichment/internal/core"
	"github.com/schoolcrm/enrichment/internal/data"
	"github.com/schoolcrm/enrichment/internal/domain/enrich"
	httpx "github.com/schoolcrm/enrichment/internal/http"
	"github.com/schoolcrm/enrichment/internal/observability/metrics"
	"github.com/schoolcrm/enrichment/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Jobs          *data.JobRepo
	Orchestrator  *service.Orchestrator
	IntentCache   *core.IntentCacheService
	Readiness     map[string]httpx.ReadinessCheck
	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	// Prometheus is nil when metrics are disabled.
	Prometheus    *metrics.Prometheus
	MetricsConfig config.ObservabilityMetricsConfig
}

// Recorder returns the metrics recorder services should report to.
//
//nolint:ireturn // callers only need the Recorder port.
func (o ObservabilityContainer) Recorder() metrics.Recorder {
	if o.Prometheus == nil {
		return metrics.Noop{}
	}
	return o.Prometheus
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config *config.AppConfig
	DB     *sql.DB
	// RedisClient is optional; without it the intent cache reads Postgres only.
	RedisClient redis.UniversalClient
	Models      ModelPorts
	Logger      *slog.Logger
}

// serviceRepositories groups data adapters backing service ports.
type serviceRepositories struct {
	Jobs        *data.JobRepo
	Messages    *data.MessageRepo
	Texts       *data.NormalizedTextRepo
	Embeddings  *data.EmbeddingRepo
	Annotations *data.AnnotationRepo
	IntentCache *data.IntentCacheRepo
	// Cache is nil without Redis.
	Cache *data.RedisCache
}

// buildObservability configures the Prometheus registry when metrics are enabled.
func buildObservability(cfg config.ObservabilityConfig) ObservabilityContainer {
	out := ObservabilityContainer{MetricsConfig: cfg.Metrics}
	if cfg.Metrics.IsEnabled() {
		out.Prometheus = metrics.NewPrometheus(cfg.Metrics.Namespace)
	}
	return out
}

// buildRepositories builds repositories backing service ports; no business rules here.
func buildRepositories(db *sql.DB, rdb redis.UniversalClient, cacheCfg config.CacheConfig) *serviceRepositories {
	repos := &serviceRepositories{
		Jobs:        data.NewJobRepo(db, data.RepoConfig{}),
		Messages:    data.NewMessageRepo(db),
		Texts:       data.NewNormalizedTextRepo(db),
		Embeddings:  data.NewEmbeddingRepo(db),
		Annotations: data.NewAnnotationRepo(db),
		IntentCache: data.NewIntentCacheRepo(db),
	}
	if rdb != nil {
		repos.Cache = data.NewRedisCache(rdb, cacheCfg.OpTimeout)
	}
	return repos
}

func newIntentCacheService(repos *serviceRepositories, cfg config.CacheConfig, logger *slog.Logger) *core.IntentCacheService {
	cacheCfg := core.DefaultIntentCacheConfig()
	if cfg.IntentTTL > 0 {
		cacheCfg.TTL = cfg.IntentTTL
	}
	if cfg.KeyPrefix != "" {
		cacheCfg.KeyPrefix = cfg.KeyPrefix
	}
	opts := core.IntentCacheServiceOptions{
		Store:  repos.IntentCache,
		Config: cacheCfg,
		Logger: logger,
	}
	if repos.Cache != nil {
		opts.Cache = repos.Cache
	}
	return core.NewIntentCacheService(opts)
}

func buildReadiness(db *sql.DB, repos *serviceRepositories) map[string]httpx.ReadinessCheck {
	checks := map[string]httpx.ReadinessCheck{}
	if db != nil {
		checks["database"] = db.PingContext
	}
	if repos.Cache != nil {
		checks["redis"] = repos.Cache.Health
	}
	return checks
}

// NewServices wires repositories, stage handlers and the orchestrator.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service config is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	obs := buildObservability(cfg.Observability)
	repos := buildRepositories(deps.DB, deps.RedisClient, cfg.Cache)
	intentCache := newIntentCacheService(repos, cfg.Cache, logger.With("component", "intent_cache"))

	registry, err := enrich.NewRegistry(enrich.Deps{
		Messages:     repos.Messages,
		Texts:        repos.Texts,
		Embeddings:   repos.Embeddings,
		Annotations:  repos.Annotations,
		Cache:        intentCache,
		Router:       deps.Models.Router,
		Embedder:     deps.Models.Embedder,
		Jobs:         repos.Jobs,
		ModelTimeout: cfg.Worker.ModelTimeout,
		Metrics:      obs.Recorder(),
		Logger:       logger,
	})
	if err != nil {
		return ServiceContainer{}, err
	}

	orch, err := service.NewOrchestrator(service.OrchestratorOptions{
		Jobs:     repos.Jobs,
		Handlers: registry,
		Config:   cfg.Worker,
		Metrics:  obs.Recorder(),
		Logger:   logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("create orchestrator: %w", err)
	}

	return ServiceContainer{
		Jobs:          repos.Jobs,
		Orchestrator:  orch,
		IntentCache:   intentCache,
		Readiness:     buildReadiness(deps.DB, repos),
		Observability: obs,
	}, nil
}
