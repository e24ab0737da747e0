package httpx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// TriggerPath is where the enrichment worker trigger is mounted, next to "/".
const TriggerPath = "/functions/enrichment-worker"

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	// Runner backs the worker trigger. Required.
	Runner WorkerRunner
	// Jobs backs the job endpoints. Optional.
	Jobs JobStore
	// Metrics is mounted at MetricsPath when set.
	Metrics     http.Handler
	MetricsPath string
	// Readiness checks by dependency name.
	Readiness map[string]ReadinessCheck

	AllowedOrigin  string
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	Logger         *slog.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(Recover(logger))
	r.Use(Logging(logger))
	r.Use(CORS(services.AllowedOrigin))
	if services.MaxBodyBytes > 0 {
		r.Use(chimw.RequestSize(services.MaxBodyBytes))
	}

	trigger := &TriggerHandlers{
		Runner:  services.Runner,
		Timeout: services.RequestTimeout,
		Logger:  logger.With("component", "trigger"),
	}
	r.Post(TriggerPath, trigger.Trigger)
	r.Post("/", trigger.Trigger)

	r.Get("/healthz", healthHandler)
	r.Head("/healthz", healthHandler)
	r.Get("/readyz", readyHandler(services.Readiness))

	if services.Jobs != nil {
		jobs := &JobHandlers{Jobs: services.Jobs}
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", jobs.CreateJob)
			r.Get("/stats", jobs.Stats)
			r.Get("/{id}", jobs.GetJob)
		})
	}

	if services.Metrics != nil {
		path := services.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, services.Metrics)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "not_found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, ErrorParams{Code: http.StatusMethodNotAllowed, ErrCode: "method_not_allowed"})
	})

	return r
}
