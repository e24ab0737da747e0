package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/schoolcrm/enrichment/config"
	httpx "github.com/schoolcrm/enrichment/internal/http"
)

const httpShutdownTimeout = 10 * time.Second

func newHTTPServer(cfg *config.AppConfig, services ServiceContainer, logger *slog.Logger) *http.Server {
	addr := cfg.HTTP.Addr
	if addr == "" {
		addr = ":8080"
	}
	return &http.Server{
		Addr:              addr,
		Handler:           httpx.NewRouter(routerServices(cfg, services, logger)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// A trigger run may take the whole request timeout.
		WriteTimeout: cfg.HTTP.RequestTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
}

// serveHTTP listens until ctx is done and then drains in-flight requests.
func serveHTTP(ctx context.Context, srv *http.Server, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", srv.Addr, err)
	}
	logger.InfoContext(ctx, "HTTP server listening", "addr", ln.Addr().String())

	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()

	select {
	case err = <-served:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), httpShutdownTimeout)
	defer cancel()
	if err = srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err = <-served; !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func routerServices(cfg *config.AppConfig, services ServiceContainer, logger *slog.Logger) httpx.RouterServices {
	rs := httpx.RouterServices{
		Readiness:      services.Readiness,
		AllowedOrigin:  cfg.HTTP.AllowedOrigin,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
		Logger:         logger,
	}
	// Interface fields stay nil when the concrete service is absent.
	if services.Orchestrator != nil {
		rs.Runner = services.Orchestrator
	}
	if services.Jobs != nil {
		rs.Jobs = services.Jobs
	}
	if p := services.Observability.Prometheus; p != nil {
		rs.Metrics = p.Handler()
		rs.MetricsPath = services.Observability.MetricsConfig.Path
	}
	return rs
}
