// Package api wires the HTTP router for subscription delivery.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/creamcroissant/marzgo/internal/api/handler"
	"github.com/creamcroissant/marzgo/internal/api/middleware"
	"github.com/creamcroissant/marzgo/internal/auth/token"
	"github.com/creamcroissant/marzgo/internal/config"
	"github.com/creamcroissant/marzgo/internal/service"
)

// RouterConfig wires the router dependencies.
type RouterConfig struct {
	Tokens       *token.Manager
	Subscription *service.SubscriptionService
	Logger       *slog.Logger
	Metrics      config.MetricsConfig
}

// NewRouter builds the chi router with logging, recovery and optional
// Prometheus exposure.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(30 * time.Second))

	logCfg := middleware.DefaultLoggingConfig()
	logCfg.Logger = logger
	r.Use(middleware.StructuredLogger(logCfg))

	if cfg.Metrics.Enabled {
		metricsCfg := middleware.DefaultMetricsConfig()
		if cfg.Metrics.Namespace != "" {
			metricsCfg.Namespace = cfg.Metrics.Namespace
		}
		r.Use(middleware.NewMetrics(metricsCfg).Middleware(metricsCfg))

		metricsHandler := promhttp.Handler()
		if cfg.Metrics.Token != "" {
			metricsHandler = middleware.MetricsGuard(cfg.Metrics.Token)(metricsHandler)
		}
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	sub := handler.NewSubscription(cfg.Tokens, cfg.Subscription, logger)
	r.Get("/sub/{token}", sub.Get)

	return r
}
