package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/notifyhub/dispatcher/internal/api/handler"
	apimw "github.com/notifyhub/dispatcher/internal/api/middleware"
	"github.com/notifyhub/dispatcher/internal/dispatch"
	"github.com/notifyhub/dispatcher/internal/listener"
	"github.com/notifyhub/dispatcher/internal/metrics"
	"github.com/notifyhub/dispatcher/internal/ratelimiter"
)

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
func NewRouter(
	d *dispatch.Dispatcher,
	dir *listener.Directory,
	limiter *ratelimiter.IngressLimiter,
	m *metrics.Metrics,
	reg prometheus.Gatherer,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- global middleware (applied to every route) ---
	r.Use(chimw.Recoverer)          // recover panics, return 500
	r.Use(chimw.RealIP)             // trust X-Forwarded-For / X-Real-IP
	r.Use(chimw.RequestSize(1 << 20)) // 1 MB max request body
	r.Use(apimw.CorrelationID)      // X-Correlation-ID inject / echo
	r.Use(apimw.RequestLogger(logger))

	// --- handler instances ---
	nh := handler.NewNotificationHandler(d, dir, limiter, m, logger)
	lh := handler.NewListenerHandler(dir, logger)
	mh := handler.NewMetricsHandler(d)
	hh := handler.NewHealthHandler(d)

	// --- routes ---
	r.Get("/health", hh.Health)

	// Raw Prometheus scrape endpoint (for Prometheus server / Grafana)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		// /batch must be registered before the bare path so chi's router
		// matches it literally rather than falling through.
		r.Post("/notifications/batch", nh.SubmitBatch)
		r.Post("/notifications", nh.Submit)

		r.Put("/listeners/{name}", lh.Register)
		r.Get("/listeners", lh.List)

		r.Get("/stats", mh.GetStats)
	})

	return r
}
