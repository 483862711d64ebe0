package handler

import (
	"net/http"

	"github.com/notifyhub/dispatcher/internal/dispatch"
)

// MetricsHandler serves a human-readable JSON snapshot of per-listener
// queue depths. Raw Prometheus metrics (counters, histograms) are
// available separately at /metrics via promhttp.Handler.
type MetricsHandler struct {
	dispatcher *dispatch.Dispatcher
}

func NewMetricsHandler(d *dispatch.Dispatcher) *MetricsHandler {
	return &MetricsHandler{dispatcher: d}
}

// GetStats handles GET /api/v1/stats
//
// @Summary  Real-time per-listener queue depth snapshot
// @Tags     metrics
// @Produce  json
// @Success  200  {object}  map[string]any
// @Router   /api/v1/stats [get]
func (h *MetricsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := h.dispatcher.ListenerStats()
	respondJSON(w, http.StatusOK, map[string]any{
		"listeners": stats,
		"count":     len(stats),
	})
}
