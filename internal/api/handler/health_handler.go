package handler

import (
	"net/http"

	"github.com/notifyhub/dispatcher/internal/dispatch"
)

// HealthHandler serves the liveness probe endpoint. It reports not just
// process liveness but a cheap readiness signal too: the number of
// listeners currently being drained, read straight off the dispatcher's
// own registry rather than a separately maintained counter.
type HealthHandler struct {
	dispatcher *dispatch.Dispatcher
}

func NewHealthHandler(d *dispatch.Dispatcher) *HealthHandler {
	return &HealthHandler{dispatcher: d}
}

// Health handles GET /health
//
// @Summary  Liveness probe, with active-listener count as a readiness signal
// @Tags     system
// @Produce  json
// @Success  200  {object}  map[string]any
// @Router   /health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"listeners_active": len(h.dispatcher.ListenerStats()),
	})
}
