package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	apimw "github.com/notifyhub/dispatcher/internal/api/middleware"
	"github.com/notifyhub/dispatcher/internal/dispatch"
	"github.com/notifyhub/dispatcher/internal/domain"
	"github.com/notifyhub/dispatcher/internal/listener"
	"github.com/notifyhub/dispatcher/internal/metrics"
	"github.com/notifyhub/dispatcher/internal/ratelimiter"
)

// NotificationHandler handles the demo submission endpoints: it resolves a
// caller-chosen listener name to a target via the Directory, then hands
// the content to the Dispatcher. It knows nothing about the dispatcher's
// internal per-listener queues — that is entirely internal/dispatch's
// concern.
type NotificationHandler struct {
	dispatcher *dispatch.Dispatcher
	directory  *listener.Directory
	limiter    *ratelimiter.IngressLimiter
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

func NewNotificationHandler(
	d *dispatch.Dispatcher,
	dir *listener.Directory,
	limiter *ratelimiter.IngressLimiter,
	m *metrics.Metrics,
	logger *zap.Logger,
) *NotificationHandler {
	return &NotificationHandler{dispatcher: d, directory: dir, limiter: limiter, metrics: m, logger: logger}
}

// Submit handles POST /api/v1/notifications
//
// @Summary  Submit a single notification to a named listener
// @Tags     notifications
// @Accept   json
// @Produce  json
// @Param    body  body      domain.SubmitRequest  true  "Submission payload"
// @Success  202   {object}  map[string]string
// @Failure  404   {object}  map[string]string
// @Failure  422   {object}  map[string]string
// @Failure  429   {object}  map[string]string
// @Failure  503   {object}  map[string]string
// @Router   /api/v1/notifications [post]
func (h *NotificationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.Allow() {
		respondError(w, http.StatusTooManyRequests, "ingress rate limit exceeded")
		return
	}

	var req domain.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		mapError(w, err)
		return
	}

	h.submit(w, r.Context(), req.Listener, []dispatch.Notification{req.Content})
}

// SubmitBatch handles POST /api/v1/notifications/batch
//
// @Summary  Submit many notifications to one named listener, preserving order
// @Tags     notifications
// @Accept   json
// @Produce  json
// @Param    body  body      domain.BatchSubmitRequest  true  "Batch payload"
// @Success  202   {object}  map[string]string
// @Failure  404   {object}  map[string]string
// @Failure  422   {object}  map[string]string
// @Failure  429   {object}  map[string]string
// @Failure  503   {object}  map[string]string
// @Router   /api/v1/notifications/batch [post]
func (h *NotificationHandler) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.Allow() {
		respondError(w, http.StatusTooManyRequests, "ingress rate limit exceeded")
		return
	}

	var req domain.BatchSubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		mapError(w, err)
		return
	}

	notifications := make([]dispatch.Notification, len(req.Notifications))
	for i, n := range req.Notifications {
		notifications[i] = n
	}
	h.submit(w, r.Context(), req.Listener, notifications)
}

func (h *NotificationHandler) submit(w http.ResponseWriter, ctx context.Context, listenerName string, notifications []dispatch.Notification) {
	target, err := h.directory.Lookup(listenerName)
	if err != nil {
		mapError(w, domain.ErrNotFound)
		return
	}

	if err := h.dispatcher.SubmitAll(ctx, target, notifications); err != nil {
		if errors.Is(err, dispatch.ErrRejected) {
			h.metrics.RejectedSubmissions.Inc()
		}
		h.logger.Warn("submit failed",
			zap.String("correlation_id", apimw.GetCorrelationID(ctx)),
			zap.String("listener", listenerName),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}
