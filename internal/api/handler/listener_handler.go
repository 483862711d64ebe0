package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/notifyhub/dispatcher/internal/domain"
	"github.com/notifyhub/dispatcher/internal/invoker"
	"github.com/notifyhub/dispatcher/internal/listener"
)

// ListenerHandler manages the name -> webhook target registrations that
// the submission endpoints resolve against.
type ListenerHandler struct {
	directory *listener.Directory
	logger    *zap.Logger
}

func NewListenerHandler(dir *listener.Directory, logger *zap.Logger) *ListenerHandler {
	return &ListenerHandler{directory: dir, logger: logger}
}

// registerListenerRequest is the inbound payload for registering or
// replacing a named webhook target.
type registerListenerRequest struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Register handles PUT /api/v1/listeners/{name}
//
// @Summary  Register (or replace) a named webhook listener
// @Tags     listeners
// @Accept   json
// @Produce  json
// @Param    name  path      string                   true  "Listener name"
// @Param    body  body      registerListenerRequest  true  "Webhook target"
// @Success  204
// @Failure  422   {object}  map[string]string
// @Router   /api/v1/listeners/{name} [put]
func (h *ListenerHandler) Register(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		respondError(w, http.StatusUnprocessableEntity, "listener name must not be empty")
		return
	}

	var req registerListenerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.URL == "" {
		respondError(w, http.StatusUnprocessableEntity, domain.ErrInvalidListener.Error())
		return
	}

	h.directory.Register(name, &invoker.WebhookTarget{URL: req.URL, Headers: req.Headers})
	h.logger.Info("listener registered", zap.String("name", name), zap.String("url", req.URL))
	w.WriteHeader(http.StatusNoContent)
}

// List handles GET /api/v1/listeners
//
// @Summary  List registered listener names
// @Tags     listeners
// @Produce  json
// @Success  200  {object}  map[string]any
// @Router   /api/v1/listeners [get]
func (h *ListenerHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"listeners": h.directory.Names()})
}
