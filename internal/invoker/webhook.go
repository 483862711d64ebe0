// Package invoker provides dispatch.Invoker implementations: the concrete
// delivery mechanisms a dispatcher hands each drained notification to.
package invoker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/dispatcher/internal/dispatch"
)

// WebhookTarget is the Listener type WebhookInvoker expects: a single HTTP
// endpoint plus any static headers to attach to every delivery. Its
// identity, for dispatch's purposes, is the pointer — two targets built
// from the same URL string are still distinct listeners with independent
// queues, matching how the rest of this package treats listener identity.
type WebhookTarget struct {
	URL     string
	Headers map[string]string
}

func (t *WebhookTarget) String() string { return t.URL }

type webhookPayload struct {
	Notification dispatch.Notification `json:"notification"`
	DeliveredAt  string                 `json:"deliveredAt"`
}

// WebhookInvoker delivers notifications by POSTing a JSON body to a
// WebhookTarget's URL. It classifies the response so the owning task knows
// whether to keep draining or retire:
//   - 2xx: delivered, draining continues.
//   - 429, 5xx, and any transport-level error: recoverable, logged and
//     draining continues — the endpoint may recover on the next notification.
//   - 410 Gone, and any other 4xx: fatal — the endpoint has told us, or
//     strongly implied, that it will never accept another delivery, so the
//     task retires rather than keep invoking a listener that is gone.
type WebhookInvoker struct {
	client *http.Client
}

// NewWebhookInvoker returns a WebhookInvoker whose requests fail after
// timeout. A zero timeout leaves the client's default (no timeout) in
// place, matching net/http's usual behavior.
func NewWebhookInvoker(timeout time.Duration) *WebhookInvoker {
	return &WebhookInvoker{client: &http.Client{Timeout: timeout}}
}

func (w *WebhookInvoker) Invoke(ctx context.Context, listener dispatch.Listener, n dispatch.Notification) error {
	target, ok := listener.(*WebhookTarget)
	if !ok {
		return &dispatch.FatalInvokerError{Err: fmt.Errorf("invoker: listener %T is not a *WebhookTarget", listener)}
	}

	body, err := json.Marshal(webhookPayload{Notification: n, DeliveredAt: time.Now().UTC().Format(time.RFC3339Nano)})
	if err != nil {
		return &dispatch.FatalInvokerError{Err: fmt.Errorf("invoker: marshal notification: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, bytes.NewReader(body))
	if err != nil {
		return &dispatch.FatalInvokerError{Err: fmt.Errorf("invoker: build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range target.Headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		// Transport-level failures (DNS, connection refused, timeout) are
		// treated as recoverable: the endpoint may come back.
		return fmt.Errorf("invoker: webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusGone:
		return &dispatch.FatalInvokerError{Err: fmt.Errorf("invoker: webhook %s reported 410 Gone", target.URL)}
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("invoker: webhook %s rate limited (429)", target.URL)
	case resp.StatusCode >= 500:
		return fmt.Errorf("invoker: webhook %s returned %d", target.URL, resp.StatusCode)
	case resp.StatusCode >= 400:
		return &dispatch.FatalInvokerError{Err: fmt.Errorf("invoker: webhook %s rejected delivery with %d", target.URL, resp.StatusCode)}
	default:
		return fmt.Errorf("invoker: webhook %s returned unexpected status %d", target.URL, resp.StatusCode)
	}
}

var _ dispatch.Invoker = (*WebhookInvoker)(nil)

// loggingInvoker wraps an Invoker with one log line per delivery attempt.
// Kept separate from WebhookInvoker itself so the HTTP logic stays
// independent of logging, matching how the surrounding packages inject
// *zap.Logger by parameter rather than embedding it everywhere.
type loggingInvoker struct {
	next   dispatch.Invoker
	logger *zap.Logger
}

// WithLogging wraps next so every Invoke call is logged: a successful
// delivery at debug level, any failure at warn level with the error.
// Recoverable and fatal failures are logged alike.
func WithLogging(next dispatch.Invoker, logger *zap.Logger) dispatch.Invoker {
	return &loggingInvoker{next: next, logger: logger}
}

func (l *loggingInvoker) Invoke(ctx context.Context, listener dispatch.Listener, n dispatch.Notification) error {
	err := l.next.Invoke(ctx, listener, n)
	label := listenerLabel(listener)
	switch {
	case err == nil:
		l.logger.Debug("delivered", zap.String("listener", label))
	default:
		l.logger.Warn("delivery failed", zap.String("listener", label), zap.Error(err))
	}
	return err
}

func listenerLabel(listener dispatch.Listener) string {
	if s, ok := listener.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", listener)
}

var _ dispatch.Invoker = (*loggingInvoker)(nil)
