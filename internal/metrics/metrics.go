package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/notifyhub/dispatcher/internal/dispatch"
)

// Metrics groups every Prometheus instrument the dispatcher and its
// surrounding HTTP surface publish. Registered once at startup via New()
// and passed by pointer wherever needed.
type Metrics struct {
	NotificationsDelivered *prometheus.CounterVec
	NotificationsRecovered *prometheus.CounterVec
	NotificationsFatal     *prometheus.CounterVec
	DeliveryLatency        prometheus.Histogram
	RejectedSubmissions    prometheus.Counter
	ListenerCount          prometheus.Gauge
	ListenerQueueDepth     *prometheus.GaugeVec
}

// New registers every instrument with reg and returns the populated
// Metrics struct. Using a caller-supplied registry, rather than
// prometheus.DefaultRegisterer, keeps tests isolated from global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		NotificationsDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatcher_notifications_delivered_total",
			Help: "Total number of notifications successfully delivered to a listener.",
		}, []string{"dispatcher"}),

		NotificationsRecovered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatcher_notifications_recoverable_errors_total",
			Help: "Total number of notification deliveries that failed with a recoverable error.",
		}, []string{"dispatcher"}),

		NotificationsFatal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatcher_notifications_fatal_errors_total",
			Help: "Total number of notification deliveries that failed fatally, retiring the listener's task.",
		}, []string{"dispatcher"}),

		DeliveryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dispatcher_delivery_seconds",
			Help:    "Time spent inside a single Invoker.Invoke call.",
			Buckets: prometheus.DefBuckets,
		}),

		RejectedSubmissions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dispatcher_submissions_rejected_total",
			Help: "Total number of Submit/SubmitAll calls that returned ErrRejected because the worker pool was saturated.",
		}),

		ListenerCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dispatcher_listeners_active",
			Help: "Current number of listeners with a live draining task.",
		}),

		ListenerQueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dispatcher_listener_queue_depth",
			Help: "Current queue depth per listener, sampled from ListenerStats.",
		}, []string{"listener"}),
	}

	reg.MustRegister(
		m.NotificationsDelivered,
		m.NotificationsRecovered,
		m.NotificationsFatal,
		m.DeliveryLatency,
		m.RejectedSubmissions,
		m.ListenerCount,
		m.ListenerQueueDepth,
	)

	return m
}

// ObserveDelivery records how long a single Invoke call took.
func (m *Metrics) ObserveDelivery(latency time.Duration) {
	m.DeliveryLatency.Observe(latency.Seconds())
}

// SampleQueueDepths replaces the ListenerQueueDepth gauge vector's values
// with a fresh snapshot and updates ListenerCount to match. Call this
// periodically (e.g. every few seconds) from a background goroutine; the
// dispatcher itself never calls into metrics.
func (m *Metrics) SampleQueueDepths(stats []dispatch.ListenerStat) {
	m.ListenerQueueDepth.Reset()
	for _, s := range stats {
		m.ListenerQueueDepth.WithLabelValues(s.Listener).Set(float64(s.Depth))
	}
	m.ListenerCount.Set(float64(len(stats)))
}
