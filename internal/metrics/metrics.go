package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "alertrelay"

// Metrics holds the relay collectors on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	MessagesReceived prometheus.Counter
	MessagesDropped  *prometheus.CounterVec
	AlertsApplied    *prometheus.CounterVec
	DeliveryLatency  prometheus.Histogram
	EntriesExpired   prometheus.Counter
	Reconnects       prometheus.Counter
	SessionState     *prometheus.GaugeVec
	Publishes        *prometheus.CounterVec
	PublishErrors    *prometheus.CounterVec
	ActiveRegions    prometheus.Gauge
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		MessagesReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Raw alert payloads received from the transport.",
		}),
		MessagesDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dropped_total",
			Help:      "Payloads that produced no records, by reason.",
		}, []string{"reason"}),
		AlertsApplied: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_applied_total",
			Help:      "Accepted alerts applied to the state store, by class.",
		}, []string{"class"}),
		DeliveryLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_latency_seconds",
			Help:      "Age of accepted alerts on arrival.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 45},
		}),
		EntriesExpired: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_expired_total",
			Help:      "Alert entries removed by the expiry sweep.",
		}),
		Reconnects: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_reconnects_total",
			Help:      "Transport sessions started after the first one.",
		}),
		SessionState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_state",
			Help:      "1 for the current transport session state.",
		}, []string{"state"}),
		Publishes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_publishes_total",
			Help:      "Snapshot writes, by sink.",
		}, []string{"sink"}),
		PublishErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_publish_errors_total",
			Help:      "Failed snapshot writes, by sink.",
		}, []string{"sink"}),
		ActiveRegions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_regions",
			Help:      "Regions with at least one active alert in the last snapshot.",
		}),
	}
}

// ObserveLatency records an accepted alert's age.
func (m *Metrics) ObserveLatency(d time.Duration) {
	if d < 0 {
		d = 0
	}
	m.DeliveryLatency.Observe(d.Seconds())
}

// SetSessionState marks state as current and clears the others.
func (m *Metrics) SetSessionState(state string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		m.SessionState.WithLabelValues(s).Set(v)
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
