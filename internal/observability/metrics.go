package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zhouzirui/mindful/backend/internal/model/emotion"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	registry *prometheus.Registry

	ActiveSessions       prometheus.Gauge
	SessionEvents        *prometheus.CounterVec
	Observations         *prometheus.CounterVec
	RejectedObservations *prometheus.CounterVec
	Classifications      *prometheus.CounterVec
	ClassifierLatency    *prometheus.HistogramVec
	WSMessages           *prometheus.CounterVec
}

// NewMetrics registers every instrument on a private registry so several instances
// can coexist (tests, tools).
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "mindful"
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of aggregation sessions accepting observations.",
		}),
		SessionEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session lifecycle events by type.",
		}, []string{"event"}),
		Observations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_total",
			Help:      "Recorded observations by source and category.",
		}, []string{"source", "category"}),
		RejectedObservations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_rejected_total",
			Help:      "Observations rejected by reason.",
		}, []string{"reason"}),
		Classifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      "Classifier invocations by provider and outcome.",
		}, []string{"provider", "outcome"}),
		ClassifierLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "classifier_latency_ms",
			Help:      "Classifier latency in milliseconds.",
			Buckets:   []float64{1, 5, 25, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"provider"}),
		WSMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
	}
}

// ObservationRecorded implements aggregator.Observer.
func (m *Metrics) ObservationRecorded(source emotion.Source, category emotion.Category) {
	m.Observations.WithLabelValues(string(source), string(category)).Inc()
}

// ObservationRejected implements aggregator.Observer.
func (m *Metrics) ObservationRejected(reason string) {
	m.RejectedObservations.WithLabelValues(reason).Inc()
}

// SessionOpened implements aggregator.Observer.
func (m *Metrics) SessionOpened() {
	m.ActiveSessions.Inc()
	m.SessionEvents.WithLabelValues("opened").Inc()
}

// SessionDiscarded implements aggregator.Observer.
func (m *Metrics) SessionDiscarded() {
	m.ActiveSessions.Dec()
	m.SessionEvents.WithLabelValues("discarded").Inc()
}

// ObserveClassification records one classifier call.
func (m *Metrics) ObserveClassification(provider, outcome string, d time.Duration) {
	m.Classifications.WithLabelValues(provider, outcome).Inc()
	m.ClassifierLatency.WithLabelValues(provider).Observe(float64(d.Milliseconds()))
}

// ObserveWSMessage counts one inbound or outbound websocket frame.
func (m *Metrics) ObserveWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
