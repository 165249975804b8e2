// Package monitor exposes Prometheus metrics for the controller. All methods
// are safe on a nil *Metrics so instrumentation can be left unwired in tests.
package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "escape"

// Metrics holds the controller's instruments on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	transitions     *prometheus.CounterVec
	inputEdges      *prometheus.CounterVec
	eventsPublished *prometheus.CounterVec
	eventsDropped   prometheus.Counter
	subscribers     prometheus.Gauge
	timerRunning    prometheus.Gauge
	relayWrites     *prometheus.CounterVec
	audioErrors     prometheus.Counter
}

// New creates and registers the controller's metrics.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Game phase transitions by target phase.",
		}, []string{"phase"}),
		inputEdges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "input_edges_total",
			Help:      "Debounced input edges by label.",
		}, []string{"label"}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Events published to the broadcast bus by type.",
		}, []string{"type"}),
		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Events dropped because a subscriber queue was full.",
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscribers",
			Help:      "Current broadcast subscribers.",
		}),
		timerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "timer_running",
			Help:      "Whether the run timer is counting (0 or 1).",
		}),
		relayWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_writes_total",
			Help:      "Relay writes by relay name.",
		}, []string{"relay"}),
		audioErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_errors_total",
			Help:      "Failed audio command publishes.",
		}),
	}

	m.registry.MustRegister(
		m.transitions,
		m.inputEdges,
		m.eventsPublished,
		m.eventsDropped,
		m.subscribers,
		m.timerRunning,
		m.relayWrites,
		m.audioErrors,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// IncTransition counts a phase transition.
func (m *Metrics) IncTransition(phase string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(phase).Inc()
}

// IncInputEdge counts a debounced edge on label.
func (m *Metrics) IncInputEdge(label string) {
	if m == nil {
		return
	}
	m.inputEdges.WithLabelValues(label).Inc()
}

// IncEventPublished counts a bus publish by event type.
func (m *Metrics) IncEventPublished(eventType string) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(eventType).Inc()
}

// IncEventDropped counts an event dropped on a full subscriber queue.
func (m *Metrics) IncEventDropped() {
	if m == nil {
		return
	}
	m.eventsDropped.Inc()
}

// SetSubscribers records the current subscriber count.
func (m *Metrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.subscribers.Set(float64(n))
}

// SetTimerRunning records whether the run timer is counting.
func (m *Metrics) SetTimerRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.timerRunning.Set(1)
	} else {
		m.timerRunning.Set(0)
	}
}

// IncRelayWrite counts a hardware write to relay.
func (m *Metrics) IncRelayWrite(relay string) {
	if m == nil {
		return
	}
	m.relayWrites.WithLabelValues(relay).Inc()
}

// IncAudioError counts a failed audio publish.
func (m *Metrics) IncAudioError() {
	if m == nil {
		return
	}
	m.audioErrors.Inc()
}
