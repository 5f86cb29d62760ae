// Package metrics exposes Prometheus collectors for the chat hub.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	sessions    prometheus.Gauge
	waiting     prometheus.Gauge
	rooms       prometheus.Gauge
	matches     *prometheus.CounterVec
	messages    *prometheus.CounterVec
	signals     *prometheus.CounterVec
	dropped     *prometheus.CounterVec
	persistDrop prometheus.Counter
}

func New(namespace string) *Metrics {
	r := prometheus.NewRegistry()
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	m := &Metrics{
		registry: r,
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "sessions_active"}),
		waiting:  prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "sessions_waiting"}),
		rooms:    prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "rooms_active"}),
		matches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "matches_total",
		}, []string{"partner"}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "messages_relayed_total",
		}, []string{"kind"}),
		signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "signals_relayed_total",
		}, []string{"kind"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "outbound_dropped_total",
			Help: "Outbound events dropped because a client send buffer was full.",
		}, []string{"event"}),
		persistDrop: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "persistence_dropped_total",
			Help: "Persistence jobs dropped or failed.",
		}),
	}
	r.MustRegister(m.sessions, m.waiting, m.rooms, m.matches, m.messages, m.signals, m.dropped, m.persistDrop)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SetPresence records the sizes of the registry, waiting pool and room table.
func (m *Metrics) SetPresence(sessions, waiting, rooms int) {
	if m == nil {
		return
	}
	m.sessions.Set(float64(sessions))
	m.waiting.Set(float64(waiting))
	m.rooms.Set(float64(rooms))
}

// MatchMade counts a match; partner is "human" or "synthetic".
func (m *Metrics) MatchMade(partner string) {
	if m == nil {
		return
	}
	m.matches.WithLabelValues(partner).Inc()
}

func (m *Metrics) MessageRelayed(kind string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(kind).Inc()
}

func (m *Metrics) SignalRelayed(kind string) {
	if m == nil {
		return
	}
	m.signals.WithLabelValues(kind).Inc()
}

func (m *Metrics) OutboundDropped(event string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(event).Inc()
}

func (m *Metrics) PersistenceDropped() {
	if m == nil {
		return
	}
	m.persistDrop.Inc()
}
