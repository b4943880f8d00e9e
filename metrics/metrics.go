// Package metrics exposes the engine's Prometheus instrumentation:
// tick timing, combat counters, bus overflow, and bridge health. A
// single Metrics value is built at startup and handed to the components
// that record into it.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every engine-level collector, registered on its own
// registry so tests can construct isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	TickDuration     prometheus.Histogram
	ShotsFired       prometheus.Counter
	Eliminations     prometheus.Counter
	BusOverflows     prometheus.Counter
	BridgeReconnects *prometheus.CounterVec
	BridgeInbound    *prometheus.CounterVec
	ProtocolErrors   *prometheus.CounterVec
	Subscribers      prometheus.Gauge
	LiveTargets      prometheus.Gauge
	WSClients        prometheus.Gauge
	LLMThinkCalls    *prometheus.CounterVec
}

// New builds and registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tritium_tick_duration_seconds",
			Help:    "Wall time of each simulation tick.",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}),
		ShotsFired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tritium_shots_fired_total",
			Help: "Shots fired across all combatants.",
		}),
		Eliminations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tritium_eliminations_total",
			Help: "Targets eliminated.",
		}),
		BusOverflows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tritium_bus_overflow_total",
			Help: "Events dropped on a full subscriber queue.",
		}),
		BridgeReconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tritium_bridge_reconnects_total",
			Help: "Bridge transport reconnect attempts.",
		}, []string{"bridge"}),
		BridgeInbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tritium_bridge_inbound_total",
			Help: "Inbound messages accepted per bridge.",
		}, []string{"bridge"}),
		ProtocolErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tritium_protocol_errors_total",
			Help: "Malformed inbound payloads dropped per bridge.",
		}, []string{"bridge"}),
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tritium_eventbus_subscribers",
			Help: "Live event bus subscriptions.",
		}),
		LiveTargets: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tritium_live_targets",
			Help: "Targets currently tracked by the engine.",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tritium_ws_clients",
			Help: "Connected telemetry websocket clients.",
		}),
		LLMThinkCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tritium_llm_think_calls_total",
			Help: "NPC think calls by outcome (ok, error, fallback).",
		}, []string{"outcome"}),
	}
	reg.MustRegister(
		m.TickDuration, m.ShotsFired, m.Eliminations, m.BusOverflows,
		m.BridgeReconnects, m.BridgeInbound, m.ProtocolErrors,
		m.Subscribers, m.LiveTargets, m.WSClients, m.LLMThinkCalls,
	)
	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
