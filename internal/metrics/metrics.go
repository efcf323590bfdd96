package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles the feed engine collectors on an explicit registry so
// tests and the HTTP server can share one instance without globals.
type Metrics struct {
	registry *prometheus.Registry

	EventsConsumed *prometheus.CounterVec
	EventsDropped  prometheus.Counter
	FlashesFired   *prometheus.CounterVec
	RankedTotal    prometheus.Gauge
	ReadyTotal     prometheus.Gauge
	PollFailures   prometheus.Counter
	AlertsSent     prometheus.Counter
}

// New constructs and registers all collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		EventsConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "opusfeed",
			Name:      "events_consumed_total",
			Help:      "Upstream events normalized into the feed, by event type.",
		}, []string{"type"}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "opusfeed",
			Name:      "events_dropped_total",
			Help:      "Upstream events dropped as unrecognized or malformed.",
		}),
		FlashesFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "opusfeed",
			Name:      "flashes_fired_total",
			Help:      "Flash signals emitted, by direction.",
		}, []string{"direction"}),
		RankedTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "opusfeed",
			Name:      "ranked_candidates",
			Help:      "Candidates in the latest ranked snapshot.",
		}),
		ReadyTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "opusfeed",
			Name:      "ready_candidates",
			Help:      "Candidates currently flagged ready to trade.",
		}),
		PollFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "opusfeed",
			Name:      "poll_failures_total",
			Help:      "Failed ranked-list refresh attempts.",
		}),
		AlertsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "opusfeed",
			Name:      "alerts_sent_total",
			Help:      "Readiness alerts dispatched.",
		}),
	}

	registry.MustRegister(
		m.EventsConsumed,
		m.EventsDropped,
		m.FlashesFired,
		m.RankedTotal,
		m.ReadyTotal,
		m.PollFailures,
		m.AlertsSent,
	)
	return m
}

// Registry exposes the underlying registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
