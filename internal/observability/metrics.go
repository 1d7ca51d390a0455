package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the assistant. Register once
// at startup and share the instance; all collectors are safe for concurrent
// use.
type Metrics struct {
	TurnsTotal          *prometheus.CounterVec
	TurnDuration        prometheus.Histogram
	ModelRoundTrips     prometheus.Counter
	ToolExecutionsTotal *prometheus.CounterVec
	ToolDuration        *prometheus.HistogramVec
	BusyRejections      prometheus.Counter
	JanitorEvictions    prometheus.Counter
	ActiveSessions      prometheus.Gauge
}

// NewMetrics creates and registers the collectors on the given registerer.
// Pass prometheus.DefaultRegisterer in production; tests use a fresh
// prometheus.NewRegistry to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TurnsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "orion_turns_total",
			Help: "Completed conversation turns by outcome.",
		}, []string{"outcome"}),
		TurnDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "orion_turn_duration_seconds",
			Help:    "Wall time of a full reasoning turn.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		ModelRoundTrips: factory.NewCounter(prometheus.CounterOpts{
			Name: "orion_model_round_trips_total",
			Help: "Requests sent to the reasoning model.",
		}),
		ToolExecutionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "orion_tool_executions_total",
			Help: "Tool invocations by tool name and outcome.",
		}, []string{"tool", "outcome"}),
		ToolDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "orion_tool_duration_seconds",
			Help:    "Tool invocation latency by tool name.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"tool"}),
		BusyRejections: factory.NewCounter(prometheus.CounterOpts{
			Name: "orion_busy_rejections_total",
			Help: "Messages turned away because the user's session was busy.",
		}),
		JanitorEvictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "orion_janitor_evictions_total",
			Help: "Idle sessions deleted by the cleanup pass.",
		}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "orion_active_sessions",
			Help: "Sessions currently held in memory.",
		}),
	}
}
