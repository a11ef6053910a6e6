package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "shelter_alerts"

// Metrics holds the Prometheus collectors for fan-out, push delivery and voting.
type Metrics struct {
	FanoutRuns        *prometheus.CounterVec // labels: result={complete,partial,error}
	FanoutDuration    prometheus.Histogram
	AffectedDevices   prometheus.Histogram
	Dispatches        *prometheus.CounterVec // labels: outcome={sent,failed,no_shelter,not_attempted}
	PushSendDuration  prometheus.Histogram
	Votes             *prometheus.CounterVec // labels: direction={UPVOTE,DOWNVOTE}
	StatusTransitions *prometheus.CounterVec // labels: from, to
	AlertsCreated     *prometheus.CounterVec // labels: status
	EventsDropped     prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry registers all metrics with reg. One-shot tools pass a
// private registry so nothing is exported.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	m := newMetrics()
	reg.MustRegister(
		m.FanoutRuns,
		m.FanoutDuration,
		m.AffectedDevices,
		m.Dispatches,
		m.PushSendDuration,
		m.Votes,
		m.StatusTransitions,
		m.AlertsCreated,
		m.EventsDropped,
	)
	return m
}

// NewMetricsForTesting returns unregistered metrics so tests can build as many
// as they like without "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FanoutRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fanout_runs_total",
			Help:      "Alert fan-out runs by result.",
		}, []string{"result"}),
		FanoutDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fanout_duration_seconds",
			Help:      "Wall time of a complete fan-out run.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		AffectedDevices: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fanout_affected_devices",
			Help:      "Devices inside the alert radius per fan-out run.",
			Buckets:   []float64{0, 1, 5, 10, 50, 100, 500, 1000, 5000},
		}),
		Dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fanout_dispatches_total",
			Help:      "Per-device fan-out outcomes.",
		}, []string{"outcome"}),
		PushSendDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "push_send_duration_seconds",
			Help:      "Push gateway send latency.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		Votes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_total",
			Help:      "Votes recorded by direction.",
		}, []string{"direction"}),
		StatusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_status_transitions_total",
			Help:      "Alert status changes caused by votes.",
		}, []string{"from", "to"}),
		AlertsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_created_total",
			Help:      "Alerts created by initial status.",
		}, []string{"status"}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Alert events dropped for slow best-effort subscribers.",
		}),
	}
}
