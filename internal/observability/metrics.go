package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters and histograms for the
// ingestion pipeline and the notification fan-out.
type Metrics struct {
	ObservationsFetched *prometheus.CounterVec // labels: source
	ObservationsSkipped *prometheus.CounterVec // labels: source, reason={invalid,duplicate}
	EventsPersisted     *prometheus.CounterVec // labels: source
	AdapterFailures     *prometheus.CounterVec // labels: source
	RunDuration         prometheus.Histogram

	NotificationsSent   prometheus.Counter
	NotificationsFailed prometheus.Counter
	EventsExpired       prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ObservationsFetched,
		m.ObservationsSkipped,
		m.EventsPersisted,
		m.AdapterFailures,
		m.RunDuration,
		m.NotificationsSent,
		m.NotificationsFailed,
		m.EventsExpired,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, to
// avoid "already registered" panics across tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ObservationsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "disaster_watch",
			Name:      "observations_fetched_total",
			Help:      "Observations parsed from provider feeds.",
		}, []string{"source"}),
		ObservationsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "disaster_watch",
			Name:      "observations_skipped_total",
			Help:      "Observations dropped before persistence, by reason.",
		}, []string{"source", "reason"}),
		EventsPersisted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "disaster_watch",
			Name:      "events_persisted_total",
			Help:      "New canonical events written to the store.",
		}, []string{"source"}),
		AdapterFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "disaster_watch",
			Name:      "adapter_failures_total",
			Help:      "Fetch or persistence failures, per adapter.",
		}, []string{"source"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "disaster_watch",
			Name:      "ingestion_run_duration_seconds",
			Help:      "Duration of one full orchestrator run across all adapters.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		NotificationsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "disaster_watch",
			Name:      "notifications_sent_total",
			Help:      "Push notifications dispatched successfully.",
		}),
		NotificationsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "disaster_watch",
			Name:      "notifications_failed_total",
			Help:      "Push notifications that failed to dispatch.",
		}),
		EventsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "disaster_watch",
			Name:      "events_expired_total",
			Help:      "Events removed by the expiry maintenance job.",
		}),
	}
}
