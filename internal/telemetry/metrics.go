package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors this service registers. A value is
// constructed once at startup and threaded through the components that need it.
type Metrics struct {
	SyncRunsTotal    *prometheus.CounterVec
	StoreSyncsTotal  *prometheus.CounterVec
	PlatformCalls    *prometheus.CounterVec
	RetryAttempts    *prometheus.CounterVec
	SyncRunDuration  *prometheus.HistogramVec
}

// NewMetrics builds the metric collectors but does not register them.
func NewMetrics() *Metrics {
	return &Metrics{
		SyncRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "syncengine",
				Subsystem: "sync",
				Name:      "runs_total",
				Help:      "Total number of orchestrator runs by job name and terminal status.",
			},
			[]string{"job", "status"},
		),
		StoreSyncsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "syncengine",
				Subsystem: "sync",
				Name:      "store_syncs_total",
				Help:      "Total number of per-store sync attempts by job name and outcome.",
			},
			[]string{"job", "outcome"},
		),
		PlatformCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "syncengine",
				Subsystem: "platform",
				Name:      "api_calls_total",
				Help:      "Total number of outbound platform API calls by endpoint and error class.",
			},
			[]string{"endpoint", "class"},
		),
		RetryAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "syncengine",
				Subsystem: "resync",
				Name:      "retry_attempts_total",
				Help:      "Total number of retry attempts by operation label.",
			},
			[]string{"label"},
		),
		SyncRunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "syncengine",
				Subsystem: "sync",
				Name:      "run_duration_seconds",
				Help:      "Duration of orchestrator runs in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"job"},
		),
	}
}

// Register adds all collectors to the given registry.
func (m *Metrics) Register(reg *prometheus.Registry) error {
	for _, c := range []prometheus.Collector{
		m.SyncRunsTotal, m.StoreSyncsTotal, m.PlatformCalls, m.RetryAttempts, m.SyncRunDuration,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry builds a fresh Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}
