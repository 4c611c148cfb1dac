package metric

import "github.com/prometheus/client_golang/prometheus"

// Metrics contains the harness core metrics
type Metrics struct {
	// One increment per dispatched request; status is pass/fail/timeout/error
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Listener lifecycle
	ListenerState    *prometheus.GaugeVec // 0=down, 1=starting, 2=ready
	ListenersStarted prometheus.Counter
	ReadinessSeconds prometheus.Histogram

	// Build step
	BuildsTotal *prometheus.CounterVec
}

// NewMetrics creates the harness core metrics
func NewMetrics() *Metrics {
	return &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "janus",
				Subsystem: "requests",
				Name:      "total",
				Help:      "Requests dispatched, by pattern category, client implementation, and outcome status",
			},
			[]string{"pattern", "client", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "janus",
				Subsystem: "requests",
				Name:      "duration_seconds",
				Help:      "Round-trip time per request",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"pattern"},
		),
		ListenerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "janus",
				Subsystem: "listener",
				Name:      "state",
				Help:      "Listener state (0=down, 1=starting, 2=ready)",
			},
			[]string{"implementation"},
		),
		ListenersStarted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "janus",
				Subsystem: "listener",
				Name:      "starts_total",
				Help:      "Listener processes spawned",
			},
		),
		ReadinessSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "janus",
				Subsystem: "listener",
				Name:      "readiness_seconds",
				Help:      "Time from spawn to readiness signal",
				Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
		),
		BuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "janus",
				Subsystem: "build",
				Name:      "total",
				Help:      "Build invocations by implementation and result",
			},
			[]string{"implementation", "status"},
		),
	}
}

func (m *Metrics) register(reg *prometheus.Registry) {
	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.ListenerState,
		m.ListenersStarted,
		m.ReadinessSeconds,
		m.BuildsTotal,
	)
}
