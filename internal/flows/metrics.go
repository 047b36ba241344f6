package flows

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeOK              = "ok"
	outcomeInvalidInput    = "invalid_input"
	outcomeNoModel         = "no_model"
	outcomeProviderError   = "provider_error"
	outcomeSchemaViolation = "schema_violation"
)

// Metrics holds the flow collectors.
type Metrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the flow collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stipslite",
				Name:      "flow_runs_total",
				Help:      "AI flow invocations by flow and outcome.",
			},
			[]string{"flow", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "stipslite",
				Name:      "flow_duration_seconds",
				Help:      "AI flow latency, including the model call.",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"flow"},
		),
	}
	reg.MustRegister(m.runs, m.duration)
	return m
}

func (m *Metrics) observe(flow, outcome string, took time.Duration) {
	m.runs.WithLabelValues(flow, outcome).Inc()
	m.duration.WithLabelValues(flow).Observe(took.Seconds())
}
