package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"pitchsheet/pkg/models"
)

// Metrics exposes pipeline counters to Prometheus. A nil *Metrics is a no-op.
type Metrics struct {
	stepDuration *prometheus.HistogramVec
	runsTotal    *prometheus.CounterVec
}

// NewMetrics registers the pipeline collectors on reg. A nil reg creates
// unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		stepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pitchsheet",
			Name:      "pipeline_step_duration_seconds",
			Help:      "Duration of pipeline steps.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"step", "status"}),
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pitchsheet",
			Name:      "pipeline_runs_total",
			Help:      "Pipeline runs by final status.",
		}, []string{"status"}),
	}
}

func (m *Metrics) observeStep(step, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.stepDuration.WithLabelValues(step, status).Observe(d.Seconds())
}

func (m *Metrics) runFinished(status models.RunStatus) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(string(status)).Inc()
}
