package query

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Step results recorded by Metrics.
const (
	ResultCommitted = "committed"
	ResultCancelled = "cancelled"
	ResultFailed    = "failed"
)

// Metrics holds the Prometheus collectors of query contexts. A nil
// *Metrics records nothing.
type Metrics struct {
	Steps         *prometheus.CounterVec
	PhaseDuration *prometheus.HistogramVec
	ViewRows      prometheus.Gauge
}

// NewMetrics creates and registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	steps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cubecat_steps_total",
		Help: "Materialization steps by result",
	}, []string{"result"})

	phaseDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cubecat_phase_duration_seconds",
		Help:    "Time spent in each step phase",
		Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
	}, []string{"phase"})

	viewRows := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cubecat_view_rows",
		Help: "Visible rows or nodes of the last committed view",
	})

	reg.MustRegister(steps, phaseDuration, viewRows)

	return &Metrics{
		Steps:         steps,
		PhaseDuration: phaseDuration,
		ViewRows:      viewRows,
	}
}

func (m *Metrics) step(result string) {
	if m == nil {
		return
	}
	m.Steps.WithLabelValues(result).Inc()
}

func (m *Metrics) phase(p Phase, d time.Duration) {
	if m == nil {
		return
	}
	m.PhaseDuration.WithLabelValues(p.String()).Observe(d.Seconds())
}

func (m *Metrics) rows(n int) {
	if m == nil {
		return
	}
	m.ViewRows.Set(float64(n))
}
