package prepare

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checksTotal  *prometheus.CounterVec
	fixesTotal   *prometheus.CounterVec
	fixDuration  *prometheus.HistogramVec
	runsTotal    *prometheus.CounterVec
	unsatisfied  *prometheus.GaugeVec
	metricsOnce  sync.Once
	registeredOK bool
)

// InitMetrics registers the prepare metrics with the default registry. It is
// safe to call more than once.
func InitMetrics() {
	metricsOnce.Do(func() {
		checksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kapsel_requirement_checks_total",
				Help: "Total number of requirement status checks",
			},
			[]string{"kind", "result"},
		)

		fixesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kapsel_requirement_fixes_total",
				Help: "Total number of requirement fix attempts",
			},
			[]string{"kind", "result"},
		)

		fixDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kapsel_requirement_fix_duration_seconds",
				Help:    "Duration of requirement fixes in seconds",
				Buckets: []float64{0.01, 0.1, 1, 10, 60, 300},
			},
			[]string{"kind"},
		)

		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kapsel_prepare_runs_total",
				Help: "Total number of prepare passes",
			},
			[]string{"mode", "result"},
		)

		unsatisfied = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "kapsel_requirements_unsatisfied",
				Help: "Requirements left unsatisfied by the last prepare pass",
			},
			[]string{"mode"},
		)

		registeredOK = true
	})
}

// IsMetricsRegistered reports whether InitMetrics ran.
func IsMetricsRegistered() bool {
	return registeredOK
}

// Metrics records prepare activity. The zero value is usable; nothing is
// recorded until InitMetrics has been called.
type Metrics struct{}

// NewMetrics creates a recorder.
func NewMetrics() *Metrics {
	return &Metrics{}
}

func resultLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}

// RecordCheck records one status check.
func (m *Metrics) RecordCheck(kind string, satisfied bool) {
	if m == nil || !registeredOK {
		return
	}
	checksTotal.WithLabelValues(kind, resultLabel(satisfied)).Inc()
}

// RecordFix records one fix attempt.
func (m *Metrics) RecordFix(kind string, ok bool, durationSeconds float64) {
	if m == nil || !registeredOK {
		return
	}
	fixesTotal.WithLabelValues(kind, resultLabel(ok)).Inc()
	fixDuration.WithLabelValues(kind).Observe(durationSeconds)
}

// RecordRun records a finished pass.
func (m *Metrics) RecordRun(mode UIMode, failed int) {
	if m == nil || !registeredOK {
		return
	}
	runsTotal.WithLabelValues(string(mode), resultLabel(failed == 0)).Inc()
	unsatisfied.WithLabelValues(string(mode)).Set(float64(failed))
}

// WriteMetrics writes the default registry in the Prometheus text format to
// path, for collection by node_exporter's textfile collector.
func WriteMetrics(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
