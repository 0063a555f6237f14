package analyzer

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	MetricAnalysesTotal      = "session_analyses_total"
	MetricAnalysisDuration   = "session_analysis_duration_seconds"
	MetricAnalysisErrorTotal = "session_analysis_errors_total"
)

// Outcome labels for MetricAnalysesTotal.
const (
	OutcomeSuccess = "success"
	OutcomeEmpty   = "empty"
	OutcomeFailure = "failure"
)

// Metrics contains Prometheus collectors for analyses. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	analysesTotal    *prometheus.CounterVec
	analysisDuration prometheus.Histogram
	analysisErrors   *prometheus.CounterVec
}

// NewMetrics creates unregistered collectors; call Register to expose them.
func NewMetrics() *Metrics {
	return &Metrics{
		analysesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricAnalysesTotal,
				Help: "Total number of session analyses by outcome",
			},
			[]string{"outcome"},
		),
		analysisDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    MetricAnalysisDuration,
				Help:    "Histogram of session analysis duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
		),
		analysisErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricAnalysisErrorTotal,
				Help: "Total number of failed session analyses by error kind",
			},
			[]string{"kind"},
		),
	}
}

func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.analysesTotal,
		m.analysisDuration,
		m.analysisErrors,
	}
}

func (m *Metrics) incOutcome(outcome string) {
	if m == nil {
		return
	}
	m.analysesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) incError(kind Kind) {
	if m == nil {
		return
	}
	m.analysisErrors.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) observe(seconds float64) {
	if m == nil {
		return
	}
	m.analysisDuration.Observe(seconds)
}
