package check

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsNamespace prefixes every exported metric.
const MetricsNamespace = "seoaudit"

// Metrics holds the Prometheus collectors updated by the executor.
type Metrics struct {
	ChecksExecuted *prometheus.CounterVec
	CheckDuration  *prometheus.HistogramVec
	CheckPanics    *prometheus.CounterVec
	PagesAudited   prometheus.Counter
}

// NewMetrics creates and registers the executor metrics on reg. A nil reg
// uses the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		ChecksExecuted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "checks_executed_total",
			Help:      "Check executions by check id and worst result status.",
		}, []string{"check_id", "status"}),
		CheckDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Name:      "check_duration_seconds",
			Help:      "Time spent in a single check execution.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5, 30},
		}, []string{"check_id"}),
		CheckPanics: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "check_panics_total",
			Help:      "Check executions that panicked.",
		}, []string{"check_id"}),
		PagesAudited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "pages_audited_total",
			Help:      "Pages that went through the check executor.",
		}),
	}
}

func (m *Metrics) observeCheck(id string, status Status, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ChecksExecuted.WithLabelValues(id, string(status)).Inc()
	m.CheckDuration.WithLabelValues(id).Observe(elapsed.Seconds())
}

func (m *Metrics) observePanic(id string) {
	if m == nil {
		return
	}
	m.CheckPanics.WithLabelValues(id).Inc()
}

func (m *Metrics) observePage() {
	if m == nil {
		return
	}
	m.PagesAudited.Inc()
}
