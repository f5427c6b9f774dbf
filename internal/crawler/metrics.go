package crawler

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/spider-crawler/seoaudit/internal/check"
)

// Metrics holds the crawler collectors.
type Metrics struct {
	PagesFetched *prometheus.CounterVec
	FetchErrors  prometheus.Counter
	Renders      *prometheus.CounterVec
	CacheHits    prometheus.Counter
	Blocked      prometheus.Counter
}

// NewMetrics registers the crawler metrics on reg, or the default registerer
// when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		PagesFetched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: check.MetricsNamespace,
			Subsystem: "crawler",
			Name:      "pages_fetched_total",
			Help:      "Pages fetched by status class.",
		}, []string{"status_class"}),
		FetchErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: check.MetricsNamespace,
			Subsystem: "crawler",
			Name:      "fetch_errors_total",
			Help:      "Fetches that produced no usable response.",
		}),
		Renders: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: check.MetricsNamespace,
			Subsystem: "crawler",
			Name:      "renders_total",
			Help:      "Chromium renders by outcome.",
		}, []string{"outcome"}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: check.MetricsNamespace,
			Subsystem: "crawler",
			Name:      "cache_hits_total",
			Help:      "Responses served from the response cache.",
		}),
		Blocked: factory.NewCounter(prometheus.CounterOpts{
			Namespace: check.MetricsNamespace,
			Subsystem: "crawler",
			Name:      "robots_blocked_total",
			Help:      "URLs skipped because robots.txt disallows them.",
		}),
	}
}

func (m *Metrics) observeFetch(status int, cached bool) {
	if m == nil {
		return
	}
	m.PagesFetched.WithLabelValues(strconv.Itoa(status/100) + "xx").Inc()
	if cached {
		m.CacheHits.Inc()
	}
}

func (m *Metrics) observeFetchError() {
	if m == nil {
		return
	}
	m.FetchErrors.Inc()
}

func (m *Metrics) observeRender(ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.Renders.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeBlocked() {
	if m == nil {
		return
	}
	m.Blocked.Inc()
}
