// Package metrics exposes the pipeline's Prometheus instruments. Workers
// record what they commit; the collector reports queue and store state on
// every scrape.
package metrics

import (
	"net/http"
	"time"

	"github.com/kiranshivaraju/consentscan/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "consentscan"

// Metrics holds the worker-side instruments. A nil *Metrics records nothing.
type Metrics struct {
	jobsCommitted    *prometheus.CounterVec
	analyzerDuration *prometheus.HistogramVec
	classifications  *prometheus.CounterVec
	itemsProcessed   prometheus.Counter
	inFlight         prometheus.Gauge
}

// New creates the instruments and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		jobsCommitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_committed_total",
			Help:      "Jobs moved to a terminal state, by status and tier.",
		}, []string{"status", "priority"}),
		analyzerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analyzer_duration_seconds",
			Help:      "Time spent in Analyze per job.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"analyzer", "outcome"}),
		classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      "Committed result items by category.",
		}, []string{"category"}),
		itemsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_processed_total",
			Help:      "Result items committed across all jobs.",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_in_flight",
			Help:      "Jobs claimed by this process and not yet committed.",
		}),
	}
	reg.MustRegister(m.jobsCommitted, m.analyzerDuration, m.classifications, m.itemsProcessed, m.inFlight)
	return m
}

// JobCommitted counts one terminal commit.
func (m *Metrics) JobCommitted(status models.JobStatus, priority models.Priority) {
	if m == nil {
		return
	}
	m.jobsCommitted.WithLabelValues(string(status), string(priority)).Inc()
}

// ObserveAnalyzer records one Analyze call.
func (m *Metrics) ObserveAnalyzer(analyzer string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.analyzerDuration.WithLabelValues(analyzer, outcome).Observe(d.Seconds())
}

// Classified adds the per-category counts of one committed result.
func (m *Metrics) Classified(categories map[string]int, items int) {
	if m == nil {
		return
	}
	for category, n := range categories {
		m.classifications.WithLabelValues(category).Add(float64(n))
	}
	m.itemsProcessed.Add(float64(items))
}

// Claimed marks a job as in flight and returns the func that clears it.
func (m *Metrics) Claimed() (done func()) {
	if m == nil {
		return func() {}
	}
	m.inFlight.Inc()
	return m.inFlight.Dec
}

// NewRegistry returns a registry carrying the Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves reg in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
