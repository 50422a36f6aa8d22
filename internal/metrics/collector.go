package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/consentscan/internal/maintenance"
	"github.com/kiranshivaraju/consentscan/pkg/models"
	"github.com/prometheus/client_golang/prometheus"
)

const defaultScrapeTimeout = 5 * time.Second

// Source is what PipelineCollector reads on each scrape. maintenance.Service
// satisfies it.
type Source interface {
	Stats(ctx context.Context) (*maintenance.Stats, error)
	OldestRunning(ctx context.Context) (time.Duration, bool, error)
}

// PipelineCollector reports queue depth, job counts and the age of the oldest
// running job. It reads the stores at scrape time, so values are never stale.
type PipelineCollector struct {
	source  Source
	timeout time.Duration

	queueDepth    *prometheus.Desc
	jobs          *prometheus.Desc
	oldestRunning *prometheus.Desc
	up            *prometheus.Desc
}

// NewPipelineCollector creates a collector over src. A non-positive timeout
// selects the default per-scrape bound.
func NewPipelineCollector(src Source, timeout time.Duration) *PipelineCollector {
	if timeout <= 0 {
		timeout = defaultScrapeTimeout
	}
	return &PipelineCollector{
		source:  src,
		timeout: timeout,
		queueDepth: prometheus.NewDesc(prometheus.BuildFQName(namespace, "queue", "depth"),
			"References waiting in each tier.", []string{"priority"}, nil),
		jobs: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "jobs"),
			"Jobs in the record store by status.", []string{"status"}, nil),
		oldestRunning: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "oldest_running_job_age_seconds"),
			"Age of the longest-running job, 0 when none is running.", nil, nil),
		up: prometheus.NewDesc(prometheus.BuildFQName(namespace, "pipeline", "up"),
			"1 if the last scrape could read the stores.", nil, nil),
	}
}

func (c *PipelineCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.queueDepth
	ch <- c.jobs
	ch <- c.oldestRunning
	ch <- c.up
}

func (c *PipelineCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	stats, err := c.source.Stats(ctx)
	if err != nil {
		slog.Warn("metrics scrape: stats unavailable", "error", err)
		ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 0)
		return
	}
	age, _, err := c.source.OldestRunning(ctx)
	if err != nil {
		slog.Warn("metrics scrape: oldest running job unavailable", "error", err)
		ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 0)
		return
	}

	for _, tier := range models.Priorities {
		ch <- prometheus.MustNewConstMetric(c.queueDepth, prometheus.GaugeValue,
			float64(stats.QueueDepth[tier]), string(tier))
	}
	for _, status := range []models.JobStatus{
		models.JobStatusQueued, models.JobStatusRunning, models.JobStatusFinished, models.JobStatusFailed,
	} {
		ch <- prometheus.MustNewConstMetric(c.jobs, prometheus.GaugeValue,
			float64(stats.Jobs[status]), string(status))
	}
	ch <- prometheus.MustNewConstMetric(c.oldestRunning, prometheus.GaugeValue, age.Seconds())
	ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 1)
}
