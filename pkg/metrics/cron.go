package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	CronSucceeded = "success"
	CronFailed    = "failure"
	// CronSkipped counts cycles where another replica held the job's lease.
	CronSkipped = "skipped"
)

// CronJobMetrics records one run outcome per job per cycle.
type CronJobMetrics struct {
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
}

// NewCronJobMetrics registers the cron job metrics. A nil registerer yields a no-op.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	m := &CronJobMetrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "cron",
			Name:      "job_duration_seconds",
			Help:      "Wall time of cron job runs that held their lease.",
			Buckets:   []float64{0.05, 0.25, 1, 5, 15, 60, 300},
		}, []string{"job"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "cron",
			Name:      "job_runs_total",
			Help:      "Cron job runs by outcome.",
		}, []string{"job", "outcome"}),
	}
	reg.MustRegister(m.duration, m.runs)
	return m
}

// Observe records a completed run. err decides the outcome.
func (c *CronJobMetrics) Observe(job string, took time.Duration, err error) {
	if c == nil || c.runs == nil {
		return
	}
	outcome := CronSucceeded
	if err != nil {
		outcome = CronFailed
	}
	c.duration.WithLabelValues(normalizeLabel(job)).Observe(took.Seconds())
	c.runs.WithLabelValues(normalizeLabel(job), outcome).Inc()
}

func (c *CronJobMetrics) Skipped(job string) {
	if c == nil || c.runs == nil {
		return
	}
	c.runs.WithLabelValues(normalizeLabel(job), CronSkipped).Inc()
}
