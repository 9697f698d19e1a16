package executor

import "github.com/prometheus/client_golang/prometheus"

var (
	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trast",
			Subsystem: "executor",
			Name:      "jobs_total",
			Help:      "Jobs by final outcome",
		},
		[]string{"outcome"},
	)

	rejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trast",
			Subsystem: "executor",
			Name:      "rejected_total",
			Help:      "Submissions rejected without executing",
		},
		[]string{"reason"},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "trast",
			Subsystem: "executor",
			Name:      "queue_depth",
			Help:      "Jobs waiting in the backlog",
		},
	)

	executing = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "trast",
			Subsystem: "executor",
			Name:      "executing",
			Help:      "Jobs holding an execution slot",
		},
	)

	jobDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "trast",
			Subsystem: "executor",
			Name:      "job_duration_seconds",
			Help:      "Compute time per job, queueing excluded",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(jobsTotal, rejectedTotal, queueDepth, executing, jobDuration)
}
