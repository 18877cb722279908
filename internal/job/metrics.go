package job

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docenhance_jobs_total",
		Help: "Enhancement jobs by terminal state.",
	}, []string{"state"})

	jobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "docenhance_job_duration_seconds",
		Help:    "Wall-clock duration of enhancement jobs.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docenhance_cache_hits_total",
		Help: "Jobs served from a completed record without reprocessing.",
	})
)
