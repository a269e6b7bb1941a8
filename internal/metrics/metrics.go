package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "av_engine"

// Pipeline counters (incremented by the batch orchestrator).
var (
	FilesSucceeded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "files_succeeded_total",
		Help:      "Files that completed the full pipeline and were persisted.",
	})

	FilesSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "files_skipped_total",
		Help:      "Files skipped by the deduplication policy.",
	})

	FilesFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "files_failed_total",
		Help:      "Files that failed, by pipeline stage.",
	}, []string{"stage"})

	StageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "stage_duration_seconds",
		Help:      "Wall-clock duration of each pipeline stage.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 3, 10), // 100ms → ~1.6h
	}, []string{"stage"})

	FileDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "file_duration_seconds",
		Help:      "Wall-clock duration of the whole per-file pipeline.",
		Buckets:   prometheus.ExponentialBuckets(1, 3, 10),
	})

	DegradedStages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "degraded_stages_total",
		Help:      "Non-fatal stage failures (diarization, summarization) that degraded a result.",
	}, []string{"stage"})
)

func init() {
	prometheus.MustRegister(
		FilesSucceeded,
		FilesSkipped,
		FilesFailed,
		StageDuration,
		FileDuration,
		DegradedStages,
	)
}
