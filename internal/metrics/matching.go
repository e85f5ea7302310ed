package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "lostmatch"

// Matching engine Prometheus metrics.
var (
	ComparisonsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "comparisons_total",
			Help:      "Candidate comparisons by strategy and outcome",
		},
		[]string{"strategy", "outcome"}, // image|text ; ok|skipped|unavailable|error
	)

	ComparisonDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "comparison_duration_seconds",
			Help:      "Candidate comparison duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"strategy"},
	)

	TextFallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "text_fallback_total",
			Help:      "Text comparisons that fell back to local token overlap",
		},
		[]string{"provider", "reason"}, // reason: probe|error
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_total",
			Help:      "Embedding cache lookups by result",
		},
		[]string{"result"}, // hit|miss|error
	)

	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Orchestration runs by source kind and outcome",
		},
		[]string{"kind", "outcome"}, // outcome: matched|empty|error
	)

	RankedCandidates = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ranked_candidates",
			Help:      "Accepted candidates per run",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 25, 50, 100},
		},
	)

	PersistedMatchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persisted_matches_total",
			Help:      "Match rows written by top-N persistence",
		},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification deliveries by channel and outcome",
		},
		[]string{"channel", "outcome"}, // email|in_app|realtime ; sent|skipped|failed
	)

	SchedulerCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_cycles_total",
			Help:      "Periodic re-matching cycles by outcome",
		},
		[]string{"outcome"}, // completed|skipped_overlap|skipped_locked|error
	)

	SchedulerCycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scheduler_cycle_duration_seconds",
			Help:      "Periodic re-matching cycle duration in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
	)

	RealtimeConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "realtime_connections",
			Help:      "Open realtime event streams",
		},
	)
)

var matchingMetricsRegistered bool

// RegisterMatchingMetrics registers Prometheus matching metrics. Must be called once from main.
func RegisterMatchingMetrics() {
	if matchingMetricsRegistered {
		return
	}
	prometheus.MustRegister(
		ComparisonsTotal,
		ComparisonDuration,
		TextFallbackTotal,
		EmbeddingCacheTotal,
		RunsTotal,
		RankedCandidates,
		PersistedMatchesTotal,
		NotificationsTotal,
		SchedulerCyclesTotal,
		SchedulerCycleDuration,
		RealtimeConnections,
	)
	matchingMetricsRegistered = true
}
