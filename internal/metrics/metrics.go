package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "aquaq"

var (
	AnalysisStartedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_started_total",
			Help:      "Total number of analysis workflows started.",
		},
	)

	AnalysisCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_completed_total",
			Help:      "Total number of analysis workflows finished, labeled by final status.",
		},
		[]string{"status"},
	)

	AnalysisDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "End-to-end latency from upload to terminal state (seconds).",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120, 300, 600},
		},
		[]string{"status"},
	)

	StreamSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_subscribers",
			Help:      "Current number of live progress-stream subscribers.",
		},
	)

	SessionsReapedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_reaped_total",
			Help:      "Total number of sessions removed by the periodic reaper.",
		},
	)

	ReportsDeletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_deleted_total",
			Help:      "Total number of report files deleted, labeled by reason.",
		},
		[]string{"reason"},
	)

	AnalyzerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyzer_requests_total",
			Help:      "Total number of AI analyzer requests, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	RateLimitHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_hits_total",
			Help:      "Total number of requests rejected by the rate limiter.",
		},
		[]string{"scope", "operation"},
	)
)

func init() {
	prometheus.MustRegister(
		AnalysisStartedTotal,
		AnalysisCompletedTotal,
		AnalysisDurationSeconds,
		StreamSubscribers,
		SessionsReapedTotal,
		ReportsDeletedTotal,
		AnalyzerRequestsTotal,
		RateLimitHitsTotal,
	)
}
