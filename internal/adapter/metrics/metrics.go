package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "trailwatch"

// AnalysisMetrics holds all Prometheus metrics for the analysis service.
type AnalysisMetrics struct {
	EventsClassified  *prometheus.CounterVec
	BlobsTotal        *prometheus.CounterVec
	AnalysisDuration  *prometheus.HistogramVec
	RuleReplacements  *prometheus.CounterVec
	RulesLoaded       *prometheus.GaugeVec
	LoginAttempts     *prometheus.CounterVec
	Notifications     *prometheus.CounterVec
	UserCacheHits     prometheus.Counter
	UserCacheMisses   prometheus.Counter
	HTTPRequestsTotal *prometheus.CounterVec
}

// NewAnalysisMetrics initializes the metrics and registers them with reg.
// Passing a fresh prometheus.NewRegistry() keeps tests independent.
func NewAnalysisMetrics(reg prometheus.Registerer) *AnalysisMetrics {
	f := promauto.With(reg)
	return &AnalysisMetrics{
		EventsClassified: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "events_total",
			Help:      "Total number of classified events by strategy and risk level.",
		}, []string{"strategy", "risk"}),
		BlobsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "blobs_total",
			Help:      "Total number of processed log blobs by status.",
		}, []string{"status"}), // status: ok, source_error, decode_error
		AnalysisDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "duration_seconds",
			Help:      "Duration of analysis runs.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		RuleReplacements: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rules",
			Name:      "replacements_total",
			Help:      "Total number of custom rule replacements by result.",
		}, []string{"result"}), // result: ok, invalid, error
		RulesLoaded: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rules",
			Name:      "loaded",
			Help:      "Number of rules currently loaded by origin.",
		}, []string{"origin"}),
		LoginAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "login_attempts_total",
			Help:      "Total number of login attempts by outcome.",
		}, []string{"outcome"}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifier",
			Name:      "findings_total",
			Help:      "Total number of high-risk findings handed to the notifier by status.",
		}, []string{"status"}), // status: sent, error, spooled, redelivered
		UserCacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "user_cache_hits_total",
			Help:      "Total number of user cache hits.",
		}),
		UserCacheMisses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "user_cache_misses_total",
			Help:      "Total number of user cache misses.",
		}),
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method and status.",
		}, []string{"method", "status"}),
	}
}
