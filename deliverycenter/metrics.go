package deliverycenter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the delivery center client and cache metrics.
type Metrics struct {
	// Cache operation metrics
	CacheHitsTotal   *prometheus.CounterVec // by kind (roster, completions)
	CacheMissesTotal *prometheus.CounterVec // by kind (roster, completions)
	CacheEntries     *prometheus.GaugeVec   // by kind

	// Upstream call metrics
	RequestsTotal          *prometheus.CounterVec   // by endpoint, outcome (ok, auth_expired, failed)
	RequestDurationSeconds *prometheus.HistogramVec // by endpoint
	PagesFetchedTotal      prometheus.Counter
	PageCeilingHitsTotal   prometheus.Counter

	// Roster filter metrics
	ExcludedWorkers    prometheus.Gauge
	UnknownStatusTotal *prometheus.CounterVec // by code
}

// NewMetrics registers all metrics on reg. Pass prometheus.NewRegistry() in
// tests so repeated construction does not collide.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CacheHitsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "grade_deliverycenter_cache_hits_total",
			Help: "Total number of delivery center cache hits by kind",
		}, []string{"kind"}),

		CacheMissesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "grade_deliverycenter_cache_misses_total",
			Help: "Total number of delivery center cache misses by kind",
		}, []string{"kind"}),

		CacheEntries: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "grade_deliverycenter_cache_entries",
			Help: "Current number of cache entries by kind",
		}, []string{"kind"}),

		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "grade_deliverycenter_requests_total",
			Help: "Total number of upstream requests by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),

		RequestDurationSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "grade_deliverycenter_request_duration_seconds",
			Help:    "Duration of upstream requests by endpoint",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}, []string{"endpoint"}),

		PagesFetchedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "grade_deliverycenter_status_pages_fetched_total",
			Help: "Total number of delivery status pages fetched",
		}),

		PageCeilingHitsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "grade_deliverycenter_status_page_ceiling_hits_total",
			Help: "Completion fetches that stopped at the page ceiling without an empty page",
		}),

		ExcludedWorkers: f.NewGauge(prometheus.GaugeOpts{
			Name: "grade_deliverycenter_excluded_workers",
			Help: "Workers excluded from the last roster fetch by contract status",
		}),

		UnknownStatusTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "grade_deliverycenter_unknown_status_codes_total",
			Help: "Roster records carrying an account status code not seen in the known list",
		}, []string{"code"}),
	}
}
