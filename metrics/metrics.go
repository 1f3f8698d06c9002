// Package metrics provides the Prometheus collectors of the service.
//
// HTTP server:
//   - http_request_total: counter with method, path and status labels
//   - http_request_duration_seconds: histogram with method and path labels
//   - http_request_in_flight: gauge of concurrent requests
//   - rate_limiter_buckets_total: gauge of tracked client IPs
//
// Water quality:
//   - hubeau_requests_total: upstream calls by outcome
//   - hubeau_request_duration_seconds: upstream latency
//   - sample_cache_lookups_total: disk cache lookups by result
//   - quality_reports_total: commune reports by risk level
//   - postal_mapping_postal_codes / postal_mapping_communes: loaded mapping size
//
// All collectors are registered with the default registry at package init.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Hub'Eau request outcomes.
const (
	OutcomeSuccess     = "success"
	OutcomeRateLimited = "rate_limited"
	OutcomeHTTPError   = "http_error"
	OutcomeNetwork     = "network_error"
	OutcomeDecode      = "decode_error"
)

// Cache lookup results.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheStale = "stale"
)

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	RateLimiterBucketsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets_total",
			Help: "Total number of rate limiter buckets (IPs seen in last ~5 minutes)",
		},
	)

	HubeauRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hubeau_requests_total",
			Help: "Hub'Eau API requests by outcome",
		},
		[]string{"outcome"},
	)

	HubeauRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hubeau_request_duration_seconds",
			Help:    "Hub'Eau API request latency",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	SampleCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sample_cache_lookups_total",
			Help: "Sample cache lookups by result",
		},
		[]string{"result"},
	)

	QualityReportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quality_reports_total",
			Help: "Commune quality reports by risk level",
		},
		[]string{"level"},
	)

	MappingPostalCodes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "postal_mapping_postal_codes",
			Help: "Postal codes in the loaded mapping",
		},
	)

	MappingCommunes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "postal_mapping_communes",
			Help: "Communes in the loaded mapping",
		},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(RateLimiterBucketsTotal)
	prometheus.MustRegister(HubeauRequestsTotal)
	prometheus.MustRegister(HubeauRequestDuration)
	prometheus.MustRegister(SampleCacheLookups)
	prometheus.MustRegister(QualityReportsTotal)
	prometheus.MustRegister(MappingPostalCodes)
	prometheus.MustRegister(MappingCommunes)
}
