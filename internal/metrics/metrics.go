package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "resolver",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "resolver",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 20},
	}, []string{"method", "path"})

	UpstreamRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "resolver",
		Name:      "upstream_requests_total",
		Help:      "Total requests to upstream services by service name and result status.",
	}, []string{"service", "status"})

	UpstreamRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "resolver",
		Name:      "upstream_request_duration_seconds",
		Help:      "Upstream service request duration in seconds.",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30},
	}, []string{"service"})

	UpstreamErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "resolver",
		Name:      "upstream_errors_total",
		Help:      "Total upstream failures by service name and operation.",
	}, []string{"service", "operation"})

	UpstreamAvailable = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "resolver",
		Name:      "upstream_available",
		Help:      "Whether an upstream service is available (1) or blocked by circuit breaker (0).",
	}, []string{"service"})

	ResolutionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "resolver",
		Name:      "resolutions_total",
		Help:      "Completed resolutions by outcome.",
	}, []string{"outcome"})

	ResolutionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "resolver",
		Name:      "resolution_duration_seconds",
		Help:      "End-to-end resolution duration in seconds.",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
	})

	CoalescedRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "resolver",
		Name:      "coalesced_requests_total",
		Help:      "Requests that attached to an in-flight resolution instead of starting their own.",
	})

	SupersededSearchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "resolver",
		Name:      "superseded_searches_total",
		Help:      "Debounced searches abandoned because a newer query arrived.",
	})

	LedgerEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "resolver",
		Name:      "ledger_entries",
		Help:      "Resolutions currently retained in the selection ledger.",
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		UpstreamRequestsTotal,
		UpstreamRequestDuration,
		UpstreamErrors,
		UpstreamAvailable,
		ResolutionsTotal,
		ResolutionDuration,
		CoalescedRequestsTotal,
		SupersededSearchesTotal,
		LedgerEntries,
	)
}
