package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LoginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_logins_total",
			Help: "Total number of login attempts",
		},
		[]string{"outcome"},
	)

	AuthzDenialsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_authz_denials_total",
			Help: "Total number of authorization denials",
		},
		[]string{"reason"},
	)

	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_upstream_requests_total",
			Help: "Total number of requests forwarded to the analytics API",
		},
		[]string{"resource", "method", "code"},
	)

	UpstreamFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "argus_upstream_failures_total",
			Help: "Total number of upstream transport failures",
		},
		[]string{"resource", "reason"},
	)

	UpstreamRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "argus_upstream_request_duration_seconds",
			Help:    "Time spent on forwarded upstream calls",
			Buckets: prometheus.DefBuckets,
		},
	)
)
