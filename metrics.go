package mockwire

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeMatched        = "matched"
	outcomeUnmatched      = "unmatched"
	outcomeTransportError = "transport_error"
	outcomePassthrough    = "passthrough"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mockwire",
		Name:      "requests_total",
		Help:      "Requests intercepted by the mock transport, by method and outcome.",
	}, []string{"method", "outcome"})

	responderDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mockwire",
		Name:      "responder_duration_seconds",
		Help:      "Time spent producing a mock response, including configured delays.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	overrideLayers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "mockwire",
		Name:      "override_layers",
		Help:      "Override layers currently stacked on top of base handler sets.",
	})
)
