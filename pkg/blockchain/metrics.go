package blockchain

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queueDepthGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "client_runtime_queue_depth",
		Help: "Number of requests waiting for the client runtime",
	})
	requestTimeHistogramVec = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "client_runtime_request_time",
			Help:    "Client runtime request execution duration distribution in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
		[]string{"request"},
	)
	requestsCounterVec = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "client_runtime_requests_total",
			Help: "Client runtime requests by outcome",
		},
		[]string{"request", "outcome"},
	)
)
