package parse

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// requestDuration tracks parse request latency.
	// Labels: result (ok, rejected, error)
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pinsync",
		Subsystem: "parse",
		Name:      "request_duration_seconds",
		Help:      "Duration of parse service requests",
		Buckets:   prometheus.DefBuckets,
	}, []string{"result"})

	// sharedTotal counts calls answered by another caller's in-flight request.
	sharedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pinsync",
		Subsystem: "parse",
		Name:      "shared_requests_total",
		Help:      "Parse calls that joined an identical in-flight request",
	})
)

const (
	resultOK       = "ok"
	resultRejected = "rejected"
	resultError    = "error"
)
