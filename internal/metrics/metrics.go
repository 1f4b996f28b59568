package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Measurement session metrics
	MeasurementsFinalized = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "imagery_compare",
		Subsystem: "measurement",
		Name:      "finalized_total",
		Help:      "Completed measurements by kind and the source of the value",
	}, []string{"kind", "source"})

	MeasurementsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "imagery_compare",
		Subsystem: "measurement",
		Name:      "failed_total",
		Help:      "Finalize attempts where neither the backend nor the local fallback produced a value",
	}, []string{"kind"})

	StaleResultsDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "imagery_compare",
		Subsystem: "measurement",
		Name:      "stale_results_discarded_total",
		Help:      "Backend responses dropped because the session moved on while they were in flight",
	})

	// Remote measurement backend
	RemoteRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "imagery_compare",
		Subsystem: "remote",
		Name:      "requests_total",
		Help:      "Measurement backend calls by endpoint and outcome",
	}, []string{"endpoint", "outcome"})

	RemoteRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "imagery_compare",
		Subsystem: "remote",
		Name:      "request_duration_seconds",
		Help:      "Measurement backend latency in seconds",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"endpoint"})

	// Viewport synchronization
	ViewSyncPropagations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "imagery_compare",
		Subsystem: "viewsync",
		Name:      "propagations_total",
		Help:      "View states copied from one viewport to the other",
	}, []string{"direction"})
)

// Remote call outcomes
const (
	OutcomeOK        = "ok"
	OutcomeCached    = "cached"
	OutcomePaused    = "paused"
	OutcomeHTTPError = "http_error"
	OutcomeTransport = "transport_error"
	OutcomeInvalid   = "invalid_result"
)

// Handler returns the Prometheus exposition handler
func Handler() http.Handler {
	return promhttp.Handler()
}
