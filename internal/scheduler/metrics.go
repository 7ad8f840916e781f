package scheduler

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"activity-tracker/internal/domain"
)

// Metrics are the collector's Prometheus instruments.
type Metrics struct {
	stored           *prometheus.CounterVec
	absent           *prometheus.CounterVec
	writeErrors      prometheus.Counter
	authFailures     prometheus.Counter
	authConsecutive  prometheus.Gauge
	collectionTiming prometheus.Histogram
}

// NewMetrics registers the instruments on reg. A nil reg leaves them
// unregistered, which tests use to avoid global state.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		stored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_samples_stored_total",
			Help: "Samples appended to the store.",
		}, []string{"resource"}),
		absent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_samples_absent_total",
			Help: "Fetches that produced no sample, by reason.",
		}, []string{"resource", "reason"}),
		writeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_store_write_errors_total",
			Help: "Samples dropped because the store rejected the write.",
		}),
		authFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_auth_failures_total",
			Help: "Collection passes skipped because authentication failed.",
		}),
		authConsecutive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_auth_consecutive_failures",
			Help: "Authentication failures since the last successful authentication.",
		}),
		collectionTiming: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracker_collection_duration_seconds",
			Help:    "Wall time of one collection pass.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}

	if reg != nil {
		reg.MustRegister(m.stored, m.absent, m.writeErrors, m.authFailures, m.authConsecutive, m.collectionTiming)
	}
	return m
}

func absentReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, domain.ErrFetchFailure):
		return "fetch"
	default:
		return "other"
	}
}
