package api

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"divtrack/internal/errors"
)

type metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "divtrack",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Remote API calls by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "divtrack",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "Remote API call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.duration)
	}
	return m
}

func (m *metrics) observe(endpoint string, err error, d time.Duration) {
	m.requests.WithLabelValues(endpoint, outcome(err)).Inc()
	m.duration.WithLabelValues(endpoint).Observe(d.Seconds())
}

func outcome(err error) string {
	var netErr *errors.NetworkError
	var authErr *errors.AuthError
	var valErr *errors.ValidationError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &netErr):
		return "network"
	case errors.As(err, &authErr):
		return "auth"
	case errors.As(err, &valErr):
		return "invalid"
	default:
		return "error"
	}
}
