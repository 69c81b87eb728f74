// Package metrics holds the Prometheus collectors for the request pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	authAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackwise_auth_attempts_total",
			Help: "Credential checks by strategy and outcome.",
		},
		[]string{"strategy", "outcome"},
	)

	gateRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackwise_gate_rejections_total",
			Help: "Requests rejected by the authorization chain, by stage and status.",
		},
		[]string{"stage", "status"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trackwise_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trackwise_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)
)

// Register adds all collectors to the given registerer.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{authAttempts, gateRejections, httpRequests, httpDuration} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Handler serves the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveAuth counts one credential check.
func ObserveAuth(strategy, outcome string) {
	authAttempts.WithLabelValues(strategy, outcome).Inc()
}

// ObserveRejection counts one rejected request.
func ObserveRejection(stage string, status int) {
	gateRejections.WithLabelValues(stage, strconv.Itoa(status)).Inc()
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Instrument records request counts and latency.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)

		status := strconv.Itoa(sw.code)
		httpDuration.WithLabelValues(r.Method, status).Observe(time.Since(start).Seconds())
		httpRequests.WithLabelValues(r.Method, status).Inc()
	})
}
