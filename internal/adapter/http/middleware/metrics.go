package middleware

import (
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/iho/kasa/internal/infrastructure/metrics"
)

var monthSegment = regexp.MustCompile(`/periods/[^/]+`)

// Metrics returns a middleware that records HTTP metrics.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			m.HTTPInFlight.Inc()
			defer m.HTTPInFlight.Dec()

			wrapped := &metricsRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			path := normalizePath(r.URL.Path)
			m.HTTPRequests.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
			m.HTTPDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

type metricsRecorder struct {
	http.ResponseWriter

	statusCode int
}

func (r *metricsRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

// normalizePath collapses month segments to keep label cardinality bounded.
// /api/v1/periods/2025-12/close -> /api/v1/periods/{month}/close
func normalizePath(path string) string {
	return monthSegment.ReplaceAllString(path, "/periods/{month}")
}
