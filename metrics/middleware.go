package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Metrics records request totals and latency labelled with the chi route
// pattern, so /v1/quality/33000 and /v1/quality/75001 share a series.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		HTTPRequestInFlight.Inc()
		defer HTTPRequestInFlight.Dec()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		path := routePattern(r)
		HTTPRequestTotals.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return "unmatched"
	}
	if pattern := rctx.RoutePattern(); pattern != "" {
		return pattern
	}
	return "unmatched"
}

// ObserveHubeau records one upstream request.
func ObserveHubeau(outcome string, elapsed time.Duration) {
	HubeauRequestsTotal.WithLabelValues(outcome).Inc()
	HubeauRequestDuration.Observe(elapsed.Seconds())
}

// SetMappingSize publishes the size of the loaded postal mapping.
func SetMappingSize(postalCodes, communes int) {
	MappingPostalCodes.Set(float64(postalCodes))
	MappingCommunes.Set(float64(communes))
}
