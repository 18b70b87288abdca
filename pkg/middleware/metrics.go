package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ekaya-inc/t2sql-engine/pkg/metrics"
)

// HTTPMetrics records request count and latency per method, route and status.
func HTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := newResponseWriter(w)

		next.ServeHTTP(wrapped, r)

		metrics.ObserveHTTPRequest(r.Method, routeOf(r), strconv.Itoa(wrapped.statusCode), time.Since(start))
	})
}
