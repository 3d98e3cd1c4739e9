package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/openanatomy/lab"

// HTTPInstrumentation counts requests and measures latency via the OTel
// metric API. Without an SDK installed the global provider is a no-op.
type HTTPInstrumentation struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

// NewHTTPInstrumentation creates the request counter and latency histogram.
func NewHTTPInstrumentation() (*HTTPInstrumentation, error) {
	meter := otel.Meter(meterName)

	requests, err := meter.Int64Counter(
		"http.server.requests",
		metric.WithDescription("Number of HTTP requests handled"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"http.server.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &HTTPInstrumentation{requests: requests, duration: duration}, nil
}

// Middleware wraps an http.Handler, recording count and latency per route.
func (i *HTTPInstrumentation) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		attrs := metric.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.status", strconv.Itoa(sw.status)),
		)
		ctx := context.Background()
		i.requests.Add(ctx, 1, attrs)
		i.duration.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
