package api

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	metricsOnce      sync.Once
	metricsInitErr   error
	requestCounter   metric.Int64Counter
	latencyHistogram metric.Float64Histogram
)

// recordRequest emits the request counter and latency histogram.
// A zero status marks a request that never produced a response.
func recordRequest(ctx context.Context, method string, status int, elapsed time.Duration) {
	if err := ensureMetrics(); err != nil {
		return
	}

	outcome := "ok"
	switch {
	case status == 0:
		outcome = "network_error"
	case status >= 400:
		outcome = "http_error"
	}

	attrs := metric.WithAttributes(
		attribute.String("http.request.method", method),
		attribute.String("http.response.status_code", strconv.Itoa(status)),
		attribute.String("outcome", outcome),
	)

	requestCounter.Add(ctx, 1, attrs)
	latencyHistogram.Record(ctx, float64(elapsed)/float64(time.Millisecond), attrs)
}

func ensureMetrics() error {
	metricsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter(tracerName)

		requestCounter, metricsInitErr = meter.Int64Counter(
			"youtrack.http.requests_total",
			metric.WithDescription("YouTrack API requests partitioned by status and outcome"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		latencyHistogram, metricsInitErr = meter.Float64Histogram(
			"youtrack.http.duration",
			metric.WithDescription("YouTrack API request latency"),
			metric.WithUnit("ms"),
		)
	})
	return metricsInitErr
}
