package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	MeterName = "marketing/report"

	metricRequestsTotal   = "marketing.report.requests.total"
	metricRequestDuration = "marketing.report.duration.seconds"
	metricInflight        = "marketing.report.inflight"

	attrStatus = "status"
)

// Report build outcomes used as the status attribute.
const (
	StatusOK         = "ok"
	StatusBadRequest = "bad_request"
	StatusError      = "error"
	StatusCanceled   = "canceled"
	StatusTimeout    = "timeout"
)

// durationBucketBoundaries covers 5ms to 60s; a report is a fixed fan-out of
// read queries bounded by report.query_timeout.
var durationBucketBoundaries = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// ReportMetrics holds the RED instruments for report builds.
type ReportMetrics struct {
	requestsTotal   metric.Int64Counter
	requestDuration metric.Float64Histogram
	inflight        metric.Int64UpDownCounter
}

// NewReportMetrics creates the report instruments from mt.
func NewReportMetrics(mt metric.Meter) (*ReportMetrics, error) {
	requestsTotal, err := mt.Int64Counter(metricRequestsTotal,
		metric.WithDescription("Total number of report builds"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRequestsTotal, err)
	}

	requestDuration, err := mt.Float64Histogram(metricRequestDuration,
		metric.WithDescription("Report build duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRequestDuration, err)
	}

	inflight, err := mt.Int64UpDownCounter(metricInflight,
		metric.WithDescription("Number of report builds in progress"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricInflight, err)
	}

	return &ReportMetrics{
		requestsTotal:   requestsTotal,
		requestDuration: requestDuration,
		inflight:        inflight,
	}, nil
}

// RecordReport records one finished build with its outcome and duration.
func (rm *ReportMetrics) RecordReport(ctx context.Context, status string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String(attrStatus, status))
	rm.requestsTotal.Add(ctx, 1, attrs)
	rm.requestDuration.Record(ctx, duration.Seconds(), attrs)
}

// TrackInflight increments the in-flight counter and returns a function to decrement it.
func (rm *ReportMetrics) TrackInflight(ctx context.Context) func() {
	rm.inflight.Add(ctx, 1)
	return func() {
		rm.inflight.Add(ctx, -1)
	}
}
