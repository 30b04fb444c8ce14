// Package tracking emits OpenTelemetry spans and metrics for request-with-retry calls.
// Instruments come from the global providers, so nothing is exported unless the host
// installs an SDK.
package tracking

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "go-restclient/retryhelper"

	SpanName = "restclient.request_with_retry"

	metricAttempts = "restclient.attempts"
	metricDuration = "restclient.request.duration"

	AttrFamily   = "restclient.family"
	AttrAttempts = "restclient.attempts"
	AttrOutcome  = "outcome"

	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	meter       metric.Meter
	meterOnce   sync.Once
	meterInitMu sync.Mutex

	attemptsCounter   metric.Int64Counter
	durationHistogram metric.Float64Histogram
)

// logMetricError logs a metric initialization error to stderr.
// Metrics failures must not break request execution.
func logMetricError(metricName string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: Failed to initialize restclient metric %s: %v\n", metricName, err)
	}
}

func initMeter() {
	meterInitMu.Lock()
	defer meterInitMu.Unlock()

	if meter != nil {
		return
	}
	meter = otel.Meter(instrumentationName)

	var err error
	attemptsCounter, err = meter.Int64Counter(
		metricAttempts,
		metric.WithDescription("Number of request attempts made by retry helpers"),
		metric.WithUnit("{attempt}"),
	)
	logMetricError(metricAttempts, err)

	durationHistogram, err = meter.Float64Histogram(
		metricDuration,
		metric.WithDescription("Duration of request-with-retry calls including waits"),
		metric.WithUnit("ms"),
	)
	logMetricError(metricDuration, err)
}

// ResetForTesting drops the cached instruments so the next call binds to the
// current global meter provider.
func ResetForTesting() {
	meterInitMu.Lock()
	defer meterInitMu.Unlock()
	meter = nil
	attemptsCounter = nil
	durationHistogram = nil
	meterOnce = sync.Once{}
}

// Call tracks one request-with-retry invocation. A nil *Call is valid and records nothing.
type Call struct {
	span     trace.Span
	family   string
	start    time.Time
	attempts int
	status   int
}

// Start opens the call span as a child of ctx.
func Start(ctx context.Context, family string) (context.Context, *Call) {
	meterOnce.Do(initMeter)

	ctx, span := otel.Tracer(instrumentationName).Start(ctx, SpanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String(AttrFamily, family)),
	)
	return ctx, &Call{span: span, family: family, start: time.Now()}
}

// Attempt records the outcome of one attempt. status is 0 when no response was received.
func (c *Call) Attempt(ctx context.Context, status int, err error) {
	if c == nil {
		return
	}
	c.attempts++
	if status > 0 {
		c.status = status
	}
	if attemptsCounter != nil {
		attemptsCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String(AttrFamily, c.family),
			attribute.String(AttrOutcome, outcome(err)),
		))
	}
}

// End closes the span and records the call duration.
func (c *Call) End(ctx context.Context, err error) {
	if c == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.Int(AttrAttempts, c.attempts)}
	if c.status > 0 {
		attrs = append(attrs, semconv.HTTPResponseStatusCode(c.status))
	}
	c.span.SetAttributes(attrs...)
	if err != nil {
		c.span.RecordError(err)
		c.span.SetStatus(codes.Error, err.Error())
	}
	c.span.End()

	if durationHistogram != nil {
		durationMs := float64(time.Since(c.start).Nanoseconds()) / 1e6
		durationHistogram.Record(ctx, durationMs, metric.WithAttributes(
			attribute.String(AttrFamily, c.family),
			attribute.String(AttrOutcome, outcome(err)),
		))
	}
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
