package tracking

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTestProviders(t *testing.T) (*tracetest.InMemoryExporter, *sdkmetric.ManualReader) {
	t.Helper()
	ResetForTesting()

	originalTP := otel.GetTracerProvider()
	originalMP := otel.GetMeterProvider()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		_ = mp.Shutdown(context.Background())
		otel.SetTracerProvider(originalTP)
		otel.SetMeterProvider(originalMP)
		ResetForTesting()
	})
	return exporter, reader
}

func collectSums(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			data, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range data.DataPoints {
				o, _ := dp.Attributes.Value(AttrOutcome)
				sums[m.Name+"/"+o.AsString()] += dp.Value
			}
		}
	}
	return sums
}

func hasHistogram(t *testing.T, reader *sdkmetric.ManualReader, name string) bool {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if _, ok := m.Data.(metricdata.Histogram[float64]); ok && m.Name == name {
				return true
			}
		}
	}
	return false
}

func TestCallSuccess(t *testing.T) {
	exporter, reader := setupTestProviders(t)

	ctx, call := Start(context.Background(), "nethttp")
	call.Attempt(ctx, 503, errors.New("not 2xx"))
	call.Attempt(ctx, 200, nil)
	call.End(ctx, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, SpanName, span.Name)
	assert.Equal(t, codes.Unset, span.Status.Code)
	assert.Contains(t, span.Attributes, attribute.String(AttrFamily, "nethttp"))
	assert.Contains(t, span.Attributes, attribute.Int(AttrAttempts, 2))
	assert.Contains(t, span.Attributes, attribute.Int("http.response.status_code", 200))

	sums := collectSums(t, reader)
	assert.Equal(t, int64(1), sums[metricAttempts+"/"+OutcomeFailure])
	assert.Equal(t, int64(1), sums[metricAttempts+"/"+OutcomeSuccess])
	assert.True(t, hasHistogram(t, reader, metricDuration))
}

func TestCallFailure(t *testing.T) {
	exporter, _ := setupTestProviders(t)

	ctx, call := Start(context.Background(), "listener")
	call.Attempt(ctx, 0, errors.New("dial tcp: refused"))
	call.End(ctx, errors.New("gave up"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "gave up", spans[0].Status.Description)
	for _, kv := range spans[0].Attributes {
		assert.NotEqual(t, "http.response.status_code", string(kv.Key))
	}
}

func TestNilCallIsNoop(t *testing.T) {
	var call *Call
	assert.NotPanics(t, func() {
		call.Attempt(context.Background(), 200, nil)
		call.End(context.Background(), nil)
	})
}
