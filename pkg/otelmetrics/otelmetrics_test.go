package otelmetrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func setup(t *testing.T, opts ...Option) (*Recorder, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("shutdown meter provider: %v", err)
		}
	})
	return New(append(opts, WithMeterProvider(provider))...), reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) *metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return &rm
}

func find(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestRecorder_Counter(t *testing.T) {
	r, reader := setup(t)
	r.IncrementCounter("pagetrack.sender.batches_sent", 1)
	r.IncrementCounter("pagetrack.sender.batches_sent", 2)

	m := find(collect(t, reader), "pagetrack.sender.batches_sent")
	require.NotNil(t, m)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(3), sum.DataPoints[0].Value)
	assert.NoError(t, r.Err())
}

func TestRecorder_Duration(t *testing.T) {
	r, reader := setup(t)
	r.RecordDuration("pagetrack.sender.duration", 250*time.Millisecond)

	m := find(collect(t, reader), "pagetrack.sender.duration")
	require.NotNil(t, m)
	assert.Equal(t, "ms", m.Unit)
	hist, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
	assert.InDelta(t, 250.0, hist.DataPoints[0].Sum, 0.001)
}

func TestRecorder_Gauge(t *testing.T) {
	r, reader := setup(t, WithAttributes(attribute.String("site", "docs")))
	r.SetGauge("pagetrack.queue.depth", 12)
	r.SetGauge("pagetrack.queue.depth", 3)

	m := find(collect(t, reader), "pagetrack.queue.depth")
	require.NotNil(t, m)
	gauge, ok := m.Data.(metricdata.Gauge[float64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, 3.0, gauge.DataPoints[0].Value)

	site, ok := gauge.DataPoints[0].Attributes.Value("site")
	require.True(t, ok)
	assert.Equal(t, "docs", site.AsString())
}

func TestNew_GlobalProvider(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	original := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		otel.SetMeterProvider(original)
		_ = provider.Shutdown(context.Background())
	})

	New().IncrementCounter("pagetrack.events.tracked", 1)
	assert.NotNil(t, find(collect(t, reader), "pagetrack.events.tracked"))
}
