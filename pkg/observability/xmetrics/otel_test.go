package xmetrics

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

type testProviders struct {
	tp       *sdktrace.TracerProvider
	exporter *tracetest.InMemoryExporter
	mp       *sdkmetric.MeterProvider
	reader   *sdkmetric.ManualReader
}

func newTestObserver(t *testing.T) (Observer, *testProviders) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		_ = mp.Shutdown(context.Background())
	})

	obs, err := NewOTelObserver(
		WithInstrumentationName("test"),
		WithTracerProvider(tp),
		WithMeterProvider(mp),
	)
	require.NoError(t, err)
	return obs, &testProviders{tp: tp, exporter: exporter, mp: mp, reader: reader}
}

func (p *testProviders) metric(t *testing.T, name string) (metricdata.Metrics, bool) {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, p.reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

// sumBy 返回计数器中满足属性条件的数据点之和。
func sumBy(t *testing.T, m metricdata.Metrics, key, value string) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			total += dp.Value
		}
	}
	return total
}

func TestNewOTelObserverDefaults(t *testing.T) {
	obs, err := NewOTelObserver(WithInstrumentationName(""), WithTracerProvider(nil), WithMeterProvider(nil), nil)
	require.NoError(t, err)
	require.NotNil(t, obs)

	// 全局 noop provider 下也能正常工作。
	ctx, span := obs.Start(context.Background(), SpanOptions{})
	assert.NotNil(t, ctx)
	span.End(Result{})
	obs.Record(context.Background(), Event{Name: "x"})
}

func TestOTelSpanSuccess(t *testing.T) {
	obs, p := newTestObserver(t)

	ctx, span := obs.Start(context.Background(), SpanOptions{
		Component: "xunique",
		Operation: "construct",
		Attrs:     []Attr{String("factory", "users"), Int("n", 1)},
	})
	assert.True(t, trace.SpanFromContext(ctx).SpanContext().IsValid())
	span.End(Result{Attrs: []Attr{Bool("cached", false)}})
	span.End(Result{Err: errors.New("ignored")})

	spans := p.exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "construct", spans[0].Name)
	assert.Equal(t, trace.SpanKindInternal, spans[0].SpanKind)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)
	assert.Contains(t, spans[0].Attributes, attribute.String("factory", "users"))
	assert.Contains(t, spans[0].Attributes, attribute.Bool("cached", false))

	m, ok := p.metric(t, MetricOperationTotal)
	require.True(t, ok)
	assert.EqualValues(t, 1, sumBy(t, m, "status", "ok"))
	assert.EqualValues(t, 0, sumBy(t, m, "status", "error"))

	_, ok = p.metric(t, MetricOperationDuration)
	assert.True(t, ok)
}

func TestOTelSpanError(t *testing.T) {
	obs, p := newTestObserver(t)

	_, span := obs.Start(context.Background(), SpanOptions{Component: "c", Operation: "op", Kind: KindClient})
	span.End(Result{Err: errors.New("boom")})

	_, span = obs.Start(context.Background(), SpanOptions{Component: "c", Operation: "op"})
	span.End(Result{Status: StatusError})

	spans := p.exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, trace.SpanKindClient, spans[0].SpanKind)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "boom", spans[0].Status.Description)
	assert.NotEmpty(t, spans[0].Events)
	assert.Equal(t, "operation failed", spans[1].Status.Description)

	m, ok := p.metric(t, MetricOperationTotal)
	require.True(t, ok)
	assert.EqualValues(t, 2, sumBy(t, m, "status", "error"))
}

func TestOTelRecord(t *testing.T) {
	obs, p := newTestObserver(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for range 3 {
		obs.Record(ctx, Event{Component: "xunique", Name: "hit"})
	}
	obs.Record(context.Background(), Event{
		Component: "xunique",
		Name:      "evict",
		Attrs:     []Attr{String("reason", "purged")},
	})

	m, ok := p.metric(t, MetricEventTotal)
	require.True(t, ok)
	assert.EqualValues(t, 3, sumBy(t, m, "event", "hit"))
	assert.EqualValues(t, 1, sumBy(t, m, "reason", "purged"))
	assert.EqualValues(t, 4, sumBy(t, m, "component", "xunique"))
	assert.Empty(t, p.exporter.GetSpans())
}

func TestToKeyValue(t *testing.T) {
	tests := []struct {
		attr Attr
		want attribute.KeyValue
	}{
		{String("s", "v"), attribute.String("s", "v")},
		{Bool("b", true), attribute.Bool("b", true)},
		{Int("i", 3), attribute.Int("i", 3)},
		{Int64("i64", -4), attribute.Int64("i64", -4)},
		{Float64("f", 1.5), attribute.Float64("f", 1.5)},
		{Duration("d", time.Millisecond), attribute.Int64("d", int64(time.Millisecond))},
		{Attr{Key: "u", Value: uint64(7)}, attribute.Int64("u", 7)},
		{Attr{Key: "big", Value: uint64(math.MaxUint64)}, attribute.String("big", "18446744073709551615")},
		{Attr{Key: "other", Value: []int{1}}, attribute.String("other", "[1]")},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, toKeyValue(tt.attr), tt.attr.Key)
	}

	assert.Nil(t, attrsToOTel(nil))
	assert.Empty(t, attrsToOTel([]Attr{{Key: ""}, {Key: "nil"}}))
}
