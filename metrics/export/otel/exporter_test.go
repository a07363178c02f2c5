package otel

import (
	"context"
	"sync"
	"testing"

	authsession "github.com/trackwise/authsession"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	counters map[authsession.MetricID]uint64
	latency  []uint64
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() authsession.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := authsession.MetricsSnapshot{
		Counters:   make(map[authsession.MetricID]uint64, len(f.counters)),
		Histograms: map[authsession.MetricID][]uint64{},
	}
	for k, v := range f.counters {
		out.Counters[k] = v
	}
	if f.latency != nil {
		out.Histograms[authsession.MetricLoginLatency] = append([]uint64(nil), f.latency...)
	}
	return out
}

func (f *fakeSource) DroppedEvents() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newReader(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	values := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					values[m.Name] = dp.Value
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					values[m.Name] = dp.Value
				}
			}
		}
	}
	return values
}

func TestExporterCollectsSnapshot(t *testing.T) {
	reader, provider := newReader(t)
	src := &fakeSource{
		counters: map[authsession.MetricID]uint64{
			authsession.MetricLoginSuccess:   3,
			authsession.MetricFailureTimeout: 1,
		},
		latency: []uint64{1, 1, 1, 1, 1, 1, 1, 1},
		dropped: 4,
	}

	exp, err := NewExporter(provider.Meter("authsession-test"), src)
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}()

	values := collect(t, reader)
	want := map[string]int64{
		"authsession_login_success_total":                   3,
		"authsession_failure_timeout_total":                 1,
		"authsession_logout_total":                          0,
		"authsession_login_latency_seconds_bucket_le_0_025": 1,
		"authsession_login_latency_seconds_bucket_le_1":     6,
		"authsession_login_latency_seconds_bucket_le_inf":   8,
		"authsession_login_latency_seconds_count":           8,
		"authsession_events_dropped_total":                  4,
	}
	for name, v := range want {
		got, ok := values[name]
		if !ok || got != v {
			t.Fatalf("%s: expected %d, got %d (present=%v)", name, v, got, ok)
		}
	}
}

func TestExporterRejectsNilInputs(t *testing.T) {
	_, provider := newReader(t)
	if _, err := NewExporter(provider.Meter("authsession-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewExporter(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
	if err := (*Exporter)(nil).Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
}

func TestExporterConcurrentCollect(t *testing.T) {
	reader, provider := newReader(t)
	src := &fakeSource{counters: map[authsession.MetricID]uint64{authsession.MetricLoginSuccess: 1}}

	exp, err := NewExporter(provider.Meter("authsession-test"), src)
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}
	defer exp.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.counters[authsession.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
