package authcore

import (
	"testing"
	"time"
)

func TestMetricsDisabledIsNoop(t *testing.T) {
	m := NewMetrics(MetricsConfig{})
	m.Inc(MetricLoginSuccess)
	if m.Value(MetricLoginSuccess) != 0 {
		t.Fatal("disabled metrics must not count")
	}
	if got := m.Snapshot(); len(got.Counters) != 0 {
		t.Fatalf("disabled snapshot should be empty, got %d counters", len(got.Counters))
	}

	var nilMetrics *Metrics
	nilMetrics.Inc(MetricLoginSuccess)
	nilMetrics.Observe(MetricValidateLatency, time.Millisecond)
}

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginSuccess)
	m.Inc(metricIDCount)
	m.Observe(MetricValidateLatency, 3*time.Millisecond)
	m.Observe(MetricLoginSuccess, time.Millisecond)

	s := m.Snapshot()
	if len(s.Counters) != MetricIDCount {
		t.Fatalf("snapshot has %d counters, want %d", len(s.Counters), MetricIDCount)
	}
	if s.Counters[MetricLoginSuccess] != 2 {
		t.Fatalf("login success = %d", s.Counters[MetricLoginSuccess])
	}

	buckets := s.Histograms[MetricValidateLatency]
	if len(buckets) != HistBucketCount {
		t.Fatalf("histogram has %d buckets, want %d", len(buckets), HistBucketCount)
	}
	var total uint64
	for _, b := range buckets {
		total += b
	}
	if total != 1 {
		t.Fatalf("histogram total = %d, want 1", total)
	}
}

func TestValidateRecordsLatency(t *testing.T) {
	te := newTestEngine(t, func(c *Config) { c.Metrics.EnableLatencyHistograms = true })
	_, _ = te.Validate(t.Context(), "not-a-token", ModeJWTOnly)

	s := te.MetricsSnapshot()
	if s.Counters[MetricValidateFailure] != 1 {
		t.Fatalf("validate failures = %d", s.Counters[MetricValidateFailure])
	}
	var total uint64
	for _, b := range s.Histograms[MetricValidateLatency] {
		total += b
	}
	if total != 1 {
		t.Fatalf("latency samples = %d, want 1", total)
	}
}
