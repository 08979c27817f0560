package authcore

import (
	"time"

	internalmetrics "github.com/MrEthical07/authcore/internal/metrics"
)

// MetricID names one engine counter.
type MetricID uint16

const (
	MetricRegisterSuccess MetricID = iota
	MetricRegisterDuplicate
	MetricRegisterRejected
	MetricRegisterRateLimited
	MetricLoginSuccess
	MetricLoginFailure
	MetricLoginLocked
	MetricAccountLocked
	MetricLoginUnverified
	MetricSessionCreated
	MetricPasswordRehashed
	MetricLogout
	MetricValidateFailure
	MetricSessionRevoked
	MetricPasswordResetRequest
	MetricPasswordResetConfirmSuccess
	MetricPasswordResetConfirmFailure
	MetricPasswordResetRateLimited
	MetricEmailVerificationSuccess
	MetricEmailVerificationFailure
	MetricEmailVerificationResent
	MetricEmailVerificationRateLimited
	MetricOAuthIdentityCreated
	MetricOAuthIdentityExisting
	MetricOAuthRefused
	MetricMailDelivered
	MetricMailFailed
	MetricMailDropped
	MetricStoreUnavailable
	// MetricValidateLatency is the only histogram.
	MetricValidateLatency
	metricIDCount
)

// MetricIDCount is the number of defined metrics.
const MetricIDCount = int(metricIDCount)

// HistBucketCount is the number of buckets in a latency histogram.
const HistBucketCount = internalmetrics.HistBucketCount

// Metrics holds the engine's counters. A nil or disabled Metrics is a no-op.
type Metrics struct {
	registry *internalmetrics.Registry
}

// MetricsSnapshot is a point-in-time copy of every counter.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics allocates counters according to cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		registry: internalmetrics.New(MetricIDCount, cfg.Enabled, cfg.EnableLatencyHistograms),
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.registry.Enabled()
}

// LatencyEnabled reports whether the validate latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.registry.LatencyEnabled()
}

// Inc adds one to id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || id >= metricIDCount {
		return
	}
	m.registry.Inc(int(id))
}

// Observe records a latency sample. Only MetricValidateLatency has a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || id != MetricValidateLatency {
		return
	}
	m.registry.Observe(int(id), d)
}

// Value loads one counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return m.registry.Value(int(id))
}

// Snapshot copies every counter, and the latency histogram when enabled.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if !m.Enabled() {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, MetricIDCount),
		Histograms: make(map[MetricID][]uint64, 1),
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = m.registry.Value(int(id))
	}
	if m.registry.LatencyEnabled() {
		s.Histograms[MetricValidateLatency] = m.registry.Buckets(int(MetricValidateLatency))
	}
	return s
}
