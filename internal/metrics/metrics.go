package metrics

import (
	"sync/atomic"
	"time"
)

const (
	// HistBucketCount is the number of latency buckets per histogram.
	HistBucketCount = 8
	cacheLineSize   = 64
)

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

type histogram struct {
	buckets [HistBucketCount]uint64
}

// Registry is a fixed set of counters and histograms addressed by index.
type Registry struct {
	enabled       bool
	enableLatency bool
	counters      []paddedCounter
	histograms    []histogram
}

// New allocates n counters and n histograms. A disabled registry ignores
// writes and reports zero.
func New(n int, enabled, latency bool) *Registry {
	return &Registry{
		enabled:       enabled,
		enableLatency: enabled && latency,
		counters:      make([]paddedCounter, n),
		histograms:    make([]histogram, n),
	}
}

// Enabled reports whether counters are recorded.
func (r *Registry) Enabled() bool { return r != nil && r.enabled }

// LatencyEnabled reports whether histograms are recorded.
func (r *Registry) LatencyEnabled() bool { return r != nil && r.enableLatency }

// Inc adds one to counter id.
func (r *Registry) Inc(id int) {
	if r == nil || !r.enabled || id < 0 || id >= len(r.counters) {
		return
	}
	atomic.AddUint64(&r.counters[id].value, 1)
}

// Observe records d in histogram id.
func (r *Registry) Observe(id int, d time.Duration) {
	if r == nil || !r.enableLatency || id < 0 || id >= len(r.histograms) {
		return
	}
	atomic.AddUint64(&r.histograms[id].buckets[BucketIndex(d)], 1)
}

// Value loads counter id.
func (r *Registry) Value(id int) uint64 {
	if r == nil || id < 0 || id >= len(r.counters) {
		return 0
	}
	return atomic.LoadUint64(&r.counters[id].value)
}

// Buckets copies histogram id.
func (r *Registry) Buckets(id int) []uint64 {
	if r == nil || id < 0 || id >= len(r.histograms) {
		return nil
	}
	out := make([]uint64, HistBucketCount)
	for i := range out {
		out[i] = atomic.LoadUint64(&r.histograms[id].buckets[i])
	}
	return out
}

// Len is the number of counters.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.counters)
}

// BucketIndex maps a latency to its bucket: ≤5ms, ≤10ms, ≤25ms, ≤50ms,
// ≤100ms, ≤250ms, ≤500ms, +Inf.
func BucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
