// Package metrics provides lock-free counters and latency histograms.
//
// Counters are stored in cache-line-padded uint64 slots and incremented
// atomically. Histograms use 8 fixed buckets (≤5ms … +Inf). Both are
// allocation-free on the write path.
//
// This package owns metric storage only. Metric names and export (Prometheus,
// OTel) live in the root package and metrics/export/.
package metrics
