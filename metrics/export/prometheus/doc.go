// Package prometheus renders authcore counters and the validate latency
// histogram in Prometheus text exposition format.
//
// Counter names are authcore_*_total; the histogram is
// authcore_validate_latency_seconds. Nothing is registered globally: callers
// mount [Exporter.Handler] where they like.
package prometheus
