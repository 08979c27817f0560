// Package rate provides fixed-window request counters backed by Redis or
// process memory, and a Limiter that applies a budget to them.
package rate
