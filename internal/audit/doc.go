// Package audit forwards authentication events to a sink without blocking
// the request path.
//
// [Dispatcher] buffers events and relays them from one goroutine; with
// DropIfFull a saturated buffer drops and counts instead of waiting. Sinks:
// [NoOpSink], [ChannelSink] and [JSONWriterSink].
//
// The engine decides which events exist; this package only delivers them.
package audit
