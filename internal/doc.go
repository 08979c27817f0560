// Package internal contains helpers private to authcore: opaque token
// generation and the digest stored in place of a token.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: flow orchestrators for every Engine operation
//   - limiters: lockout guard and request throttles
//   - mailq: fire-and-forget outbound mail queue
//   - metrics: lock-free counters and latency histograms
//   - rate: fixed-window counters on Redis or in memory
//   - stores: session revocation list
//
// Nothing here is part of the public API.
package internal
