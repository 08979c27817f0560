// Package authcore provides an email/password and OAuth authentication engine
// with signed session credentials, email verification and password reset.
//
// Engine methods are safe to call from multiple goroutines once the Engine has
// been produced by [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config] and
// value types such as [Session] and [SessionClaims]. Flow orchestration,
// request limiting, mail delivery and audit dispatch live under internal/.
// Identity persistence is pluggable through [identity.Store]; in-memory, Redis
// and SQL backends ship under store/.
//
// # Failure model
//
// Every operation returns one of the sentinel errors in errors.go, possibly
// wrapped. Store, revocation list and rate counter outages surface as
// [ErrStoreUnavailable]; nothing fails open.
//
// # Performance contract
//
// Validate is the hot path. In [ModeJWTOnly] it performs no I/O. [ModeStrict]
// adds one revocation lookup.
package authcore
