// Package middleware exposes HTTP guards that validate authcore session
// credentials before a handler runs.
//
// # Guards
//
//   - [Guard] validates with an explicit [authcore.RouteMode].
//   - [GuardWith] is Guard with an [ErrorResponder] for the rejection body.
//   - [RequireJWTOnly] checks signature and expiry only, with no store call.
//   - [RequireStrict] also consults the revocation list and the identity store.
//
// Each guard reads the credential from the Authorization bearer header or the
// [SessionCookie] cookie, calls Engine.Validate and stores the resulting
// claims in the request context, readable with [authcore.ClaimsFromContext].
//
// This package translates HTTP semantics into Engine calls. It never parses
// credentials itself.
package middleware
