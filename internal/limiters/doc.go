// Package limiters holds the account lockout guard and the request throttles.
//
//   - [LockoutGuard]: consecutive failed-login counter and temporary lock,
//     persisted on the identity record through identity.Store.Update.
//   - [RequestLimiter]: per-identifier and per-IP budgets for registration,
//     reset and verification endpoints, on internal/rate counters.
//
// Limiters count and lock; flow functions decide what a result means.
package limiters
