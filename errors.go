package authcore

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrAlreadyExists is returned by Register when the email is taken.
	ErrAlreadyExists = errors.New("identity already exists")
	// ErrNotFound is returned when an operation names an identity that does not exist.
	ErrNotFound = errors.New("identity not found")
	// ErrInvalidCredentials is returned for an unknown email or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is wrapped by *LockedError.
	ErrAccountLocked = errors.New("account locked")
	// ErrUnverified is returned by Login when the email is not yet confirmed.
	ErrUnverified = errors.New("email not verified")
	// ErrInvalidToken is returned for an unknown or already consumed reset or verification token.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned for a reset or verification token past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrWeakPassword is wrapped by *PolicyError.
	ErrWeakPassword = errors.New("password does not meet policy")
	// ErrStoreUnavailable is returned when the identity store cannot be reached in time.
	ErrStoreUnavailable = errors.New("identity store unavailable")
	// ErrInvalidEmail is returned for an email that fails format validation.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrRateLimited is returned when a request limiter refuses the call.
	ErrRateLimited = errors.New("too many requests")
	// ErrEngineNotReady is returned by a zero or partially built Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrSessionInvalid is returned for a malformed, tampered or orphaned session credential.
	ErrSessionInvalid = errors.New("invalid session")
	// ErrSessionExpired is returned for an authentic session credential past its expiry.
	ErrSessionExpired = errors.New("session expired")
	// ErrSessionRevoked is returned in strict mode for a logged-out credential.
	ErrSessionRevoked = errors.New("session revoked")
	// ErrOAuthEmailUnverified is returned when the provider has not verified the email.
	ErrOAuthEmailUnverified = errors.New("oauth provider email not verified")
	// ErrUnsupportedProvider is returned for an OAuth profile from an unknown provider.
	ErrUnsupportedProvider = errors.New("unsupported identity provider")
	// ErrInvalidRouteMode is returned by Validate for an unknown RouteMode.
	ErrInvalidRouteMode = errors.New("invalid route validation mode")
)

// LockedError reports a login refused because the identity is locked.
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return "account locked until " + e.Until.UTC().Format(time.RFC3339)
}

// Unwrap lets errors.Is(err, ErrAccountLocked) match.
func (e *LockedError) Unwrap() error { return ErrAccountLocked }

// RetryAfter is the remaining lock duration at now, never negative.
func (e *LockedError) RetryAfter(now time.Time) time.Duration {
	if d := e.Until.Sub(now); d > 0 {
		return d
	}
	return 0
}

// PolicyError lists the password rules a candidate failed.
type PolicyError struct {
	Violations []string
}

func (e *PolicyError) Error() string {
	return ErrWeakPassword.Error() + ": " + strings.Join(e.Violations, "; ")
}

func (e *PolicyError) Unwrap() error { return ErrWeakPassword }

// IsRetryable reports whether err is a transient store failure worth retrying.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
