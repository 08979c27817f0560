package middleware

import (
	"net/http"

	"github.com/MrEthical07/authcore"
)

// RequireJWTOnly returns a guard that validates with [authcore.ModeJWTOnly],
// skipping the revocation list and the identity store.
func RequireJWTOnly(engine Validator) func(http.Handler) http.Handler {
	return Guard(engine, authcore.ModeJWTOnly)
}
