package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/MrEthical07/authcore"
)

// SessionCookie is the cookie the HTTP API stores the session credential in.
const SessionCookie = "authcore_session"

// Validator is the subset of *authcore.Engine the guards need.
type Validator interface {
	Validate(ctx context.Context, token string, mode authcore.RouteMode) (*authcore.SessionClaims, error)
}

// ErrorResponder writes the rejection for a request the guard refused. err
// wraps [authcore.ErrSessionInvalid] when no credential was sent, otherwise
// it is the error returned by Validate.
type ErrorResponder func(w http.ResponseWriter, r *http.Request, err error)

// Guard rejects requests without a valid session credential, answering with
// [PlainError].
func Guard(engine Validator, routeMode authcore.RouteMode) func(http.Handler) http.Handler {
	return GuardWith(engine, routeMode, PlainError)
}

// GuardWith is Guard with a caller-chosen rejection format.
func GuardWith(engine Validator, routeMode authcore.RouteMode, respond ErrorResponder) func(http.Handler) http.Handler {
	if respond == nil {
		respond = PlainError
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				respond(w, r, authcore.ErrEngineNotReady)
				return
			}

			token, ok := Credential(r)
			if !ok {
				respond(w, r, fmt.Errorf("%w: no credential", authcore.ErrSessionInvalid))
				return
			}

			claims, err := engine.Validate(r.Context(), token, routeMode)
			if err != nil {
				respond(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(authcore.WithClaims(r.Context(), claims)))
		})
	}
}

// PlainError answers with a text body. Store outages are reported as 503 so
// clients retry instead of signing in again; everything else is 401.
func PlainError(w http.ResponseWriter, _ *http.Request, err error) {
	if errors.Is(err, authcore.ErrStoreUnavailable) {
		w.Header().Set("Retry-After", "1")
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

// Credential extracts the session credential from the bearer header, falling
// back to the session cookie.
func Credential(r *http.Request) (string, bool) {
	if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
		return token, true
	}
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value, true
	}
	return "", false
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
