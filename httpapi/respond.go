package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/authcore"
)

type response struct {
	Success    bool         `json:"success"`
	Message    string       `json:"message"`
	Violations []string     `json:"violations,omitempty"`
	Token      string       `json:"token,omitempty"`
	ExpiresAt  *time.Time   `json:"expiresAt,omitempty"`
	User       *userView    `json:"user,omitempty"`
	Session    *sessionView `json:"session,omitempty"`
}

type userView struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
	Verified    bool   `json:"verified"`
	Provider    string `json:"provider"`
}

type sessionView struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Provider  string    `json:"provider"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func writeJSON(w http.ResponseWriter, status int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, response{Message: "Invalid input data"})
		return false
	}
	return true
}

// writeError maps an engine error to its status and client-facing message.
func (s *server) writeError(w http.ResponseWriter, err error) {
	status, body := errorStatus(err)
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	var le *authcore.LockedError
	if errors.As(err, &le) {
		secs := int(le.RetryAfter(s.engine.Now()).Round(time.Second) / time.Second)
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, body)
}

func errorStatus(err error) (int, response) {
	var pe *authcore.PolicyError
	switch {
	case errors.As(err, &pe):
		return http.StatusBadRequest, response{
			Message:    policyMessage(pe),
			Violations: pe.Violations,
		}
	case errors.Is(err, authcore.ErrAlreadyExists):
		return http.StatusConflict, response{Message: "User already exists"}
	case errors.Is(err, authcore.ErrInvalidCredentials):
		return http.StatusUnauthorized, response{Message: "Invalid credentials"}
	case errors.Is(err, authcore.ErrAccountLocked):
		return http.StatusLocked, response{Message: "Account temporarily locked"}
	case errors.Is(err, authcore.ErrUnverified):
		return http.StatusForbidden, response{Message: "Please verify your email before logging in"}
	case errors.Is(err, authcore.ErrInvalidToken):
		return http.StatusBadRequest, response{Message: "Invalid or expired token"}
	case errors.Is(err, authcore.ErrTokenExpired):
		return http.StatusBadRequest, response{Message: "Token has expired"}
	case errors.Is(err, authcore.ErrInvalidEmail):
		return http.StatusBadRequest, response{Message: "Invalid email format"}
	case errors.Is(err, authcore.ErrNotFound):
		return http.StatusNotFound, response{Message: "No user found with this email"}
	case errors.Is(err, authcore.ErrRateLimited):
		return http.StatusTooManyRequests, response{Message: "Too many requests"}
	case errors.Is(err, authcore.ErrOAuthEmailUnverified):
		return http.StatusForbidden, response{Message: "Email not verified by provider"}
	case errors.Is(err, authcore.ErrUnsupportedProvider):
		return http.StatusForbidden, response{Message: "Unsupported sign-in provider"}
	case errors.Is(err, authcore.ErrSessionInvalid),
		errors.Is(err, authcore.ErrSessionExpired),
		errors.Is(err, authcore.ErrSessionRevoked):
		return http.StatusUnauthorized, response{Message: "Invalid session"}
	case errors.Is(err, authcore.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, response{Message: "Service temporarily unavailable"}
	default:
		return http.StatusInternalServerError, response{Message: "Internal server error"}
	}
}

// policyMessage phrases the failed rules of the configured policy.
func policyMessage(pe *authcore.PolicyError) string {
	if len(pe.Violations) == 0 {
		return "Password does not meet the password policy"
	}
	return "Password " + strings.Join(pe.Violations, ", ")
}
