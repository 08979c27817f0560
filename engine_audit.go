package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authcore/internal/flows"
)

const (
	auditEventRegister             = "register"
	auditEventLogin                = "login"
	auditEventAccountLocked        = "account_locked"
	auditEventLogout               = "logout"
	auditEventPasswordResetRequest = "password_reset_request"
	auditEventPasswordResetConfirm = "password_reset_confirm"
	auditEventEmailVerification    = "email_verification_confirm"
	auditEventVerificationResend   = "email_verification_resend"
	auditEventOAuthReconcile       = "oauth_reconcile"
	auditEventMailFailure          = "mail_delivery_failure"
)

// AuditErrorCode is the stable error label carried by audit events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrAccountLocked      AuditErrorCode = "account_locked"
	auditErrUnverified         AuditErrorCode = "unverified"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrTokenExpired       AuditErrorCode = "token_expired"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrInvalidEmail       AuditErrorCode = "invalid_email"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrNotFound           AuditErrorCode = "not_found"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrSessionInvalid     AuditErrorCode = "session_invalid"
	auditErrOAuthUnverified    AuditErrorCode = "oauth_email_unverified"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(ctx context.Context, rec flows.AuditRecord) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if rec.Metadata != nil {
		metadata = rec.Metadata()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: rec.Event,
		UserID:    rec.UserID,
		Email:     rec.Email,
		TokenID:   rec.TokenID,
		Provider:  rec.Provider,
		IP:        clientIPFromContext(ctx),
		Success:   rec.Success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(rec.Err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrUnverified):
		return auditErrUnverified
	case errors.Is(err, ErrInvalidToken):
		return auditErrInvalidToken
	case errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrSessionExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrWeakPassword):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrInvalidEmail):
		return auditErrInvalidEmail
	case errors.Is(err, ErrAlreadyExists):
		return auditErrDuplicate
	case errors.Is(err, ErrNotFound):
		return auditErrNotFound
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrSessionInvalid),
		errors.Is(err, ErrSessionRevoked):
		return auditErrSessionInvalid
	case errors.Is(err, ErrOAuthEmailUnverified),
		errors.Is(err, ErrUnsupportedProvider):
		return auditErrOAuthUnverified
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}

func (e *Engine) now() time.Time {
	if e == nil || e.clock == nil {
		return time.Now()
	}
	return e.clock()
}
