package authcore

import (
	"context"

	"github.com/MrEthical07/authcore/internal"
	"github.com/MrEthical07/authcore/internal/flows"
)

// RequestPasswordReset mints a one-hour reset token for email and queues the
// reset link, replacing any earlier token. An unknown email succeeds without
// sending anything so callers cannot probe for accounts.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return flows.RunRequestPasswordReset(ctx, email, e.passwordResetFlowDeps())
}

// ConfirmPasswordReset stores newPassword for the identity holding token.
//
// It returns ErrInvalidToken for an unknown or consumed token, ErrTokenExpired
// (after clearing the token) for an expired one, and a *PolicyError without
// consuming the token when newPassword is too weak. Success also clears the
// lockout.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return flows.RunConfirmPasswordReset(ctx, token, newPassword, e.passwordResetFlowDeps())
}

func (e *Engine) passwordResetFlowDeps() flows.PasswordResetDeps {
	return flows.PasswordResetDeps{
		Common:           e.commonDeps(),
		ValidateEmail:    validateEmail,
		CheckPassword:    e.checkPassword,
		Hash:             e.hashPassword,
		NewToken:         internal.NewOpaqueToken,
		HashToken:        internal.HashToken,
		ResetTTL:         e.config.Tokens.ResetTTL,
		SendReset:        e.sendReset,
		EnumerationDelay: e.enumerationDelay,
		Metrics: flows.PasswordResetMetrics{
			Request:        int(MetricPasswordResetRequest),
			ConfirmSuccess: int(MetricPasswordResetConfirmSuccess),
			ConfirmFailure: int(MetricPasswordResetConfirmFailure),
			RateLimited:    int(MetricPasswordResetRateLimited),
		},
		Events: flows.PasswordResetEvents{
			Request: auditEventPasswordResetRequest,
			Confirm: auditEventPasswordResetConfirm,
		},
	}
}
