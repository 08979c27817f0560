package authcore

import (
	"context"

	"github.com/MrEthical07/authcore/internal"
	"github.com/MrEthical07/authcore/internal/flows"
)

// ConfirmEmail marks the identity holding token as verified and consumes the
// token. Unknown or consumed tokens are ErrInvalidToken; expired ones are
// cleared and reported as ErrTokenExpired.
func (e *Engine) ConfirmEmail(ctx context.Context, token string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	_, err := flows.RunConfirmEmail(ctx, token, e.verificationFlowDeps())
	return err
}

// ConfirmEmailByAddress verifies email without a token, for operators.
// It is idempotent and returns ErrNotFound for an unknown email.
func (e *Engine) ConfirmEmailByAddress(ctx context.Context, email string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	_, err := flows.RunConfirmEmailByAddress(ctx, email, e.verificationFlowDeps())
	return err
}

// ResendVerification rotates the verification token of an unverified
// identity and queues a new email. Unknown and already verified emails
// succeed silently.
func (e *Engine) ResendVerification(ctx context.Context, email string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return flows.RunResendVerification(ctx, email, e.verificationFlowDeps())
}

func (e *Engine) verificationFlowDeps() flows.VerificationDeps {
	return flows.VerificationDeps{
		Common:           e.commonDeps(),
		ValidateEmail:    validateEmail,
		NewToken:         internal.NewOpaqueToken,
		HashToken:        internal.HashToken,
		VerificationTTL:  e.config.Tokens.VerificationTTL,
		SendVerification: e.sendVerification,
		Metrics: flows.VerificationMetrics{
			Confirmed:   int(MetricEmailVerificationSuccess),
			Failure:     int(MetricEmailVerificationFailure),
			Resent:      int(MetricEmailVerificationResent),
			RateLimited: int(MetricEmailVerificationRateLimited),
		},
		Events: flows.VerificationEvents{
			Confirm: auditEventEmailVerification,
			Resend:  auditEventVerificationResend,
		},
	}
}
