package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authcore/identity"
	"github.com/MrEthical07/authcore/internal/limiters"
)

type VerificationMetrics struct {
	Confirmed   int
	Failure     int
	Resent      int
	RateLimited int
}

type VerificationEvents struct {
	Confirm string
	Resend  string
}

type VerificationDeps struct {
	Common

	ValidateEmail    func(string) error
	NewToken         func() (string, error)
	HashToken        func(string) string
	VerificationTTL  time.Duration
	SendVerification func(ctx context.Context, rec *identity.Identity, token string)

	Metrics VerificationMetrics
	Events  VerificationEvents
}

func (d *VerificationDeps) auditConfirm(ctx context.Context, rec *identity.Identity, err error, reason string) {
	r := AuditRecord{Event: d.Events.Confirm, Success: err == nil, Err: err}
	if rec != nil {
		r.UserID = rec.ID
		r.Email = rec.Email
		r.Provider = string(rec.Provider)
	}
	if reason != "" {
		r.Metadata = func() map[string]string { return map[string]string{"reason": reason} }
	}
	if err != nil {
		d.MetricInc(d.Metrics.Failure)
	}
	d.EmitAudit(ctx, r)
}

// RunConfirmEmail marks the identity holding token as verified and consumes
// the token. An expired token is cleared and reported as TokenExpired.
func RunConfirmEmail(ctx context.Context, token string, deps VerificationDeps) (*identity.Identity, error) {
	normalizeCommon(&deps.Common)
	if deps.Store == nil || deps.HashToken == nil {
		return nil, deps.Errors.EngineNotReady
	}

	if err := deps.limit(ctx, limiters.ActionVerificationVerify, "", deps.Metrics.RateLimited); err != nil {
		deps.auditConfirm(ctx, nil, err, "rate_limited")
		return nil, err
	}
	if token == "" {
		deps.auditConfirm(ctx, nil, deps.Errors.InvalidToken, "empty_token")
		return nil, deps.Errors.InvalidToken
	}

	digest := deps.HashToken(token)
	rec, err := deps.Store.GetByVerificationToken(ctx, digest)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			deps.auditConfirm(ctx, nil, deps.Errors.InvalidToken, "unknown_token")
			return nil, deps.Errors.InvalidToken
		}
		mapped := deps.MapStoreError(err)
		deps.auditConfirm(ctx, nil, mapped, "store")
		return nil, mapped
	}

	var expired bool
	updated, err := deps.Store.Update(ctx, rec.ID, func(i *identity.Identity) error {
		expired = false
		if i.VerificationTokenHash != digest {
			return errTokenGone
		}
		expiry := i.VerificationTokenExpiry
		i.ClearVerificationToken()
		if !deps.Now().Before(expiry) {
			expired = true
			return nil
		}
		i.Verified = true
		return nil
	})
	switch {
	case errors.Is(err, errTokenGone):
		deps.auditConfirm(ctx, rec, deps.Errors.InvalidToken, "consumed")
		return nil, deps.Errors.InvalidToken
	case err != nil:
		mapped := deps.MapStoreError(err)
		deps.auditConfirm(ctx, rec, mapped, "store")
		return nil, mapped
	case expired:
		deps.auditConfirm(ctx, rec, deps.Errors.TokenExpired, "expired")
		return nil, deps.Errors.TokenExpired
	}

	deps.MetricInc(deps.Metrics.Confirmed)
	deps.auditConfirm(ctx, updated, nil, "token")
	return updated, nil
}

// RunConfirmEmailByAddress verifies email without a token. Repeating it on a
// verified identity is a no-op.
func RunConfirmEmailByAddress(ctx context.Context, email string, deps VerificationDeps) (*identity.Identity, error) {
	normalizeCommon(&deps.Common)
	if deps.Store == nil {
		return nil, deps.Errors.EngineNotReady
	}

	rec, err := deps.Store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			deps.auditConfirm(ctx, nil, deps.Errors.NotFound, "unknown_email")
			return nil, deps.Errors.NotFound
		}
		mapped := deps.MapStoreError(err)
		deps.auditConfirm(ctx, nil, mapped, "store")
		return nil, mapped
	}

	updated, err := deps.Store.Update(ctx, rec.ID, func(i *identity.Identity) error {
		if i.Verified && i.VerificationTokenHash == "" {
			return identity.ErrNoChange
		}
		i.Verified = true
		i.ClearVerificationToken()
		return nil
	})
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			deps.auditConfirm(ctx, rec, deps.Errors.NotFound, "unknown_email")
			return nil, deps.Errors.NotFound
		}
		mapped := deps.MapStoreError(err)
		deps.auditConfirm(ctx, rec, mapped, "store")
		return nil, mapped
	}

	deps.MetricInc(deps.Metrics.Confirmed)
	deps.auditConfirm(ctx, updated, nil, "address")
	return updated, nil
}

// RunResendVerification issues a fresh verification token for an unverified
// identity, replacing the old one. Unknown and already verified emails
// succeed silently.
func RunResendVerification(ctx context.Context, email string, deps VerificationDeps) error {
	normalizeCommon(&deps.Common)
	if deps.Store == nil || deps.NewToken == nil || deps.HashToken == nil || deps.ValidateEmail == nil {
		return deps.Errors.EngineNotReady
	}

	audit := func(rec *identity.Identity, err error, reason string) {
		r := AuditRecord{Event: deps.Events.Resend, Success: err == nil, Email: email, Err: err}
		if rec != nil {
			r.UserID = rec.ID
		}
		if reason != "" {
			r.Metadata = func() map[string]string { return map[string]string{"reason": reason} }
		}
		deps.EmitAudit(ctx, r)
	}

	if err := deps.ValidateEmail(email); err != nil {
		audit(nil, err, "invalid_email")
		return err
	}
	if err := deps.limit(ctx, limiters.ActionVerificationResend, email, deps.Metrics.RateLimited); err != nil {
		audit(nil, err, "rate_limited")
		return err
	}

	rec, err := deps.Store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			audit(nil, nil, "unknown_email")
			return nil
		}
		mapped := deps.MapStoreError(err)
		audit(nil, mapped, "store")
		return mapped
	}
	if rec.Verified {
		audit(rec, nil, "already_verified")
		return nil
	}

	token, err := deps.NewToken()
	if err != nil {
		audit(rec, err, "token")
		return err
	}
	digest := deps.HashToken(token)
	expiry := deps.Now().Add(deps.VerificationTTL).UTC()

	var verified bool
	updated, err := deps.Store.Update(ctx, rec.ID, func(i *identity.Identity) error {
		verified = i.Verified
		if verified {
			return identity.ErrNoChange
		}
		i.VerificationTokenHash = digest
		i.VerificationTokenExpiry = expiry
		return nil
	})
	if err != nil {
		mapped := deps.MapStoreError(err)
		audit(rec, mapped, "store")
		return mapped
	}
	if verified {
		audit(updated, nil, "already_verified")
		return nil
	}

	deps.MetricInc(deps.Metrics.Resent)
	if deps.SendVerification != nil {
		deps.SendVerification(ctx, updated, token)
	}
	audit(updated, nil, "")
	return nil
}
