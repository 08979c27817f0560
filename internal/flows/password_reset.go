package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authcore/identity"
	"github.com/MrEthical07/authcore/internal/limiters"
)

type PasswordResetMetrics struct {
	Request        int
	ConfirmSuccess int
	ConfirmFailure int
	RateLimited    int
}

type PasswordResetEvents struct {
	Request string
	Confirm string
}

type PasswordResetDeps struct {
	Common

	ValidateEmail    func(string) error
	CheckPassword    func(string) error
	Hash             func(string) (string, error)
	NewToken         func() (string, error)
	HashToken        func(string) string
	ResetTTL         time.Duration
	SendReset        func(ctx context.Context, rec *identity.Identity, token string)
	EnumerationDelay func(context.Context)

	Metrics PasswordResetMetrics
	Events  PasswordResetEvents
}

// errTokenGone aborts an update whose token was consumed or replaced
// between lookup and write.
var errTokenGone = errors.New("token no longer held")

// RunRequestPasswordReset mints a reset token for email, replacing any
// previous one, and queues the reset link. Unknown emails succeed silently.
func RunRequestPasswordReset(ctx context.Context, email string, deps PasswordResetDeps) error {
	normalizeCommon(&deps.Common)
	if deps.Store == nil || deps.NewToken == nil || deps.HashToken == nil || deps.ValidateEmail == nil {
		return deps.Errors.EngineNotReady
	}

	audit := func(rec *identity.Identity, err error, reason string) {
		r := AuditRecord{Event: deps.Events.Request, Success: err == nil, Email: email, Err: err}
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
	if err := deps.limit(ctx, limiters.ActionResetRequest, email, deps.Metrics.RateLimited); err != nil {
		audit(nil, err, "rate_limited")
		return err
	}

	deps.MetricInc(deps.Metrics.Request)

	rec, err := deps.Store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			if deps.EnumerationDelay != nil {
				deps.EnumerationDelay(ctx)
			}
			audit(nil, nil, "unknown_email")
			return nil
		}
		mapped := deps.MapStoreError(err)
		audit(nil, mapped, "store")
		return mapped
	}

	token, err := deps.NewToken()
	if err != nil {
		audit(rec, err, "token")
		return err
	}
	digest := deps.HashToken(token)
	expiry := deps.Now().Add(deps.ResetTTL).UTC()

	updated, err := deps.Store.Update(ctx, rec.ID, func(i *identity.Identity) error {
		i.ResetTokenHash = digest
		i.ResetTokenExpiry = expiry
		return nil
	})
	if err != nil {
		mapped := deps.MapStoreError(err)
		audit(rec, mapped, "store")
		return mapped
	}

	if deps.SendReset != nil {
		deps.SendReset(ctx, updated, token)
	}
	audit(updated, nil, "")
	return nil
}

// RunConfirmPasswordReset consumes a reset token and stores newPassword.
//
// An expired token is cleared before TokenExpired is returned. A weak
// password is rejected without consuming the token.
func RunConfirmPasswordReset(ctx context.Context, token, newPassword string, deps PasswordResetDeps) error {
	normalizeCommon(&deps.Common)
	if deps.Store == nil || deps.Hash == nil || deps.HashToken == nil || deps.CheckPassword == nil {
		return deps.Errors.EngineNotReady
	}

	fail := func(rec *identity.Identity, err error, reason string) error {
		deps.MetricInc(deps.Metrics.ConfirmFailure)
		r := AuditRecord{Event: deps.Events.Confirm, Err: err,
			Metadata: func() map[string]string { return map[string]string{"reason": reason} }}
		if rec != nil {
			r.UserID = rec.ID
			r.Email = rec.Email
		}
		deps.EmitAudit(ctx, r)
		return err
	}

	if err := deps.limit(ctx, limiters.ActionResetConfirm, "", deps.Metrics.RateLimited); err != nil {
		return fail(nil, err, "rate_limited")
	}
	if token == "" {
		return fail(nil, deps.Errors.InvalidToken, "empty_token")
	}

	digest := deps.HashToken(token)
	rec, err := deps.Store.GetByResetToken(ctx, digest)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return fail(nil, deps.Errors.InvalidToken, "unknown_token")
		}
		return fail(nil, deps.MapStoreError(err), "store")
	}

	if !deps.Now().Before(rec.ResetTokenExpiry) {
		_, err := deps.Store.Update(ctx, rec.ID, func(i *identity.Identity) error {
			if i.ResetTokenHash != digest {
				return identity.ErrNoChange
			}
			i.ClearResetToken()
			return nil
		})
		if err != nil {
			return fail(rec, deps.MapStoreError(err), "store")
		}
		return fail(rec, deps.Errors.TokenExpired, "expired")
	}

	if err := deps.CheckPassword(newPassword); err != nil {
		return fail(rec, err, "weak_password")
	}
	hash, err := deps.Hash(newPassword)
	if err != nil {
		return fail(rec, err, "hash")
	}

	var expired bool
	updated, err := deps.Store.Update(ctx, rec.ID, func(i *identity.Identity) error {
		expired = false
		if i.ResetTokenHash != digest {
			return errTokenGone
		}
		expiry := i.ResetTokenExpiry
		i.ClearResetToken()
		if !deps.Now().Before(expiry) {
			expired = true
			return nil
		}
		i.PasswordHash = hash
		i.ResetLockout()
		return nil
	})
	switch {
	case errors.Is(err, errTokenGone):
		return fail(rec, deps.Errors.InvalidToken, "consumed")
	case err != nil:
		return fail(rec, deps.MapStoreError(err), "store")
	case expired:
		return fail(rec, deps.Errors.TokenExpired, "expired")
	}

	deps.MetricInc(deps.Metrics.ConfirmSuccess)
	deps.EmitAudit(ctx, AuditRecord{
		Event:    deps.Events.Confirm,
		Success:  true,
		UserID:   updated.ID,
		Email:    updated.Email,
		Provider: string(updated.Provider),
	})
	return nil
}
