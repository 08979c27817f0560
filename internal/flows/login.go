package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authcore/identity"
	"github.com/MrEthical07/authcore/internal/limiters"
)

// Credential is a minted session credential.
type Credential struct {
	Token     string
	TokenID   string
	ExpiresAt time.Time
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Identity   *identity.Identity
	Credential Credential
}

type LoginMetrics struct {
	Success        int
	Failure        int
	Locked         int
	AccountLocked  int
	Unverified     int
	SessionCreated int
	Rehashed       int
}

type LoginEvents struct {
	Login         string
	AccountLocked string
}

type LoginDeps struct {
	Common

	Lockout      *limiters.LockoutGuard
	Verify       func(plaintext, encoded string) bool
	NeedsUpgrade func(encoded string) bool
	Hash         func(string) (string, error)
	// DummyHash is verified against when the email is unknown so that
	// unknown and known emails take comparable time.
	DummyHash   string
	Issue       func(*identity.Identity) (Credential, error)
	LockedError func(until time.Time) error

	Metrics LoginMetrics
	Events  LoginEvents
}

// RunLogin authenticates email and password and mints a session credential.
//
// Order: lookup, lock check, password verification (failures recorded),
// verified check, credential minting, then one success write that clears the
// counters and upgrades a stale hash.
func RunLogin(ctx context.Context, email, password string, deps LoginDeps) (LoginResult, error) {
	normalizeCommon(&deps.Common)
	if deps.Store == nil || deps.Lockout == nil || deps.Verify == nil || deps.Issue == nil || deps.LockedError == nil {
		return LoginResult{}, deps.Errors.EngineNotReady
	}

	audit := func(rec *identity.Identity, err error, reason string) {
		r := AuditRecord{Event: deps.Events.Login, Success: err == nil, Email: email, Err: err}
		if rec != nil {
			r.UserID = rec.ID
			r.Provider = string(rec.Provider)
		}
		if reason != "" {
			r.Metadata = func() map[string]string { return map[string]string{"reason": reason} }
		}
		deps.EmitAudit(ctx, r)
	}

	rec, err := deps.Store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			if deps.DummyHash != "" {
				_ = deps.Verify(password, deps.DummyHash)
			}
			deps.MetricInc(deps.Metrics.Failure)
			audit(nil, deps.Errors.InvalidCredentials, "unknown_email")
			return LoginResult{}, deps.Errors.InvalidCredentials
		}
		mapped := deps.MapStoreError(err)
		audit(nil, mapped, "store")
		return LoginResult{}, mapped
	}

	if locked, until := deps.Lockout.Locked(rec); locked {
		lockedErr := deps.LockedError(until)
		deps.MetricInc(deps.Metrics.Locked)
		audit(rec, lockedErr, "locked")
		return LoginResult{}, lockedErr
	}

	var ok bool
	if rec.HasPassword() {
		ok = deps.Verify(password, rec.PasswordHash)
	} else if deps.DummyHash != "" {
		_ = deps.Verify(password, deps.DummyHash)
	}
	if !ok {
		deps.MetricInc(deps.Metrics.Failure)
		_, lockedNow, err := deps.Lockout.RecordFailure(ctx, rec.ID)
		if err != nil {
			mapped := deps.MapStoreError(err)
			audit(rec, mapped, "record_failure")
			return LoginResult{}, mapped
		}
		if lockedNow {
			deps.MetricInc(deps.Metrics.AccountLocked)
			deps.EmitAudit(ctx, AuditRecord{
				Event:    deps.Events.AccountLocked,
				Success:  true,
				UserID:   rec.ID,
				Email:    rec.Email,
				Provider: string(rec.Provider),
			})
		}
		audit(rec, deps.Errors.InvalidCredentials, "password_mismatch")
		return LoginResult{}, deps.Errors.InvalidCredentials
	}

	if !rec.Verified {
		deps.MetricInc(deps.Metrics.Unverified)
		audit(rec, deps.Errors.Unverified, "unverified")
		return LoginResult{}, deps.Errors.Unverified
	}

	cred, err := deps.Issue(rec)
	if err != nil {
		audit(rec, err, "issue")
		return LoginResult{}, err
	}

	var extra identity.MutateFunc
	if deps.NeedsUpgrade != nil && deps.Hash != nil && deps.NeedsUpgrade(rec.PasswordHash) {
		if upgraded, hashErr := deps.Hash(password); hashErr == nil {
			staleHash := rec.PasswordHash
			extra = func(i *identity.Identity) error {
				if i.PasswordHash != staleHash {
					return identity.ErrNoChange
				}
				i.PasswordHash = upgraded
				return nil
			}
		}
	}

	updated, err := deps.Lockout.RecordSuccess(ctx, rec.ID, extra)
	if err != nil {
		mapped := deps.MapStoreError(err)
		audit(rec, mapped, "record_success")
		return LoginResult{}, mapped
	}
	if extra != nil && updated.PasswordHash != rec.PasswordHash {
		deps.MetricInc(deps.Metrics.Rehashed)
	}

	deps.MetricInc(deps.Metrics.Success)
	deps.MetricInc(deps.Metrics.SessionCreated)
	deps.EmitAudit(ctx, AuditRecord{
		Event:    deps.Events.Login,
		Success:  true,
		UserID:   updated.ID,
		Email:    updated.Email,
		TokenID:  cred.TokenID,
		Provider: string(updated.Provider),
	})
	return LoginResult{Identity: updated, Credential: cred}, nil
}
