package authcore

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/authcore/identity"
	"github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/jwt"
)

// Login authenticates a password identity and mints a session credential.
//
// Checks run in a fixed order: unknown email (ErrInvalidCredentials), lock
// (*LockedError), password (ErrInvalidCredentials, counted towards the
// lockout), verified email (ErrUnverified). A successful login resets the
// failure counter and upgrades a stale password hash in the same write.
func (e *Engine) Login(ctx context.Context, email, password string) (*Session, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	deps := flows.LoginDeps{
		Common:      e.commonDeps(),
		Lockout:     e.lockout,
		Verify:      e.verifyPassword,
		Hash:        e.hashPassword,
		DummyHash:   e.dummyHash,
		Issue:       e.issue,
		LockedError: func(until time.Time) error { return &LockedError{Until: until} },
		Metrics: flows.LoginMetrics{
			Success:        int(MetricLoginSuccess),
			Failure:        int(MetricLoginFailure),
			Locked:         int(MetricLoginLocked),
			AccountLocked:  int(MetricAccountLocked),
			Unverified:     int(MetricLoginUnverified),
			SessionCreated: int(MetricSessionCreated),
			Rehashed:       int(MetricPasswordRehashed),
		},
		Events: flows.LoginEvents{
			Login:         auditEventLogin,
			AccountLocked: auditEventAccountLocked,
		},
	}
	if e.config.Password.UpgradeOnLogin && e.hasher != nil {
		deps.NeedsUpgrade = e.hasher.NeedsUpgrade
	}

	res, err := flows.RunLogin(ctx, email, password, deps)
	if err != nil {
		return nil, err
	}
	return newSession(res.Identity, res.Credential), nil
}

// ReconcileOAuthLogin returns the identity for a provider-vouched email,
// creating a verified, password-less one on first sight. An existing
// identity is returned unchanged, whichever provider created it. The boolean
// reports whether this call created it.
func (e *Engine) ReconcileOAuthLogin(ctx context.Context, profile OAuthProfile) (*identity.Identity, bool, error) {
	if e == nil {
		return nil, false, ErrEngineNotReady
	}
	if !e.config.Security.RequireVerifiedOAuth {
		profile.EmailVerified = true
	}
	return flows.RunReconcile(ctx, profile, flows.ReconcileDeps{
		Common:        e.commonDeps(),
		ValidateEmail: validateEmail,
		NewID:         uuid.NewString,
		Metrics: flows.ReconcileMetrics{
			Created:  int(MetricOAuthIdentityCreated),
			Existing: int(MetricOAuthIdentityExisting),
			Refused:  int(MetricOAuthRefused),
		},
		Events: flows.ReconcileEvents{Reconcile: auditEventOAuthReconcile},
	})
}

// LoginOAuth reconciles profile and mints a session credential for the
// resulting identity. The provider has already authenticated the user, so
// neither the lockout nor the verified flag applies.
func (e *Engine) LoginOAuth(ctx context.Context, profile OAuthProfile) (*Session, error) {
	rec, _, err := e.ReconcileOAuthLogin(ctx, profile)
	if err != nil {
		return nil, err
	}
	cred, err := e.issueFor(rec, profile.Provider)
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, flows.AuditRecord{
		Event:    auditEventLogin,
		Success:  true,
		UserID:   rec.ID,
		Email:    rec.Email,
		TokenID:  cred.TokenID,
		Provider: string(profile.Provider),
	})
	return newSession(rec, cred), nil
}

func (e *Engine) verifyPassword(plaintext, encoded string) bool {
	if e.hasher == nil {
		return false
	}
	return e.hasher.Verify(plaintext, encoded)
}

func (e *Engine) issue(rec *identity.Identity) (flows.Credential, error) {
	return e.issueFor(rec, rec.Provider)
}

// issueFor mints a credential naming the provider the user signed in with,
// which for OAuth logins may differ from the provider that created rec.
func (e *Engine) issueFor(rec *identity.Identity, provider identity.Provider) (flows.Credential, error) {
	if e.jwtManager == nil {
		return flows.Credential{}, ErrEngineNotReady
	}
	token, claims, err := e.jwtManager.Issue(jwt.Subject{
		IdentityID: rec.ID,
		Email:      rec.Email,
		Provider:   string(provider),
	})
	if err != nil {
		return flows.Credential{}, err
	}
	return flows.Credential{
		Token:     token,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func newSession(rec *identity.Identity, cred flows.Credential) *Session {
	return &Session{
		Token:     cred.Token,
		TokenID:   cred.TokenID,
		ExpiresAt: cred.ExpiresAt,
		Identity:  rec,
	}
}
