package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/authcore/identity"
)

// OAuthProfile is the identity an external provider vouched for.
type OAuthProfile struct {
	Email         string
	EmailVerified bool
	DisplayName   string
	Provider      identity.Provider
}

type ReconcileMetrics struct {
	Created  int
	Existing int
	Refused  int
}

type ReconcileEvents struct {
	Reconcile string
}

type ReconcileDeps struct {
	Common

	ValidateEmail func(string) error
	NewID         func() string

	Metrics ReconcileMetrics
	Events  ReconcileEvents
}

// RunReconcile finds the identity for profile.Email or creates a verified,
// password-less one. An existing identity is returned unchanged, whatever
// provider created it.
func RunReconcile(ctx context.Context, profile OAuthProfile, deps ReconcileDeps) (*identity.Identity, bool, error) {
	normalizeCommon(&deps.Common)
	if deps.Store == nil || deps.NewID == nil || deps.ValidateEmail == nil {
		return nil, false, deps.Errors.EngineNotReady
	}

	audit := func(rec *identity.Identity, created bool, err error, reason string) {
		r := AuditRecord{
			Event:    deps.Events.Reconcile,
			Success:  err == nil,
			Email:    profile.Email,
			Provider: string(profile.Provider),
			Err:      err,
		}
		if rec != nil {
			r.UserID = rec.ID
		}
		r.Metadata = func() map[string]string {
			m := map[string]string{"created": "false"}
			if created {
				m["created"] = "true"
			}
			if reason != "" {
				m["reason"] = reason
			}
			return m
		}
		deps.EmitAudit(ctx, r)
	}

	if !profile.Provider.Valid() || profile.Provider == identity.ProviderPassword {
		deps.MetricInc(deps.Metrics.Refused)
		audit(nil, false, deps.Errors.UnsupportedProvider, "provider")
		return nil, false, deps.Errors.UnsupportedProvider
	}
	if err := deps.ValidateEmail(profile.Email); err != nil {
		deps.MetricInc(deps.Metrics.Refused)
		audit(nil, false, err, "invalid_email")
		return nil, false, err
	}
	if !profile.EmailVerified {
		deps.MetricInc(deps.Metrics.Refused)
		audit(nil, false, deps.Errors.OAuthEmailUnverified, "email_unverified")
		return nil, false, deps.Errors.OAuthEmailUnverified
	}

	existing, err := deps.Store.GetByEmail(ctx, profile.Email)
	switch {
	case err == nil:
		deps.MetricInc(deps.Metrics.Existing)
		audit(existing, false, nil, "")
		return existing, false, nil
	case !errors.Is(err, identity.ErrNotFound):
		mapped := deps.MapStoreError(err)
		audit(nil, false, mapped, "store")
		return nil, false, mapped
	}

	now := deps.Now().UTC()
	rec := &identity.Identity{
		ID:          deps.NewID(),
		Email:       profile.Email,
		DisplayName: strings.TrimSpace(profile.DisplayName),
		Verified:    true,
		Provider:    profile.Provider,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := deps.Store.Insert(ctx, rec); err != nil {
		if !errors.Is(err, identity.ErrDuplicateEmail) {
			mapped := deps.MapStoreError(err)
			audit(nil, false, mapped, "store")
			return nil, false, mapped
		}
		// Lost the race to a concurrent sign-in for the same email.
		winner, err := deps.Store.GetByEmail(ctx, profile.Email)
		if err != nil {
			mapped := deps.MapStoreError(err)
			audit(nil, false, mapped, "store")
			return nil, false, mapped
		}
		deps.MetricInc(deps.Metrics.Existing)
		audit(winner, false, nil, "raced")
		return winner, false, nil
	}

	deps.MetricInc(deps.Metrics.Created)
	audit(rec, true, nil, "")
	return rec, true, nil
}
