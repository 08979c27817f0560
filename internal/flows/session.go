package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authcore/identity"
	"github.com/MrEthical07/authcore/jwt"
)

// Revocations is the subset of the revocation list the session flows use.
type Revocations interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type SessionMetrics struct {
	Logout          int
	ValidateFailure int
	Revoked         int
}

type SessionEvents struct {
	Logout string
}

type SessionDeps struct {
	Common

	Parse              func(token string) (*jwt.SessionClaims, error)
	Revocations        Revocations
	MapRevocationError func(error) error

	Metrics SessionMetrics
	Events  SessionEvents
}

func normalizeSessionDeps(deps *SessionDeps) {
	normalizeCommon(&deps.Common)
	if deps.MapRevocationError == nil {
		deps.MapRevocationError = func(err error) error { return err }
	}
}

func (deps *SessionDeps) parse(token string) (*jwt.SessionClaims, error) {
	claims, err := deps.Parse(token)
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrExpired):
		return nil, deps.Errors.SessionExpired
	default:
		return nil, deps.Errors.SessionInvalid
	}
}

// RunLogout revokes the credential's id until its own expiry. Logging out an
// already expired or already revoked credential succeeds.
func RunLogout(ctx context.Context, token string, deps SessionDeps) error {
	normalizeSessionDeps(&deps)
	if deps.Parse == nil {
		return deps.Errors.EngineNotReady
	}

	claims, err := deps.parse(token)
	if err != nil {
		if errors.Is(err, deps.Errors.SessionExpired) {
			return nil
		}
		deps.EmitAudit(ctx, AuditRecord{Event: deps.Events.Logout, Err: err})
		return err
	}

	if deps.Revocations != nil && claims.ExpiresAt != nil {
		if err := deps.Revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
			mapped := deps.MapRevocationError(err)
			deps.EmitAudit(ctx, AuditRecord{Event: deps.Events.Logout, UserID: claims.Subject, TokenID: claims.ID, Err: mapped})
			return mapped
		}
	}

	deps.MetricInc(deps.Metrics.Logout)
	deps.EmitAudit(ctx, AuditRecord{
		Event:    deps.Events.Logout,
		Success:  true,
		UserID:   claims.Subject,
		Email:    claims.Email,
		TokenID:  claims.ID,
		Provider: claims.Provider,
	})
	return nil
}

// RunValidate verifies a credential. With strict set it also rejects revoked
// credentials and credentials whose identity no longer exists.
func RunValidate(ctx context.Context, token string, strict bool, deps SessionDeps) (*jwt.SessionClaims, error) {
	normalizeSessionDeps(&deps)
	if deps.Parse == nil {
		return nil, deps.Errors.EngineNotReady
	}

	claims, err := deps.parse(token)
	if err != nil {
		deps.MetricInc(deps.Metrics.ValidateFailure)
		return nil, err
	}
	if !strict {
		return claims, nil
	}

	if deps.Revocations != nil {
		revoked, err := deps.Revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, deps.MapRevocationError(err)
		}
		if revoked {
			deps.MetricInc(deps.Metrics.Revoked)
			return nil, deps.Errors.SessionRevoked
		}
	}

	if deps.Store != nil {
		if _, err := deps.Store.GetByID(ctx, claims.Subject); err != nil {
			if errors.Is(err, identity.ErrNotFound) {
				deps.MetricInc(deps.Metrics.ValidateFailure)
				return nil, deps.Errors.SessionInvalid
			}
			return nil, deps.MapStoreError(err)
		}
	}
	return claims, nil
}
