package authcore

import (
	"context"
	"time"

	"github.com/MrEthical07/authcore/identity"
	"github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/jwt"
)

// Logout revokes token until its own expiry. Logging out an expired or
// already revoked credential succeeds; a tampered one is ErrSessionInvalid.
func (e *Engine) Logout(ctx context.Context, token string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return flows.RunLogout(ctx, token, e.sessionDeps())
}

// Validate verifies a session credential. ModeJWTOnly checks signature and
// expiry; ModeStrict also rejects revoked credentials and identities that no
// longer exist. ModeInherit uses the engine's configured mode.
func (e *Engine) Validate(ctx context.Context, token string, mode RouteMode) (*SessionClaims, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if mode == ModeInherit {
		mode = e.config.ValidationMode
	}
	if mode != ModeJWTOnly && mode != ModeStrict {
		return nil, ErrInvalidRouteMode
	}

	start := time.Now()
	claims, err := flows.RunValidate(ctx, token, mode == ModeStrict, e.sessionDeps())
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}
	if err != nil {
		return nil, err
	}
	return toSessionClaims(claims), nil
}

func (e *Engine) sessionDeps() flows.SessionDeps {
	deps := flows.SessionDeps{
		Common:             e.commonDeps(),
		MapRevocationError: e.mapRevocationError,
		Metrics: flows.SessionMetrics{
			Logout:          int(MetricLogout),
			ValidateFailure: int(MetricValidateFailure),
			Revoked:         int(MetricSessionRevoked),
		},
		Events: flows.SessionEvents{Logout: auditEventLogout},
	}
	if e.jwtManager != nil {
		deps.Parse = e.jwtManager.Parse
	}
	if e.revocations != nil {
		deps.Revocations = e.revocations
	}
	return deps
}

func toSessionClaims(c *jwt.SessionClaims) *SessionClaims {
	out := &SessionClaims{
		IdentityID: c.Subject,
		Email:      c.Email,
		Provider:   identity.Provider(c.Provider),
		TokenID:    c.ID,
	}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	return out
}
