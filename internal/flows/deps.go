package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/authcore/identity"
	"github.com/MrEthical07/authcore/internal/limiters"
)

// Errors maps flow outcomes onto the engine's public sentinels.
type Errors struct {
	EngineNotReady       error
	AlreadyExists        error
	NotFound             error
	InvalidCredentials   error
	Unverified           error
	InvalidToken         error
	TokenExpired         error
	InvalidEmail         error
	RateLimited          error
	SessionInvalid       error
	SessionExpired       error
	SessionRevoked       error
	OAuthEmailUnverified error
	UnsupportedProvider  error
}

// AuditRecord is what a flow reports to the engine's audit hook.
type AuditRecord struct {
	Event    string
	Success  bool
	UserID   string
	Email    string
	TokenID  string
	Provider string
	Err      error
	Metadata func() map[string]string
}

// Common holds the dependencies every flow shares.
type Common struct {
	Store         identity.Store
	Now           func() time.Time
	ClientIP      func(context.Context) string
	MapStoreError func(error) error
	Enforce       func(ctx context.Context, action limiters.Action, identifier, ip string) error
	MetricInc     func(int)
	EmitAudit     func(context.Context, AuditRecord)
	Errors        Errors
}

func normalizeCommon(c *Common) {
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.ClientIP == nil {
		c.ClientIP = func(context.Context) string { return "" }
	}
	if c.MapStoreError == nil {
		c.MapStoreError = func(err error) error { return err }
	}
	if c.Enforce == nil {
		c.Enforce = func(context.Context, limiters.Action, string, string) error { return nil }
	}
	if c.MetricInc == nil {
		c.MetricInc = func(int) {}
	}
	if c.EmitAudit == nil {
		c.EmitAudit = func(context.Context, AuditRecord) {}
	}
}

// limit runs the request limiter and counts a hit when it refuses.
func (c *Common) limit(ctx context.Context, action limiters.Action, identifier string, rateLimitedMetric int) error {
	if err := c.Enforce(ctx, action, identifier, c.ClientIP(ctx)); err != nil {
		c.MetricInc(rateLimitedMetric)
		return err
	}
	return nil
}
