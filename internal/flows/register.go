package flows

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/authcore/identity"
	"github.com/MrEthical07/authcore/internal/limiters"
)

// RegisterInput is a password sign-up request.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

type RegisterMetrics struct {
	Success     int
	Duplicate   int
	Rejected    int
	RateLimited int
}

type RegisterEvents struct {
	Register string
}

type RegisterDeps struct {
	Common

	ValidateEmail    func(string) error
	CheckPassword    func(string) error
	Hash             func(string) (string, error)
	NewID            func() string
	NewToken         func() (string, error)
	HashToken        func(string) string
	VerificationTTL  time.Duration
	SendVerification func(ctx context.Context, rec *identity.Identity, token string)

	Metrics RegisterMetrics
	Events  RegisterEvents
}

// RunRegister creates an unverified password identity and queues its
// verification email.
func RunRegister(ctx context.Context, in RegisterInput, deps RegisterDeps) (*identity.Identity, error) {
	normalizeCommon(&deps.Common)
	if deps.Store == nil || deps.Hash == nil || deps.NewID == nil || deps.NewToken == nil ||
		deps.HashToken == nil || deps.ValidateEmail == nil || deps.CheckPassword == nil {
		return nil, deps.Errors.EngineNotReady
	}

	fail := func(err error, reason string) (*identity.Identity, error) {
		deps.EmitAudit(ctx, AuditRecord{
			Event:    deps.Events.Register,
			Email:    in.Email,
			Provider: string(identity.ProviderPassword),
			Err:      err,
			Metadata: func() map[string]string { return map[string]string{"reason": reason} },
		})
		return nil, err
	}

	if err := deps.ValidateEmail(in.Email); err != nil {
		deps.MetricInc(deps.Metrics.Rejected)
		return fail(err, "invalid_email")
	}
	if err := deps.limit(ctx, limiters.ActionRegister, in.Email, deps.Metrics.RateLimited); err != nil {
		return fail(err, "rate_limited")
	}
	if err := deps.CheckPassword(in.Password); err != nil {
		deps.MetricInc(deps.Metrics.Rejected)
		return fail(err, "weak_password")
	}

	// Cheap pre-check so a taken email does not pay for a hash. Insert still
	// decides races through the store's uniqueness guarantee.
	if _, err := deps.Store.GetByEmail(ctx, in.Email); err == nil {
		deps.MetricInc(deps.Metrics.Duplicate)
		return fail(deps.Errors.AlreadyExists, "duplicate")
	} else if !errors.Is(err, identity.ErrNotFound) {
		return fail(deps.MapStoreError(err), "store")
	}

	hash, err := deps.Hash(in.Password)
	if err != nil {
		return fail(err, "hash")
	}
	token, err := deps.NewToken()
	if err != nil {
		return fail(err, "token")
	}

	now := deps.Now().UTC()
	rec := &identity.Identity{
		ID:                      deps.NewID(),
		Email:                   in.Email,
		FirstName:               strings.TrimSpace(in.FirstName),
		LastName:                strings.TrimSpace(in.LastName),
		PasswordHash:            hash,
		Verified:                false,
		VerificationTokenHash:   deps.HashToken(token),
		VerificationTokenExpiry: now.Add(deps.VerificationTTL),
		Provider:                identity.ProviderPassword,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	rec.DisplayName = strings.TrimSpace(rec.FirstName + " " + rec.LastName)

	if err := deps.Store.Insert(ctx, rec); err != nil {
		if errors.Is(err, identity.ErrDuplicateEmail) {
			deps.MetricInc(deps.Metrics.Duplicate)
			return fail(deps.Errors.AlreadyExists, "duplicate")
		}
		return fail(deps.MapStoreError(err), "store")
	}

	if deps.SendVerification != nil {
		deps.SendVerification(ctx, rec, token)
	}

	deps.MetricInc(deps.Metrics.Success)
	deps.EmitAudit(ctx, AuditRecord{
		Event:    deps.Events.Register,
		Success:  true,
		UserID:   rec.ID,
		Email:    rec.Email,
		Provider: string(rec.Provider),
	})
	return rec, nil
}
