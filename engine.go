package authcore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/authcore/identity"
	"github.com/MrEthical07/authcore/internal"
	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/internal/limiters"
	"github.com/MrEthical07/authcore/internal/mailq"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/internal/stores"
	"github.com/MrEthical07/authcore/jwt"
	authmail "github.com/MrEthical07/authcore/mail"
	"github.com/MrEthical07/authcore/password"
)

// Engine runs the authentication flows against an identity store.
//
// An Engine is built once by a Builder and is safe for concurrent use.
type Engine struct {
	config      Config
	store       identity.Store
	hasher      password.Hasher
	dummyHash   string
	jwtManager  *jwt.Manager
	lockout     *limiters.LockoutGuard
	requests    *limiters.RequestLimiter
	revocations stores.RevocationStore
	mailQueue   *mailq.Queue
	composer    authmail.Composer
	audit       *internalaudit.Dispatcher
	metrics     *Metrics
	logger      *slog.Logger
	clock       func() time.Time
}

// Close drains queued mail and audit events. The Engine must not be used
// afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.mailQueue.Close()
	e.audit.Close()
}

// Config returns a copy of the engine configuration without key material.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	cfg := e.config
	cfg.Session.PrivateKey = nil
	cfg.Session.PublicKey = nil
	return cfg
}

// Now reads the engine clock, the one lock expiries are computed against.
func (e *Engine) Now() time.Time { return e.now() }

// AuditDropped reports audit events lost to a full buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MailDropped reports emails lost to a full or closed queue.
func (e *Engine) MailDropped() uint64 {
	if e == nil || e.mailQueue == nil {
		return 0
	}
	return e.mailQueue.Dropped()
}

// MetricsSnapshot copies the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

/*
====================================
SHARED FLOW WIRING
====================================
*/

func (e *Engine) commonDeps() flows.Common {
	c := flows.Common{
		Now:           e.now,
		ClientIP:      clientIPFromContext,
		MapStoreError: e.mapStoreError,
		MetricInc:     func(id int) { e.metricInc(MetricID(id)) },
		EmitAudit:     e.emitAudit,
		Errors: flows.Errors{
			EngineNotReady:       ErrEngineNotReady,
			AlreadyExists:        ErrAlreadyExists,
			NotFound:             ErrNotFound,
			InvalidCredentials:   ErrInvalidCredentials,
			Unverified:           ErrUnverified,
			InvalidToken:         ErrInvalidToken,
			TokenExpired:         ErrTokenExpired,
			InvalidEmail:         ErrInvalidEmail,
			RateLimited:          ErrRateLimited,
			SessionInvalid:       ErrSessionInvalid,
			SessionExpired:       ErrSessionExpired,
			SessionRevoked:       ErrSessionRevoked,
			OAuthEmailUnverified: ErrOAuthEmailUnverified,
			UnsupportedProvider:  ErrUnsupportedProvider,
		},
	}
	if e.store != nil {
		c.Store = e.store
	}
	if e.requests != nil {
		c.Enforce = e.enforce
	}
	return c
}

// mapStoreError converts backend failures into the engine's sentinels.
func (e *Engine) mapStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, identity.ErrDuplicateEmail):
		return ErrAlreadyExists
	case errors.Is(err, identity.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, identity.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		e.metricInc(MetricStoreUnavailable)
		e.logger.Warn("identity store unavailable", slog.Any("error", err))
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	default:
		return err
	}
}

func (e *Engine) mapRevocationError(err error) error {
	if errors.Is(err, stores.ErrRevocationUnavailable) {
		e.metricInc(MetricStoreUnavailable)
		e.logger.Warn("revocation list unavailable", slog.Any("error", err))
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return err
}

func (e *Engine) enforce(ctx context.Context, action limiters.Action, identifier, ip string) error {
	err := e.requests.Enforce(ctx, action, identifier, ip)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, limiters.ErrRequestRateLimited):
		return ErrRateLimited
	case errors.Is(err, rate.ErrRedisUnavailable):
		e.logger.Warn("rate limit counter unavailable", slog.Any("error", err))
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	default:
		return err
	}
}

// validateEmail accepts a bare RFC 5322 address. The address is matched
// exactly as given, so surrounding whitespace and display names are refused
// rather than trimmed.
func validateEmail(email string) error {
	if email == "" || len(email) > 254 || strings.TrimSpace(email) != email {
		return ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return ErrInvalidEmail
	}
	return nil
}

func (e *Engine) checkPassword(pw string) error {
	return e.config.Policy.Check(pw)
}

func (e *Engine) hashPassword(pw string) (string, error) {
	return e.hasher.Hash(pw)
}

func (e *Engine) sendVerification(_ context.Context, rec *identity.Identity, token string) {
	msg, err := e.composer.Verification(rec.Email, rec.DisplayName, token, e.config.Tokens.VerificationTTL)
	if err != nil {
		e.logger.Error("render verification email", slog.String("user_id", rec.ID), slog.Any("error", err))
		return
	}
	e.mailQueue.Enqueue(msg)
}

func (e *Engine) sendReset(_ context.Context, rec *identity.Identity, token string) {
	msg, err := e.composer.Reset(rec.Email, token, e.config.Tokens.ResetTTL)
	if err != nil {
		e.logger.Error("render reset email", slog.String("user_id", rec.ID), slog.Any("error", err))
		return
	}
	e.mailQueue.Enqueue(msg)
}

func (e *Engine) observeMail(kind string, outcome mailq.Outcome) {
	switch outcome {
	case mailq.Delivered:
		e.metricInc(MetricMailDelivered)
	case mailq.Failed:
		e.metricInc(MetricMailFailed)
		e.emitAudit(context.Background(), flows.AuditRecord{
			Event:    auditEventMailFailure,
			Metadata: func() map[string]string { return map[string]string{"kind": kind} },
		})
	case mailq.Dropped:
		e.metricInc(MetricMailDropped)
	}
}

func (e *Engine) enumerationDelay(ctx context.Context) {
	d := e.config.Security.EnumerationDelay
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

/*
====================================
REGISTRATION
====================================
*/

// Register creates an unverified password identity and queues its
// verification email. It returns ErrInvalidEmail, a *PolicyError,
// ErrAlreadyExists, ErrRateLimited or ErrStoreUnavailable on failure.
func (e *Engine) Register(ctx context.Context, in RegisterInput) (*identity.Identity, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	return flows.RunRegister(ctx, in, flows.RegisterDeps{
		Common:           e.commonDeps(),
		ValidateEmail:    validateEmail,
		CheckPassword:    e.checkPassword,
		Hash:             e.hashPassword,
		NewID:            uuid.NewString,
		NewToken:         internal.NewOpaqueToken,
		HashToken:        internal.HashToken,
		VerificationTTL:  e.config.Tokens.VerificationTTL,
		SendVerification: e.sendVerification,
		Metrics: flows.RegisterMetrics{
			Success:     int(MetricRegisterSuccess),
			Duplicate:   int(MetricRegisterDuplicate),
			Rejected:    int(MetricRegisterRejected),
			RateLimited: int(MetricRegisterRateLimited),
		},
		Events: flows.RegisterEvents{Register: auditEventRegister},
	})
}
