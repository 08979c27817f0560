package limiters

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authcore/identity"
)

// LockoutConfig holds the automatic account lockout policy.
type LockoutConfig struct {
	Threshold int           // consecutive failures that trigger a lock; 0 disables locking
	Duration  time.Duration // how long a lock lasts
}

// LockoutGuard tracks consecutive failed logins on the identity record and
// locks the identity once the threshold is reached.
//
// Counters are only reset by a successful login or password reset; an
// expired lock leaves the counter in place, so the next failure re-locks.
type LockoutGuard struct {
	store  identity.Store
	config LockoutConfig
	now    func() time.Time
}

// NewLockoutGuard creates a guard writing through store.
func NewLockoutGuard(store identity.Store, cfg LockoutConfig, now func() time.Time) *LockoutGuard {
	if now == nil {
		now = time.Now
	}
	return &LockoutGuard{store: store, config: cfg, now: now}
}

// Locked reports whether rec is locked now and until when.
func (g *LockoutGuard) Locked(rec *identity.Identity) (bool, time.Time) {
	if rec.Locked(g.now()) {
		return true, rec.LockedUntil
	}
	return false, time.Time{}
}

// RecordFailure atomically increments the failure counter and, on reaching
// the threshold while not already locked, sets the lock. It reports whether
// this call applied a new lock.
func (g *LockoutGuard) RecordFailure(ctx context.Context, id string) (*identity.Identity, bool, error) {
	var lockedNow bool
	rec, err := g.store.Update(ctx, id, func(i *identity.Identity) error {
		lockedNow = false
		now := g.now()
		i.FailedAttempts++
		if g.config.Threshold <= 0 || i.Locked(now) {
			return nil
		}
		if i.FailedAttempts >= g.config.Threshold {
			i.LockedUntil = now.Add(g.config.Duration).UTC()
			lockedNow = true
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return rec, lockedNow, nil
}

// RecordSuccess clears the counter and lock, applying extra in the same
// write. Nothing is written when the record is already clean and extra
// leaves it unchanged.
func (g *LockoutGuard) RecordSuccess(ctx context.Context, id string, extra identity.MutateFunc) (*identity.Identity, error) {
	return g.store.Update(ctx, id, func(i *identity.Identity) error {
		changed := i.FailedAttempts != 0 || !i.LockedUntil.IsZero()
		i.ResetLockout()
		if extra != nil {
			switch err := extra(i); {
			case err == nil:
				changed = true
			case errors.Is(err, identity.ErrNoChange):
			default:
				return err
			}
		}
		if !changed {
			return identity.ErrNoChange
		}
		return nil
	})
}
