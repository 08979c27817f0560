package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/identity"
)

// timeoutStore bounds every call to the wrapped store and reports a missed
// deadline as identity.ErrUnavailable.
type timeoutStore struct {
	inner   identity.Store
	timeout time.Duration
}

func newTimeoutStore(inner identity.Store, timeout time.Duration) identity.Store {
	if timeout <= 0 {
		return inner
	}
	return &timeoutStore{inner: inner, timeout: timeout}
}

func (s *timeoutStore) Insert(ctx context.Context, rec *identity.Identity) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return deadline(s.inner.Insert(ctx, rec))
}

func (s *timeoutStore) GetByID(ctx context.Context, id string) (*identity.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	rec, err := s.inner.GetByID(ctx, id)
	return rec, deadline(err)
}

func (s *timeoutStore) GetByEmail(ctx context.Context, email string) (*identity.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	rec, err := s.inner.GetByEmail(ctx, email)
	return rec, deadline(err)
}

func (s *timeoutStore) GetByResetToken(ctx context.Context, tokenHash string) (*identity.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	rec, err := s.inner.GetByResetToken(ctx, tokenHash)
	return rec, deadline(err)
}

func (s *timeoutStore) GetByVerificationToken(ctx context.Context, tokenHash string) (*identity.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	rec, err := s.inner.GetByVerificationToken(ctx, tokenHash)
	return rec, deadline(err)
}

func (s *timeoutStore) Update(ctx context.Context, id string, mutate identity.MutateFunc) (*identity.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	rec, err := s.inner.Update(ctx, id, mutate)
	return rec, deadline(err)
}

func deadline(err error) error {
	if err == nil || errors.Is(err, identity.ErrUnavailable) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", identity.ErrUnavailable, err)
	}
	return err
}
