// Package storetest holds the behaviour every identity.Store backend must share.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/authcore/identity"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) identity.Store

// Run executes the conformance suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("InsertAndLookup", func(t *testing.T) { testInsertAndLookup(t, newStore(t)) })
	t.Run("DuplicateEmail", func(t *testing.T) { testDuplicateEmail(t, newStore(t)) })
	t.Run("EmailIsCaseSensitive", func(t *testing.T) { testEmailCaseSensitive(t, newStore(t)) })
	t.Run("TokenIndexes", func(t *testing.T) { testTokenIndexes(t, newStore(t)) })
	t.Run("UpdateAbortAndNoChange", func(t *testing.T) { testUpdateAbort(t, newStore(t)) })
	t.Run("UpdateMissing", func(t *testing.T) { testUpdateMissing(t, newStore(t)) })
	t.Run("ConcurrentUpdates", func(t *testing.T) { testConcurrentUpdates(t, newStore(t)) })
	t.Run("ConcurrentInsertSameEmail", func(t *testing.T) { testConcurrentInsert(t, newStore(t)) })
}

// NewIdentity returns a valid unverified password identity for email.
func NewIdentity(email string) *identity.Identity {
	now := time.Now().UTC().Truncate(time.Second)
	return &identity.Identity{
		ID:           uuid.NewString(),
		Email:        email,
		FirstName:    "Ada",
		LastName:     "Lovelace",
		DisplayName:  "Ada Lovelace",
		PasswordHash: "$argon2id$v=19$m=8192,t=1,p=1$c2FsdA$aGFzaA",
		Provider:     identity.ProviderPassword,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func testInsertAndLookup(t *testing.T, s identity.Store) {
	ctx := context.Background()
	rec := NewIdentity("ada@example.com")
	require.NoError(t, s.Insert(ctx, rec))

	byID, err := s.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Email, byID.Email)
	assert.Equal(t, rec.PasswordHash, byID.PasswordHash)
	assert.Equal(t, identity.ProviderPassword, byID.Provider)
	assert.False(t, byID.Verified)
	assert.True(t, rec.CreatedAt.Equal(byID.CreatedAt))

	byEmail, err := s.GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, byEmail.ID)

	_, err = s.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, identity.ErrNotFound)
	_, err = s.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, identity.ErrNotFound)
}

func testDuplicateEmail(t *testing.T, s identity.Store) {
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, NewIdentity("dup@example.com")))
	err := s.Insert(ctx, NewIdentity("dup@example.com"))
	assert.ErrorIs(t, err, identity.ErrDuplicateEmail)
}

func testEmailCaseSensitive(t *testing.T, s identity.Store) {
	ctx := context.Background()
	require.NoError(t, s.Insert(ctx, NewIdentity("Case@example.com")))
	require.NoError(t, s.Insert(ctx, NewIdentity("case@example.com")))

	_, err := s.GetByEmail(ctx, "CASE@example.com")
	assert.ErrorIs(t, err, identity.ErrNotFound)
}

func testTokenIndexes(t *testing.T, s identity.Store) {
	ctx := context.Background()
	rec := NewIdentity("tokens@example.com")
	rec.VerificationTokenHash = "verif-digest"
	rec.VerificationTokenExpiry = time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, s.Insert(ctx, rec))

	got, err := s.GetByVerificationToken(ctx, "verif-digest")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)

	_, err = s.Update(ctx, rec.ID, func(i *identity.Identity) error {
		i.ResetTokenHash = "reset-one"
		i.ResetTokenExpiry = time.Now().Add(time.Hour)
		return nil
	})
	require.NoError(t, err)
	_, err = s.Update(ctx, rec.ID, func(i *identity.Identity) error {
		i.ResetTokenHash = "reset-two"
		return nil
	})
	require.NoError(t, err)

	_, err = s.GetByResetToken(ctx, "reset-one")
	assert.ErrorIs(t, err, identity.ErrNotFound, "overwritten reset token must not resolve")
	got, err = s.GetByResetToken(ctx, "reset-two")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)

	_, err = s.Update(ctx, rec.ID, func(i *identity.Identity) error {
		i.ClearResetToken()
		i.ClearVerificationToken()
		return nil
	})
	require.NoError(t, err)
	_, err = s.GetByResetToken(ctx, "reset-two")
	assert.ErrorIs(t, err, identity.ErrNotFound)
	_, err = s.GetByVerificationToken(ctx, "verif-digest")
	assert.ErrorIs(t, err, identity.ErrNotFound)
	_, err = s.GetByResetToken(ctx, "")
	assert.ErrorIs(t, err, identity.ErrNotFound)
}

func testUpdateAbort(t *testing.T, s identity.Store) {
	ctx := context.Background()
	rec := NewIdentity("abort@example.com")
	require.NoError(t, s.Insert(ctx, rec))
	before, err := s.GetByID(ctx, rec.ID)
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = s.Update(ctx, rec.ID, func(i *identity.Identity) error {
		i.Verified = true
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.Update(ctx, rec.ID, func(i *identity.Identity) error {
		i.Verified = true
		return identity.ErrNoChange
	})
	require.NoError(t, err)
	assert.False(t, got.Verified)
	assert.Equal(t, before.Version, got.Version)

	after, err := s.Update(ctx, rec.ID, func(i *identity.Identity) error {
		i.Verified = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, after.Verified)
	assert.Greater(t, after.Version, before.Version)
}

func testUpdateMissing(t *testing.T, s identity.Store) {
	_, err := s.Update(context.Background(), uuid.NewString(), func(*identity.Identity) error { return nil })
	assert.ErrorIs(t, err, identity.ErrNotFound)
}

func testConcurrentUpdates(t *testing.T, s identity.Store) {
	ctx := context.Background()
	rec := NewIdentity("race@example.com")
	require.NoError(t, s.Insert(ctx, rec))

	const workers = 24
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Update(ctx, rec.ID, func(i *identity.Identity) error {
				i.FailedAttempts++
				return nil
			})
			if err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := s.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, workers, got.FailedAttempts, "no increment may be lost")
}

func testConcurrentInsert(t *testing.T, s identity.Store) {
	ctx := context.Background()
	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		dup     int
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Insert(ctx, NewIdentity("same@example.com"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, identity.ErrDuplicateEmail):
				dup++
			default:
				t.Errorf("unexpected insert error: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, created)
	assert.Equal(t, workers-1, dup)
}
