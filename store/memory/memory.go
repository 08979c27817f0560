// Package memory is an in-process identity.Store guarded by a single mutex.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MrEthical07/authcore/identity"
)

// Store keeps identities in maps keyed by id, email and token hash.
type Store struct {
	mu      sync.Mutex
	byID    map[string]*identity.Identity
	byEmail map[string]string
	byReset map[string]string
	byVerif map[string]string
	now     func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		byID:    make(map[string]*identity.Identity),
		byEmail: make(map[string]string),
		byReset: make(map[string]string),
		byVerif: make(map[string]string),
		now:     time.Now,
	}
}

// Insert adds rec, failing with identity.ErrDuplicateEmail if the email or id is taken.
func (s *Store) Insert(ctx context.Context, rec *identity.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[rec.Email]; ok {
		return identity.ErrDuplicateEmail
	}
	if _, ok := s.byID[rec.ID]; ok {
		return identity.ErrDuplicateEmail
	}

	stored := rec.Clone()
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = stored.CreatedAt
	}
	stored.Version = 1
	s.byID[stored.ID] = stored
	s.index(stored)
	rec.Version = stored.Version
	return nil
}

// GetByID returns a copy of the identity with the given id.
func (s *Store) GetByID(ctx context.Context, id string) (*identity.Identity, error) {
	return s.lookup(ctx, func() string { return id })
}

// GetByEmail matches email exactly.
func (s *Store) GetByEmail(ctx context.Context, email string) (*identity.Identity, error) {
	return s.lookup(ctx, func() string { return s.byEmail[email] })
}

// GetByResetToken finds the identity holding the reset token digest.
func (s *Store) GetByResetToken(ctx context.Context, tokenHash string) (*identity.Identity, error) {
	if tokenHash == "" {
		return nil, identity.ErrNotFound
	}
	return s.lookup(ctx, func() string { return s.byReset[tokenHash] })
}

// GetByVerificationToken finds the identity holding the verification token digest.
func (s *Store) GetByVerificationToken(ctx context.Context, tokenHash string) (*identity.Identity, error) {
	if tokenHash == "" {
		return nil, identity.ErrNotFound
	}
	return s.lookup(ctx, func() string { return s.byVerif[tokenHash] })
}

// Update applies mutate to the stored identity while holding the store lock.
func (s *Store) Update(ctx context.Context, id string, mutate identity.MutateFunc) (*identity.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[id]
	if !ok {
		return nil, identity.ErrNotFound
	}

	next := current.Clone()
	if err := mutate(next); err != nil {
		if errors.Is(err, identity.ErrNoChange) {
			return current.Clone(), nil
		}
		return nil, err
	}

	// Immutable fields.
	next.ID = current.ID
	next.Email = current.Email
	next.CreatedAt = current.CreatedAt
	next.Provider = current.Provider

	next.Version = current.Version + 1
	next.UpdatedAt = s.now().UTC()

	s.unindex(current)
	s.byID[id] = next
	s.index(next)
	return next.Clone(), nil
}

// Len returns the number of stored identities.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

func (s *Store) lookup(ctx context.Context, resolve func() string) (*identity.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[resolve()]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *Store) index(rec *identity.Identity) {
	s.byEmail[rec.Email] = rec.ID
	if rec.ResetTokenHash != "" {
		s.byReset[rec.ResetTokenHash] = rec.ID
	}
	if rec.VerificationTokenHash != "" {
		s.byVerif[rec.VerificationTokenHash] = rec.ID
	}
}

func (s *Store) unindex(rec *identity.Identity) {
	delete(s.byEmail, rec.Email)
	if rec.ResetTokenHash != "" {
		delete(s.byReset, rec.ResetTokenHash)
	}
	if rec.VerificationTokenHash != "" {
		delete(s.byVerif, rec.VerificationTokenHash)
	}
}
