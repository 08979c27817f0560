// Package redisstore persists identities in Redis.
//
// Each identity is a JSON document under <prefix>:id:<id>. Secondary keys map
// the email and the live token digests to the id. Inserts and updates run as
// WATCH/MULTI transactions and retry on contention until the caller's
// context is done.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authcore/identity"
)

const defaultPrefix = "ac"

// Store is a Redis-backed identity.Store.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// New returns a Store using client. An empty prefix selects "ac".
func New(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store{redis: client, prefix: prefix, now: time.Now}
}

func (s *Store) idKey(id string) string        { return s.prefix + ":id:" + id }
func (s *Store) emailKey(email string) string  { return s.prefix + ":email:" + email }
func (s *Store) resetKey(digest string) string { return s.prefix + ":rt:" + digest }
func (s *Store) verifKey(digest string) string { return s.prefix + ":vt:" + digest }

// mutateError carries a caller mutation error out of a WATCH callback untouched.
type mutateError struct{ err error }

func (e *mutateError) Error() string { return e.err.Error() }
func (e *mutateError) Unwrap() error { return e.err }

// Insert writes rec if neither its email nor its id is taken.
func (s *Store) Insert(ctx context.Context, rec *identity.Identity) error {
	stored := rec.Clone()
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = stored.CreatedAt
	}
	stored.Version = 1
	payload, err := json.Marshal(stored)
	if err != nil {
		return err
	}

	emailKey := s.emailKey(stored.Email)
	idKey := s.idKey(stored.ID)

	for attempt := 0; ; attempt++ {
		err = s.redis.Watch(ctx, func(tx *redis.Tx) error {
			n, err := tx.Exists(ctx, emailKey, idKey).Result()
			if err != nil {
				return err
			}
			if n > 0 {
				return identity.ErrDuplicateEmail
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, idKey, payload, 0)
				pipe.Set(ctx, emailKey, stored.ID, 0)
				if stored.ResetTokenHash != "" {
					pipe.Set(ctx, s.resetKey(stored.ResetTokenHash), stored.ID, 0)
				}
				if stored.VerificationTokenHash != "" {
					pipe.Set(ctx, s.verifKey(stored.VerificationTokenHash), stored.ID, 0)
				}
				return nil
			})
			return err
		}, emailKey, idKey)

		if errors.Is(err, redis.TxFailedErr) {
			if err := identity.AwaitRetry(ctx, attempt, stored.Email); err != nil {
				return err
			}
			continue
		}
		if err != nil {
			if errors.Is(err, identity.ErrDuplicateEmail) {
				return err
			}
			return fmt.Errorf("%w: %v", identity.ErrUnavailable, err)
		}
		rec.Version = stored.Version
		return nil
	}
}

// GetByID loads the identity document for id.
func (s *Store) GetByID(ctx context.Context, id string) (*identity.Identity, error) {
	data, err := s.redis.Get(ctx, s.idKey(id)).Bytes()
	if err != nil {
		return nil, mapErr(err)
	}
	return decode(data)
}

// GetByEmail resolves the email index, matching exactly.
func (s *Store) GetByEmail(ctx context.Context, email string) (*identity.Identity, error) {
	rec, err := s.resolve(ctx, s.emailKey(email))
	if err != nil {
		return nil, err
	}
	if rec.Email != email {
		return nil, identity.ErrNotFound
	}
	return rec, nil
}

// GetByResetToken resolves a reset token digest.
func (s *Store) GetByResetToken(ctx context.Context, tokenHash string) (*identity.Identity, error) {
	if tokenHash == "" {
		return nil, identity.ErrNotFound
	}
	rec, err := s.resolve(ctx, s.resetKey(tokenHash))
	if err != nil {
		return nil, err
	}
	if rec.ResetTokenHash != tokenHash {
		return nil, identity.ErrNotFound
	}
	return rec, nil
}

// GetByVerificationToken resolves a verification token digest.
func (s *Store) GetByVerificationToken(ctx context.Context, tokenHash string) (*identity.Identity, error) {
	if tokenHash == "" {
		return nil, identity.ErrNotFound
	}
	rec, err := s.resolve(ctx, s.verifKey(tokenHash))
	if err != nil {
		return nil, err
	}
	if rec.VerificationTokenHash != tokenHash {
		return nil, identity.ErrNotFound
	}
	return rec, nil
}

// Update runs mutate inside a WATCH on the identity key and rewrites the
// document and any changed token indexes in one MULTI.
func (s *Store) Update(ctx context.Context, id string, mutate identity.MutateFunc) (*identity.Identity, error) {
	key := s.idKey(id)

	for attempt := 0; ; attempt++ {
		var result *identity.Identity

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}
			current, err := decode(data)
			if err != nil {
				return err
			}

			next := current.Clone()
			if err := mutate(next); err != nil {
				if errors.Is(err, identity.ErrNoChange) {
					result = current
					return nil
				}
				return &mutateError{err: err}
			}
			next.ID = current.ID
			next.Email = current.Email
			next.CreatedAt = current.CreatedAt
			next.Provider = current.Provider
			next.Version = current.Version + 1
			next.UpdatedAt = s.now().UTC()

			payload, err := json.Marshal(next)
			if err != nil {
				return &mutateError{err: err}
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, payload, 0)
				if current.ResetTokenHash != next.ResetTokenHash {
					if current.ResetTokenHash != "" {
						pipe.Del(ctx, s.resetKey(current.ResetTokenHash))
					}
					if next.ResetTokenHash != "" {
						pipe.Set(ctx, s.resetKey(next.ResetTokenHash), id, 0)
					}
				}
				if current.VerificationTokenHash != next.VerificationTokenHash {
					if current.VerificationTokenHash != "" {
						pipe.Del(ctx, s.verifKey(current.VerificationTokenHash))
					}
					if next.VerificationTokenHash != "" {
						pipe.Set(ctx, s.verifKey(next.VerificationTokenHash), id, 0)
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
			result = next
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			if err := identity.AwaitRetry(ctx, attempt, id); err != nil {
				return nil, err
			}
			continue
		}
		if err != nil {
			var me *mutateError
			if errors.As(err, &me) {
				return nil, me.err
			}
			return nil, mapErr(err)
		}
		return result, nil
	}
}

func (s *Store) resolve(ctx context.Context, indexKey string) (*identity.Identity, error) {
	id, err := s.redis.Get(ctx, indexKey).Result()
	if err != nil {
		return nil, mapErr(err)
	}
	return s.GetByID(ctx, id)
}

func decode(data []byte) (*identity.Identity, error) {
	var rec identity.Identity
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: corrupt identity record: %v", identity.ErrUnavailable, err)
	}
	return &rec, nil
}

func mapErr(err error) error {
	if errors.Is(err, redis.Nil) {
		return identity.ErrNotFound
	}
	if errors.Is(err, identity.ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", identity.ErrUnavailable, err)
}
