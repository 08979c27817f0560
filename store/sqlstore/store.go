// Package sqlstore persists identities in PostgreSQL or SQLite through
// database/sql.
//
// Updates are optimistic: the row is read, mutated in memory and written back
// with UPDATE ... WHERE id = ? AND version = ?. A lost race retries.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/authcore/identity"
)

const columns = `id, email, first_name, last_name, display_name, password_hash, verified,
failed_attempts, locked_until, reset_token_hash, reset_token_expiry,
verification_token_hash, verification_token_expiry, provider, created_at, updated_at, version`

// Store is a database/sql identity.Store.
type Store struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// New wraps an already opened and migrated database.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect, now: time.Now}
}

// Open connects with the dialect's driver and applies migrations.
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("dsn is required")
	}
	if dialect == SQLite && !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
		dsn = "file:" + dsn + "?mode=rwc"
	}

	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}

	initErr := func() error {
		if dialect == SQLite {
			// PRAGMAs are per connection; keep one shared connection.
			db.SetMaxOpenConns(1)
			db.SetMaxIdleConns(1)
		}
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping: %w", err)
		}
		if dialect == SQLite {
			if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL;`); err != nil {
				return fmt.Errorf("set journal_mode=WAL: %w", err)
			}
			if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout=5000;`); err != nil {
				return fmt.Errorf("set busy_timeout: %w", err)
			}
		}
		return Migrate(ctx, db, dialect)
	}()
	if initErr != nil {
		_ = db.Close()
		return nil, initErr
	}

	return New(db, dialect), nil
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert adds rec; the unique email index decides races.
func (s *Store) Insert(ctx context.Context, rec *identity.Identity) error {
	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = rec.CreatedAt
	}

	_, err := s.db.ExecContext(ctx, s.dialect.rebind(`INSERT INTO identities (`+columns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		rec.ID, rec.Email, rec.FirstName, rec.LastName, rec.DisplayName, rec.PasswordHash, rec.Verified,
		rec.FailedAttempts, toUnix(rec.LockedUntil), rec.ResetTokenHash, toUnix(rec.ResetTokenExpiry),
		rec.VerificationTokenHash, toUnix(rec.VerificationTokenExpiry), string(rec.Provider),
		toUnix(rec.CreatedAt), toUnix(updatedAt), int64(1),
	)
	if err != nil {
		if s.dialect.isUniqueViolation(err) {
			return identity.ErrDuplicateEmail
		}
		return unavailable(err)
	}
	rec.Version = 1
	return nil
}

// GetByID selects by primary key.
func (s *Store) GetByID(ctx context.Context, id string) (*identity.Identity, error) {
	return s.selectOne(ctx, s.db, `id = ?`, id)
}

// GetByEmail selects by exact email.
func (s *Store) GetByEmail(ctx context.Context, email string) (*identity.Identity, error) {
	return s.selectOne(ctx, s.db, `email = ?`, email)
}

// GetByResetToken selects the row holding tokenHash.
func (s *Store) GetByResetToken(ctx context.Context, tokenHash string) (*identity.Identity, error) {
	if tokenHash == "" {
		return nil, identity.ErrNotFound
	}
	return s.selectOne(ctx, s.db, `reset_token_hash = ?`, tokenHash)
}

// GetByVerificationToken selects the row holding tokenHash.
func (s *Store) GetByVerificationToken(ctx context.Context, tokenHash string) (*identity.Identity, error) {
	if tokenHash == "" {
		return nil, identity.ErrNotFound
	}
	return s.selectOne(ctx, s.db, `verification_token_hash = ?`, tokenHash)
}

// Update applies mutate with a version-guarded write.
func (s *Store) Update(ctx context.Context, id string, mutate identity.MutateFunc) (*identity.Identity, error) {
	for attempt := 0; ; attempt++ {
		current, err := s.selectOne(ctx, s.db, `id = ?`, id)
		if err != nil {
			return nil, err
		}

		next := current.Clone()
		if err := mutate(next); err != nil {
			if errors.Is(err, identity.ErrNoChange) {
				return current, nil
			}
			return nil, err
		}
		next.ID = current.ID
		next.Email = current.Email
		next.CreatedAt = current.CreatedAt
		next.Provider = current.Provider
		next.Version = current.Version + 1
		next.UpdatedAt = s.now().UTC()

		res, err := s.db.ExecContext(ctx, s.dialect.rebind(`UPDATE identities SET
first_name = ?, last_name = ?, display_name = ?, password_hash = ?, verified = ?,
failed_attempts = ?, locked_until = ?, reset_token_hash = ?, reset_token_expiry = ?,
verification_token_hash = ?, verification_token_expiry = ?, updated_at = ?, version = ?
WHERE id = ? AND version = ?`),
			next.FirstName, next.LastName, next.DisplayName, next.PasswordHash, next.Verified,
			next.FailedAttempts, toUnix(next.LockedUntil), next.ResetTokenHash, toUnix(next.ResetTokenExpiry),
			next.VerificationTokenHash, toUnix(next.VerificationTokenExpiry), toUnix(next.UpdatedAt), next.Version,
			id, current.Version,
		)
		if err != nil {
			return nil, unavailable(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, unavailable(err)
		}
		if n == 1 {
			return next, nil
		}
		if err := identity.AwaitRetry(ctx, attempt, id); err != nil {
			return nil, err
		}
	}
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) selectOne(ctx context.Context, q queryer, where string, arg any) (*identity.Identity, error) {
	row := q.QueryRowContext(ctx, s.dialect.rebind(`SELECT `+columns+` FROM identities WHERE `+where), arg)

	var (
		rec                                      identity.Identity
		provider                                 string
		locked, resetExp, verifExp, created, upd int64
	)
	err := row.Scan(
		&rec.ID, &rec.Email, &rec.FirstName, &rec.LastName, &rec.DisplayName, &rec.PasswordHash, &rec.Verified,
		&rec.FailedAttempts, &locked, &rec.ResetTokenHash, &resetExp,
		&rec.VerificationTokenHash, &verifExp, &provider, &created, &upd, &rec.Version,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, identity.ErrNotFound
		}
		return nil, unavailable(err)
	}

	rec.Provider = identity.Provider(provider)
	rec.LockedUntil = fromUnix(locked)
	rec.ResetTokenExpiry = fromUnix(resetExp)
	rec.VerificationTokenExpiry = fromUnix(verifExp)
	rec.CreatedAt = fromUnix(created)
	rec.UpdatedAt = fromUnix(upd)
	return &rec, nil
}

// Times are stored as Unix nanoseconds; 0 means absent.
func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", identity.ErrUnavailable, err)
}
