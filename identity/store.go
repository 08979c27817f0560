package identity

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no identity matches a lookup.
	ErrNotFound = errors.New("identity not found")
	// ErrDuplicateEmail is returned by Insert when the email is already taken.
	ErrDuplicateEmail = errors.New("identity email already exists")
	// ErrUnavailable wraps backend failures. It is the only transient store error.
	ErrUnavailable = errors.New("identity store unavailable")
	// ErrNoChange may be returned by an Update mutation to skip the write.
	// Update then returns the current record and a nil error.
	ErrNoChange = errors.New("identity unchanged")
)

// MutateFunc edits an identity in place inside an atomic update. Returning a
// non-nil error aborts the update without writing.
type MutateFunc func(*Identity) error

// Store persists identities.
//
// Implementations must enforce email uniqueness atomically in Insert, and Update
// must be an atomic read-modify-write of one record: concurrent Updates of the
// same id never lose a write. Update increments Version and sets UpdatedAt on
// every write; ID, Email, Provider and CreatedAt are immutable and any change
// a mutation makes to them is discarded. Returned identities are copies the caller may modify freely.
type Store interface {
	Insert(ctx context.Context, identity *Identity) error
	GetByID(ctx context.Context, id string) (*Identity, error)
	GetByEmail(ctx context.Context, email string) (*Identity, error)
	GetByResetToken(ctx context.Context, tokenHash string) (*Identity, error)
	GetByVerificationToken(ctx context.Context, tokenHash string) (*Identity, error)
	Update(ctx context.Context, id string, mutate MutateFunc) (*Identity, error)
}
