package identity

import "time"

// Provider names the sign-in method an identity was created through.
type Provider string

const (
	// ProviderPassword identities were created by registration with a password.
	ProviderPassword Provider = "password"
	// ProviderGoogle identities were created by Google sign-in.
	ProviderGoogle Provider = "google"
)

// Valid reports whether p is a known provider.
func (p Provider) Valid() bool {
	switch p {
	case ProviderPassword, ProviderGoogle:
		return true
	default:
		return false
	}
}

// Identity is the single persisted record for one email address.
//
// Zero time values mean "absent". Token fields hold the SHA-256 hex digest of
// the token, never the token itself.
type Identity struct {
	ID                      string    `json:"id"`
	Email                   string    `json:"email"`
	FirstName               string    `json:"first_name,omitempty"`
	LastName                string    `json:"last_name,omitempty"`
	DisplayName             string    `json:"display_name,omitempty"`
	PasswordHash            string    `json:"password_hash,omitempty"`
	Verified                bool      `json:"verified"`
	FailedAttempts          int       `json:"failed_attempts"`
	LockedUntil             time.Time `json:"locked_until,omitempty"`
	ResetTokenHash          string    `json:"reset_token_hash,omitempty"`
	ResetTokenExpiry        time.Time `json:"reset_token_expiry,omitempty"`
	VerificationTokenHash   string    `json:"verification_token_hash,omitempty"`
	VerificationTokenExpiry time.Time `json:"verification_token_expiry,omitempty"`
	Provider                Provider  `json:"provider"`
	CreatedAt               time.Time `json:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"`
	Version                 int64     `json:"version"`
}

// Locked reports whether the identity is locked at now.
func (i *Identity) Locked(now time.Time) bool {
	return !i.LockedUntil.IsZero() && i.LockedUntil.After(now)
}

// HasPassword reports whether a password hash is set.
func (i *Identity) HasPassword() bool {
	return i.PasswordHash != ""
}

// ClearResetToken drops the live reset token, if any.
func (i *Identity) ClearResetToken() {
	i.ResetTokenHash = ""
	i.ResetTokenExpiry = time.Time{}
}

// ClearVerificationToken drops the live verification token, if any.
func (i *Identity) ClearVerificationToken() {
	i.VerificationTokenHash = ""
	i.VerificationTokenExpiry = time.Time{}
}

// ResetLockout zeroes the failure counter and lifts any lock.
func (i *Identity) ResetLockout() {
	i.FailedAttempts = 0
	i.LockedUntil = time.Time{}
}

// Clone returns a copy that shares no state with i.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	c := *i
	return &c
}
