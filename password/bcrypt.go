package password

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Bcrypt verifies (and, if asked, produces) bcrypt hashes. Identities
// imported from earlier deployments carry these.
type Bcrypt struct {
	cost int
}

// NewBcrypt returns a bcrypt hasher. A cost of 0 selects bcrypt.DefaultCost.
func NewBcrypt(cost int) (*Bcrypt, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, errors.New("bcrypt cost out of range")
	}
	return &Bcrypt{cost: cost}, nil
}

// Hash returns a bcrypt hash of plaintext.
func (b *Bcrypt) Hash(plaintext string) (string, error) {
	out, err := bcrypt.GenerateFromPassword([]byte(plaintext), b.cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Verify reports whether plaintext matches encoded.
func (b *Bcrypt) Verify(plaintext, encoded string) bool {
	return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(plaintext)) == nil
}

// Recognizes matches the $2a$, $2b$ and $2y$ prefixes.
func (b *Bcrypt) Recognizes(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") ||
		strings.HasPrefix(encoded, "$2b$") ||
		strings.HasPrefix(encoded, "$2y$")
}

// NeedsUpgrade reports whether encoded uses a lower cost than configured.
func (b *Bcrypt) NeedsUpgrade(encoded string) bool {
	cost, err := bcrypt.Cost([]byte(encoded))
	if err != nil {
		return true
	}
	return cost < b.cost
}
