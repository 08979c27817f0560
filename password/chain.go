package password

// Hasher is the contract the engine hashes and verifies through.
//
// Verify must return false, never panic, when encoded is malformed.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, encoded string) bool
	NeedsUpgrade(encoded string) bool
}

// Scheme is a Hasher that can tell whether it produced a given encoding.
type Scheme interface {
	Hasher
	Recognizes(encoded string) bool
}

// Chain hashes with a primary scheme and verifies against any registered
// scheme. Hashes from a non-primary scheme always report NeedsUpgrade, so a
// successful login migrates them to the primary.
type Chain struct {
	primary Scheme
	legacy  []Scheme
}

// NewChain returns a Chain that hashes with primary and also accepts legacy encodings.
func NewChain(primary Scheme, legacy ...Scheme) *Chain {
	return &Chain{primary: primary, legacy: legacy}
}

// Hash hashes with the primary scheme.
func (c *Chain) Hash(plaintext string) (string, error) {
	return c.primary.Hash(plaintext)
}

// Verify dispatches on the encoding prefix.
func (c *Chain) Verify(plaintext, encoded string) bool {
	if s := c.schemeFor(encoded); s != nil {
		return s.Verify(plaintext, encoded)
	}
	return false
}

// NeedsUpgrade is true for any encoding that is not a current primary hash.
func (c *Chain) NeedsUpgrade(encoded string) bool {
	if c.primary.Recognizes(encoded) {
		return c.primary.NeedsUpgrade(encoded)
	}
	return true
}

func (c *Chain) schemeFor(encoded string) Scheme {
	if c.primary.Recognizes(encoded) {
		return c.primary
	}
	for _, s := range c.legacy {
		if s.Recognizes(encoded) {
			return s
		}
	}
	return nil
}
