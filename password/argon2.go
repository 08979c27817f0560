package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	argon2Prefix          = "$argon2id$"
	algorithmID           = "argon2id"
)

// Config holds the argon2id work parameters. Memory is in KiB.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultConfig returns the production argon2id parameters.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Argon2 hashes passwords with argon2id and encodes them as PHC strings.
//
// Argon2 is safe for concurrent use; it holds only immutable parameters.
type Argon2 struct {
	config Config
}

type parsedPHC struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	hash        []byte
	keyLength   uint32
}

// NewArgon2 validates cfg and returns a hasher bound to it.
func NewArgon2(cfg Config) (*Argon2, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Argon2{config: cfg}, nil
}

// Hash derives a fresh salted argon2id hash of plaintext.
//
// The plaintext bytes are used exactly as given; strength rules belong to the caller.
func (a *Argon2) Hash(plaintext string) (string, error) {
	salt := make([]byte, a.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}

	sum := argon2.IDKey(
		[]byte(plaintext),
		salt,
		a.config.Time,
		a.config.Memory,
		a.config.Parallelism,
		a.config.KeyLength,
	)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		a.config.Memory,
		a.config.Time,
		a.config.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum),
	), nil
}

// Verify reports whether plaintext matches encoded. A malformed encoding is a mismatch.
func (a *Argon2) Verify(plaintext, encoded string) bool {
	parsed, err := parsePHC(encoded)
	if err != nil {
		return false
	}

	computed := argon2.IDKey(
		[]byte(plaintext),
		parsed.salt,
		parsed.time,
		parsed.memory,
		parsed.parallelism,
		parsed.keyLength,
	)

	return subtle.ConstantTimeCompare(computed, parsed.hash) == 1
}

// Recognizes reports whether encoded looks like an argon2id PHC string.
func (a *Argon2) Recognizes(encoded string) bool {
	return strings.HasPrefix(encoded, argon2Prefix)
}

// NeedsUpgrade reports whether encoded was produced with weaker parameters
// than the hasher's current configuration. Unparseable input needs an upgrade.
func (a *Argon2) NeedsUpgrade(encoded string) bool {
	parsed, err := parsePHC(encoded)
	if err != nil {
		return true
	}

	return a.config.Memory > parsed.memory ||
		a.config.Time > parsed.time ||
		a.config.Parallelism > parsed.parallelism ||
		a.config.KeyLength != parsed.keyLength
}

// Validate checks the parameters against the accepted floor.
func (c Config) Validate() error {
	if c.Memory < minMemoryKB {
		return errors.New("password memory must be >= 8192 KB")
	}
	if c.Time < minTimeCost {
		return errors.New("password time must be >= 1")
	}
	if c.Parallelism < minParallelism {
		return errors.New("password parallelism must be >= 1")
	}
	if c.SaltLength < minSaltLength {
		return errors.New("password salt length must be >= 16")
	}
	if c.KeyLength < minKeyLength {
		return errors.New("password key length must be >= 16")
	}

	return nil
}

func parsePHC(encoded string) (*parsedPHC, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, errors.New("invalid PHC format")
	}
	if parts[1] != algorithmID {
		return nil, errors.New("unsupported algorithm")
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || !strings.HasPrefix(parts[2], "v=") {
		return nil, errors.New("invalid argon2 version")
	}
	if version != argon2.Version {
		return nil, errors.New("unsupported argon2 version")
	}

	params, err := parseParams(parts[3])
	if err != nil {
		return nil, err
	}

	salt, err := decodeSegment(parts[4])
	if err != nil || len(salt) < int(minSaltLength) {
		return nil, errors.New("invalid salt")
	}

	sum, err := decodeSegment(parts[5])
	if err != nil || len(sum) < int(minKeyLength) {
		return nil, errors.New("invalid hash")
	}

	return &parsedPHC{
		memory:      params.memory,
		time:        params.time,
		parallelism: params.parallelism,
		salt:        salt,
		hash:        sum,
		keyLength:   uint32(len(sum)),
	}, nil
}

// decodeSegment accepts both unpadded (PHC canonical) and padded base64.
func decodeSegment(s string) ([]byte, error) {
	if strings.HasSuffix(s, "=") {
		return base64.StdEncoding.DecodeString(s)
	}
	return base64.RawStdEncoding.DecodeString(s)
}

type parsedParams struct {
	memory      uint32
	time        uint32
	parallelism uint8
}

func parseParams(part string) (*parsedParams, error) {
	pairs := strings.Split(part, ",")
	if len(pairs) != 3 {
		return nil, errors.New("invalid parameter format")
	}

	var (
		seen   = map[string]bool{}
		params parsedParams
	)

	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || seen[key] {
			return nil, errors.New("invalid parameter entry")
		}
		seen[key] = true

		switch key {
		case "m":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil || v < uint64(minMemoryKB) {
				return nil, errors.New("invalid memory parameter")
			}
			params.memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil || v < uint64(minTimeCost) {
				return nil, errors.New("invalid time parameter")
			}
			params.time = uint32(v)
		case "p":
			v, err := strconv.ParseUint(value, 10, 8)
			if err != nil || v < uint64(minParallelism) {
				return nil, errors.New("invalid parallelism parameter")
			}
			params.parallelism = uint8(v)
		default:
			return nil, errors.New("unsupported parameter")
		}
	}

	if !seen["m"] || !seen["t"] || !seen["p"] {
		return nil, errors.New("missing parameters")
	}

	return &params, nil
}
