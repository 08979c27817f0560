package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the signature algorithm for session credentials.
type SigningMethod string

const (
	// MethodEd25519 signs with an Ed25519 private key (EdDSA).
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 signs with a shared HMAC secret.
	MethodHS256 SigningMethod = "hs256"
)

const minHMACSecret = 32

var (
	// ErrExpired is returned by Parse for an authentic credential past its expiry.
	ErrExpired = errors.New("session credential expired")
	// ErrTampered is returned by Parse for any credential that fails signature,
	// algorithm, issuer, audience or format checks.
	ErrTampered = errors.New("session credential invalid")
)

// Config configures a Manager.
type Config struct {
	TTL           time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
	// Now overrides the clock used for iat, exp and validation.
	Now func() time.Time
}

// Manager issues and verifies signed session credentials.
//
// Manager instances are configured once and are safe for concurrent use.
type Manager struct {
	config    Config
	signKey   interface{}
	verifyKey interface{}
	now       func() time.Time
}

// Subject is the identity a session credential is minted for.
type Subject struct {
	IdentityID string
	Email      string
	Provider   string
}

// SessionClaims is the claim set carried by a session credential.
type SessionClaims struct {
	Email    string `json:"email"`
	Provider string `json:"prv,omitempty"`
	jwt.RegisteredClaims
}

// NewManager validates cfg and resolves its keys.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.TTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	m := &Manager{config: cfg, now: cfg.Now}
	if m.now == nil {
		m.now = time.Now
	}
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) < minHMACSecret {
			return nil, fmt.Errorf("hs256 requires a secret of at least %d bytes", minHMACSecret)
		}
		m.signKey = cfg.PrivateKey
		m.verifyKey = cfg.PrivateKey
	case MethodEd25519:
		if len(cfg.PrivateKey) > 0 {
			priv, err := parseEdPrivateKey(cfg.PrivateKey)
			if err != nil {
				return nil, err
			}
			m.signKey = priv
			m.verifyKey = priv.Public()
		}
		if len(cfg.PublicKey) > 0 {
			pub, err := parseEdPublicKey(cfg.PublicKey)
			if err != nil {
				return nil, err
			}
			m.verifyKey = pub
		}
		if m.verifyKey == nil {
			return nil, errors.New("ed25519 requires a private or public key")
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	return m, nil
}

// TTL returns the configured credential lifetime.
func (m *Manager) TTL() time.Duration {
	return m.config.TTL
}

// Issue mints a credential for subject that expires after the configured TTL.
func (m *Manager) Issue(subject Subject) (string, *SessionClaims, error) {
	if m.signKey == nil {
		return "", nil, errors.New("manager has no signing key")
	}
	if subject.IdentityID == "" {
		return "", nil, errors.New("subject identity id is required")
	}

	now := m.now()
	claims := &SessionClaims{
		Email:    subject.Email,
		Provider: subject.Provider,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.IdentityID,
			ID:        uuid.NewString(),
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.TTL)),
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	token := jwt.NewWithClaims(m.method(), claims)
	if m.config.KeyID != "" {
		token.Header["kid"] = m.config.KeyID
	}

	signed, err := token.SignedString(m.signKey)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// Parse verifies tokenStr and returns its claims. It returns ErrExpired only
// when the signature is valid and the credential has expired; every other
// failure is ErrTampered.
func (m *Manager) Parse(tokenStr string) (*SessionClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method().Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &SessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if m.config.KeyID != "" {
			kid, _ := t.Header["kid"].(string)
			if kid != m.config.KeyID {
				return nil, errors.New("unknown kid")
			}
		}
		return m.verifyKey, nil
	})
	if err != nil {
		// The library only reports expiry after the signature has verified.
		if errors.Is(err, jwt.ErrTokenExpired) && !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, fmt.Errorf("%w: %v", ErrExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTampered, err)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.Subject == "" || claims.ID == "" {
		return nil, ErrTampered
	}
	return claims, nil
}

func (m *Manager) method() jwt.SigningMethod {
	if m.config.SigningMethod == MethodHS256 {
		return jwt.SigningMethodHS256
	}
	return jwt.SigningMethodEdDSA
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
