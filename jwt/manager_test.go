package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func newHSManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(Config{TTL: time.Hour, SigningMethod: MethodHS256, PrivateKey: testSecret})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestIssueAndParseRoundTrip(t *testing.T) {
	m := newHSManager(t)

	token, issued, err := m.Issue(Subject{IdentityID: "id-1", Email: "user@example.com", Provider: "password"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if issued.ID == "" {
		t.Fatal("expected jti to be set")
	}

	claims, err := m.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "id-1" || claims.Email != "user@example.com" || claims.Provider != "password" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if got := claims.ExpiresAt.Time.Sub(claims.IssuedAt.Time); got != time.Hour {
		t.Fatalf("expected 1h lifetime, got %v", got)
	}
}

func TestParseExpiredIsDistinctFromTampered(t *testing.T) {
	m := newHSManager(t)
	base := time.Now()
	m.now = func() time.Time { return base }

	token, _, err := m.Issue(Subject{IdentityID: "id-1", Email: "user@example.com"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	m.now = func() time.Time { return base.Add(2 * time.Hour) }
	_, err = m.Parse(token)
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if errors.Is(err, ErrTampered) {
		t.Fatal("expired credential must not be reported as tampered")
	}

	// Flip a character in the signature of a live token.
	m.now = func() time.Time { return base }
	tampered := token[:len(token)-2] + flip(token[len(token)-2]) + token[len(token)-1:]
	_, err = m.Parse(tampered)
	if !errors.Is(err, ErrTampered) {
		t.Fatalf("expected ErrTampered, got %v", err)
	}
}

func TestParseExpiredForgeryIsTampered(t *testing.T) {
	m := newHSManager(t)

	claims := SessionClaims{RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "id-1",
		ID:        "jti",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}}
	forged, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString([]byte("another-secret-another-secret-xx"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := m.Parse(forged); !errors.Is(err, ErrTampered) {
		t.Fatalf("expected forged expired token to be tampered, got %v", err)
	}
}

func TestParseRejectsWrongAlgorithm(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{TTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := SessionClaims{RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "id-1",
		ID:        "jti",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := m.Parse(token); !errors.Is(err, ErrTampered) {
		t.Fatalf("expected wrong algorithm to be rejected, got %v", err)
	}
}

func TestParseIssuerAndAudience(t *testing.T) {
	_, priv := newEdKeys(t)
	m, err := NewManager(Config{
		TTL:           time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		Issuer:        "authcore",
		Audience:      "portal",
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	token, _, err := m.Issue(Subject{IdentityID: "id-1"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Parse(token); err != nil {
		t.Fatalf("expected valid token to parse: %v", err)
	}

	wrongIssuer := SessionClaims{RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "id-1",
		ID:        "jti",
		Issuer:    "other",
		Audience:  gjwt.ClaimStrings{"portal"},
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	bad, _ := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, wrongIssuer).SignedString(priv)
	if _, err := m.Parse(bad); !errors.Is(err, ErrTampered) {
		t.Fatalf("expected wrong issuer to fail, got %v", err)
	}
}

func TestParseRejectsMissingExpiry(t *testing.T) {
	m := newHSManager(t)

	claims := SessionClaims{RegisteredClaims: gjwt.RegisteredClaims{Subject: "id-1", ID: "jti"}}
	token, _ := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(testSecret)
	if _, err := m.Parse(token); !errors.Is(err, ErrTampered) {
		t.Fatalf("expected credential without exp to be rejected, got %v", err)
	}
}

func TestNewManagerValidation(t *testing.T) {
	if _, err := NewManager(Config{TTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("short")}); err == nil {
		t.Fatal("expected short hs256 secret to be rejected")
	}
	if _, err := NewManager(Config{TTL: 0, SigningMethod: MethodHS256, PrivateKey: testSecret}); err == nil {
		t.Fatal("expected zero TTL to be rejected")
	}
	if _, err := NewManager(Config{TTL: time.Minute, SigningMethod: "rs256", PrivateKey: testSecret}); err == nil {
		t.Fatal("expected unsupported method to be rejected")
	}

	pub, _ := newEdKeys(t)
	verifyOnly, err := NewManager(Config{TTL: time.Minute, SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("verify-only manager: %v", err)
	}
	if _, _, err := verifyOnly.Issue(Subject{IdentityID: "id-1"}); err == nil || !strings.Contains(err.Error(), "signing key") {
		t.Fatalf("expected verify-only manager to refuse issuing, got %v", err)
	}
}

func flip(b byte) string {
	if b == 'A' {
		return "B"
	}
	return "A"
}
