package google

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/MrEthical07/authcore/identity"
)

const (
	testIssuer   = "https://issuer.test"
	testClientID = "client-1"
)

type fakeIssuer struct {
	key      *rsa.PrivateKey
	claims   jwt.MapClaims
	verifier string
	srv      *httptest.Server
}

func newFakeIssuer(t *testing.T) *fakeIssuer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	f := &fakeIssuer{key: key}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		f.verifier = r.PostForm.Get("code_verifier")

		idToken, err := jwt.NewWithClaims(jwt.SigningMethodRS256, f.claims).SignedString(f.key)
		require.NoError(t, err)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access",
			"token_type":   "Bearer",
			"expires_in":   3600,
			"id_token":     idToken,
		})
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeIssuer) provider() *Provider {
	verifier := oidc.NewVerifier(testIssuer, &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&f.key.PublicKey}}, &oidc.Config{ClientID: testClientID})
	return NewWithVerifier(Config{
		ClientID:     testClientID,
		ClientSecret: "secret",
		RedirectURL:  "https://app.test/api/auth/oauth/google/callback",
	}, oauth2.Endpoint{
		AuthURL:  f.srv.URL + "/auth",
		TokenURL: f.srv.URL + "/token",
	}, verifier)
}

func baseClaims() jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss":            testIssuer,
		"aud":            testClientID,
		"sub":            "google-sub-1",
		"email":          "a@x.com",
		"email_verified": true,
		"given_name":     "Ada",
		"family_name":    "Lovelace",
		"iat":            now.Unix(),
		"exp":            now.Add(time.Hour).Unix(),
	}
}

func TestExchange(t *testing.T) {
	f := newFakeIssuer(t)
	f.claims = baseClaims()
	p := f.provider()

	profile, err := p.Exchange(context.Background(), "code", "the-verifier")
	require.NoError(t, err)
	assert.Equal(t, "the-verifier", f.verifier)
	assert.Equal(t, "a@x.com", profile.Email)
	assert.True(t, profile.EmailVerified)
	assert.Equal(t, "Ada Lovelace", profile.DisplayName)
	assert.Equal(t, identity.ProviderGoogle, profile.Provider)
}

func TestExchangeReportsUnverifiedEmail(t *testing.T) {
	f := newFakeIssuer(t)
	f.claims = baseClaims()
	f.claims["email_verified"] = false

	profile, err := f.provider().Exchange(context.Background(), "code", "v")
	require.NoError(t, err)
	assert.False(t, profile.EmailVerified)
}

func TestExchangeRejectsBadIDToken(t *testing.T) {
	tests := map[string]func(jwt.MapClaims){
		"wrong audience": func(c jwt.MapClaims) { c["aud"] = "someone-else" },
		"wrong issuer":   func(c jwt.MapClaims) { c["iss"] = "https://evil.test" },
		"expired":        func(c jwt.MapClaims) { c["exp"] = time.Now().Add(-time.Hour).Unix() },
		"no email":       func(c jwt.MapClaims) { delete(c, "email") },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFakeIssuer(t)
			f.claims = baseClaims()
			mutate(f.claims)
			_, err := f.provider().Exchange(context.Background(), "code", "v")
			assert.Error(t, err)
		})
	}
}

func TestBeginAndCallback(t *testing.T) {
	f := newFakeIssuer(t)
	p := f.provider()

	rr := httptest.NewRecorder()
	redirect, err := p.Begin(rr, true)
	require.NoError(t, err)

	u, err := url.Parse(redirect)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, testClientID, q.Get("client_id"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.NotEmpty(t, q.Get("code_challenge"))
	state := q.Get("state")
	require.NotEmpty(t, state)

	cookies := rr.Result().Cookies()
	req := httptest.NewRequest(http.MethodGet, "/callback?code=c&state="+url.QueryEscape(state), nil)
	var pkce string
	for _, c := range cookies {
		assert.True(t, c.HttpOnly)
		assert.True(t, c.Secure)
		req.AddCookie(c)
		if c.Name == PKCECookie {
			pkce = c.Value
		}
	}
	assert.Equal(t, oauth2.S256ChallengeFromVerifier(pkce), q.Get("code_challenge"))

	verifier, ok := Callback(httptest.NewRecorder(), req, true)
	require.True(t, ok)
	assert.Equal(t, pkce, verifier)

	forged := httptest.NewRequest(http.MethodGet, "/callback?code=c&state=forged", nil)
	for _, c := range cookies {
		forged.AddCookie(c)
	}
	_, ok = Callback(httptest.NewRecorder(), forged, true)
	assert.False(t, ok)
}
