package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/identity"
	"github.com/MrEthical07/authcore/mail"
	"github.com/MrEthical07/authcore/middleware"
	"github.com/MrEthical07/authcore/store/memory"
)

const adminKey = "admin-key-for-tests"

type captureMailer struct {
	ch chan mail.Message
}

func (c *captureMailer) Send(_ context.Context, msg mail.Message) error {
	c.ch <- msg
	return nil
}

var (
	verifyRE = regexp.MustCompile(`/verify/([A-Za-z0-9_-]+)`)
	resetRE  = regexp.MustCompile(`token=([A-Za-z0-9_-]+)`)
)

func (c *captureMailer) token(t *testing.T, kind string, re *regexp.Regexp) string {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case msg := <-c.ch:
			if msg.Kind != kind {
				continue
			}
			m := re.FindStringSubmatch(msg.Text)
			require.Len(t, m, 2)
			return m[1]
		case <-timeout:
			t.Fatalf("no %s mail delivered", kind)
			return ""
		}
	}
}

type apiFixture struct {
	handler http.Handler
	engine  *authcore.Engine
	mail    *captureMailer
}

type apiSetup struct {
	cfg   authcore.Config
	store identity.Store
	clock func() time.Time
}

func newAPI(t *testing.T, opts ...func(*apiSetup)) *apiFixture {
	t.Helper()
	cfg := authcore.DefaultConfig()
	cfg.Session.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.BcryptCost = 4
	cfg.Security.EnableRequestLimits = false
	cfg.Mail.BaseURL = "https://app.test"

	setup := &apiSetup{cfg: cfg, store: memory.New()}
	for _, opt := range opts {
		opt(setup)
	}

	mailer := &captureMailer{ch: make(chan mail.Message, 32)}
	b := authcore.New().
		WithConfig(setup.cfg).
		WithStore(setup.store).
		WithMailer(mailer)
	if setup.clock != nil {
		b.WithClock(setup.clock)
	}
	engine, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	return &apiFixture{
		handler: New(Options{Engine: engine, AdminKey: adminKey}),
		engine:  engine,
		mail:    mailer,
	}
}

// flakyStore fails identity reads once down is set.
type flakyStore struct {
	*memory.Store
	down atomic.Bool
}

func (s *flakyStore) GetByID(ctx context.Context, id string) (*identity.Identity, error) {
	if s.down.Load() {
		return nil, identity.ErrUnavailable
	}
	return s.Store.GetByID(ctx, id)
}

func (f *apiFixture) do(t *testing.T, method, path string, body any, mutate ...func(*http.Request)) (*httptest.ResponseRecorder, response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, fn := range mutate {
		fn(req)
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)

	var out response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return rr, out
}

func (f *apiFixture) signUp(t *testing.T, email string) {
	t.Helper()
	rr, body := f.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"email": email, "password": "Abcd123!", "firstName": "Ada", "lastName": "Lovelace",
	})
	require.Equal(t, http.StatusCreated, rr.Code, body.Message)
	token := f.mail.token(t, mail.KindVerification, verifyRE)
	rr, _ = f.do(t, http.MethodGet, "/api/auth/verify/"+token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
}

func sessionCookie(rr *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == middleware.SessionCookie {
			return c
		}
	}
	return nil
}

func TestRegisterVerifyLoginSession(t *testing.T) {
	f := newAPI(t)

	rr, body := f.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"email": "a@x.com", "password": "Abcd123!", "firstName": "Ada", "lastName": "Lovelace",
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.True(t, body.Success)
	require.NotNil(t, body.User)
	assert.Equal(t, "Ada Lovelace", body.User.DisplayName)
	assert.False(t, body.User.Verified)

	rr, body = f.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "a@x.com", "password": "Abcd123!"})
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.False(t, body.Success)

	token := f.mail.token(t, mail.KindVerification, verifyRE)
	rr, body = f.do(t, http.MethodGet, "/api/auth/verify/"+token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Email verified successfully", body.Message)

	rr, body = f.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "a@x.com", "password": "Abcd123!"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, body.Token)
	require.NotNil(t, body.ExpiresAt)
	cookie := sessionCookie(rr)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, body.Token, cookie.Value)

	rr, body = f.do(t, http.MethodGet, "/api/auth/session", nil, func(r *http.Request) { r.AddCookie(cookie) })
	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, body.Session)
	assert.Equal(t, "a@x.com", body.Session.Email)
	assert.Equal(t, "password", body.Session.Provider)

	rr, _ = f.do(t, http.MethodPost, "/api/auth/logout", nil, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+cookie.Value)
	})
	require.Equal(t, http.StatusOK, rr.Code)
	cleared := sessionCookie(rr)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)

	rr, _ = f.do(t, http.MethodGet, "/api/auth/session", nil, func(r *http.Request) { r.AddCookie(cookie) })
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRegisterErrors(t *testing.T) {
	f := newAPI(t)
	f.signUp(t, "taken@x.com")

	cases := []struct {
		name   string
		body   any
		status int
	}{
		{"missing fields", map[string]string{"email": "a@x.com"}, http.StatusBadRequest},
		{"bad email", map[string]string{"email": "not-an-email", "password": "Abcd123!"}, http.StatusBadRequest},
		{"weak password", map[string]string{"email": "b@x.com", "password": "short"}, http.StatusBadRequest},
		{"duplicate", map[string]string{"email": "taken@x.com", "password": "Abcd123!"}, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr, body := f.do(t, http.MethodPost, "/api/auth/register", tc.body)
			assert.Equal(t, tc.status, rr.Code)
			assert.False(t, body.Success)
		})
	}

	_, body := f.do(t, http.MethodPost, "/api/auth/register", map[string]string{"email": "c@x.com", "password": "short"})
	assert.NotEmpty(t, body.Violations)
}

func TestMalformedBody(t *testing.T) {
	f := newAPI(t)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString("{"))
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Invalid input data")
}

func TestLoginFailuresAndLockout(t *testing.T) {
	f := newAPI(t)
	f.signUp(t, "a@x.com")

	rr, _ := f.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "ghost@x.com", "password": "Abcd123!"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// The failure that reaches the threshold still reports bad credentials.
	for i := 0; i < 5; i++ {
		rr, _ = f.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "a@x.com", "password": "Wrong123!"})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	}

	rr, _ = f.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "a@x.com", "password": "Abcd123!"})
	assert.Equal(t, http.StatusLocked, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
}

func TestLockoutRetryAfterUsesEngineClock(t *testing.T) {
	frozen := time.Date(2020, 3, 1, 12, 0, 0, 0, time.UTC)
	f := newAPI(t, func(s *apiSetup) { s.clock = func() time.Time { return frozen } })
	f.signUp(t, "a@x.com")

	for i := 0; i < 5; i++ {
		f.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "a@x.com", "password": "Wrong123!"})
	}
	rr, _ := f.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "a@x.com", "password": "Abcd123!"})
	require.Equal(t, http.StatusLocked, rr.Code)

	want := int(f.engine.Config().Lockout.Duration / time.Second)
	assert.Equal(t, strconv.Itoa(want), rr.Header().Get("Retry-After"))
}

func TestPolicyMessageFollowsConfig(t *testing.T) {
	f := newAPI(t, func(s *apiSetup) { s.cfg.Policy.MinLength = 12 })

	rr, body := f.do(t, http.MethodPost, "/api/auth/register", map[string]string{"email": "a@x.com", "password": "Abcd123!"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Password must be at least 12 characters", body.Message)
	assert.Equal(t, []string{"must be at least 12 characters"}, body.Violations)
}

func TestSessionRejectionsAreJSON(t *testing.T) {
	store := &flakyStore{Store: memory.New()}
	f := newAPI(t, func(s *apiSetup) { s.store = store })
	f.signUp(t, "a@x.com")

	rr, body := f.do(t, http.MethodGet, "/api/auth/session", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.False(t, body.Success)
	assert.Equal(t, "Invalid session", body.Message)

	rr, body = f.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "a@x.com", "password": "Abcd123!"})
	require.Equal(t, http.StatusOK, rr.Code)
	bearer := func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+body.Token) }

	store.down.Store(true)
	rr, body = f.do(t, http.MethodGet, "/api/auth/session", nil, bearer)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))
	assert.Equal(t, "Service temporarily unavailable", body.Message)

	store.down.Store(false)
	rr, body = f.do(t, http.MethodGet, "/api/auth/session", nil, bearer)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, body.Success)
}

func TestPasswordResetOverHTTP(t *testing.T) {
	f := newAPI(t)
	f.signUp(t, "a@x.com")

	rr, body := f.do(t, http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": "a@x.com"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, body.Success)
	token := f.mail.token(t, mail.KindReset, resetRE)

	rr, _ = f.do(t, http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": "ghost@x.com"})
	assert.Equal(t, http.StatusOK, rr.Code)

	rr, _ = f.do(t, http.MethodPost, "/api/auth/reset-password", map[string]string{"token": token, "password": "weak"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, body = f.do(t, http.MethodPost, "/api/auth/reset-password", map[string]string{"token": token, "password": "Newpass1!"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Password has been reset successfully", body.Message)

	rr, _ = f.do(t, http.MethodPost, "/api/auth/reset-password", map[string]string{"token": token, "password": "Newpass1!"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr, _ = f.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "a@x.com", "password": "Newpass1!"})
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestVerifyUnknownToken(t *testing.T) {
	f := newAPI(t)
	rr, body := f.do(t, http.MethodGet, "/api/auth/verify/not-a-token", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.False(t, body.Success)
}

func TestResendVerification(t *testing.T) {
	f := newAPI(t)
	rr, _ := f.do(t, http.MethodPost, "/api/auth/register", map[string]string{"email": "a@x.com", "password": "Abcd123!"})
	require.Equal(t, http.StatusCreated, rr.Code)
	first := f.mail.token(t, mail.KindVerification, verifyRE)

	rr, _ = f.do(t, http.MethodPost, "/api/auth/resend-verification", map[string]string{"email": "a@x.com"})
	require.Equal(t, http.StatusOK, rr.Code)
	second := f.mail.token(t, mail.KindVerification, verifyRE)
	assert.NotEqual(t, first, second)

	rr, _ = f.do(t, http.MethodGet, "/api/auth/verify/"+first, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr, _ = f.do(t, http.MethodGet, "/api/auth/verify/"+second, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestAdminConfirm(t *testing.T) {
	f := newAPI(t)
	rr, _ := f.do(t, http.MethodPost, "/api/auth/register", map[string]string{"email": "a@x.com", "password": "Abcd123!"})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr, _ = f.do(t, http.MethodPost, "/api/auth/confirm", map[string]string{"email": "a@x.com"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	withKey := func(r *http.Request) { r.Header.Set("X-Admin-Key", adminKey) }
	rr, _ = f.do(t, http.MethodPost, "/api/auth/confirm", map[string]string{"email": "ghost@x.com"}, withKey)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr, body := f.do(t, http.MethodPost, "/api/auth/confirm", map[string]string{"email": "a@x.com"}, withKey)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Email confirmed successfully", body.Message)

	rr, _ = f.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "a@x.com", "password": "Abcd123!"})
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestLogoutWithoutCredential(t *testing.T) {
	f := newAPI(t)
	rr, body := f.do(t, http.MethodPost, "/api/auth/logout", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, body.Success)

	rr, _ = f.do(t, http.MethodPost, "/api/auth/logout", nil, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer garbage")
	})
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestErrorStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{authcore.ErrAlreadyExists, http.StatusConflict},
		{authcore.ErrInvalidCredentials, http.StatusUnauthorized},
		{&authcore.LockedError{Until: time.Now().Add(time.Minute)}, http.StatusLocked},
		{authcore.ErrUnverified, http.StatusForbidden},
		{authcore.ErrTokenExpired, http.StatusBadRequest},
		{authcore.ErrRateLimited, http.StatusTooManyRequests},
		{authcore.ErrOAuthEmailUnverified, http.StatusForbidden},
		{authcore.ErrSessionRevoked, http.StatusUnauthorized},
		{authcore.ErrStoreUnavailable, http.StatusServiceUnavailable},
		{context.Canceled, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		status, body := errorStatus(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.NotEmpty(t, body.Message)
		assert.False(t, body.Success)
	}
}
