package google

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

const (
	StateCookie = "__oauth_state"
	PKCECookie  = "__oauth_pkce"

	flowTTL = 5 * time.Minute
)

// Begin writes fresh state and PKCE cookies and returns the URL to redirect
// the browser to.
func (p *Provider) Begin(w http.ResponseWriter, secure bool) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	state := base64.RawURLEncoding.EncodeToString(b)
	verifier := oauth2.GenerateVerifier()

	setFlowCookie(w, StateCookie, state, secure, int(flowTTL.Seconds()))
	setFlowCookie(w, PKCECookie, verifier, secure, int(flowTTL.Seconds()))

	return p.AuthCodeURL(state, verifier), nil
}

// Callback checks the state parameter against its cookie and returns the
// PKCE verifier. Both cookies are cleared either way.
func Callback(w http.ResponseWriter, r *http.Request, secure bool) (verifier string, ok bool) {
	defer func() {
		setFlowCookie(w, StateCookie, "", secure, -1)
		setFlowCookie(w, PKCECookie, "", secure, -1)
	}()

	state := r.URL.Query().Get("state")
	if state == "" {
		return "", false
	}
	sc, err := r.Cookie(StateCookie)
	if err != nil || subtle.ConstantTimeCompare([]byte(sc.Value), []byte(state)) != 1 {
		return "", false
	}
	pc, err := r.Cookie(PKCECookie)
	if err != nil || pc.Value == "" {
		return "", false
	}
	return pc.Value, true
}

func setFlowCookie(w http.ResponseWriter, name, value string, secure bool, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}
