package httpapi

import (
	"net/http"

	"github.com/MrEthical07/authcore/oauth/google"
)

func (s *server) googleStart(w http.ResponseWriter, r *http.Request) {
	target, err := s.opts.Google.Begin(w, s.opts.SecureCookies)
	if err != nil {
		s.writeError(w, err)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (s *server) googleCallback(w http.ResponseWriter, r *http.Request) {
	verifier, ok := google.Callback(w, r, s.opts.SecureCookies)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, response{Message: "Invalid state"})
		return
	}

	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		s.logger.Warn("oauth callback returned error",
			"provider", "google",
			"error", e,
			"description", q.Get("error_description"),
		)
		writeJSON(w, http.StatusUnauthorized, response{Message: "Authentication cancelled"})
		return
	}
	code := q.Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, response{Message: "Missing authorization code"})
		return
	}

	profile, err := s.opts.Google.Exchange(r.Context(), code, verifier)
	if err != nil {
		s.logger.Warn("oauth exchange failed", "provider", "google", "error", err)
		writeJSON(w, http.StatusUnauthorized, response{Message: "Authentication failed"})
		return
	}

	sess, err := s.engine.LoginOAuth(r.Context(), profile)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if s.opts.PostLoginRedirect != "" {
		s.setSessionCookie(w, sess.Token, sess.ExpiresAt)
		http.Redirect(w, r, s.opts.PostLoginRedirect, http.StatusFound)
		return
	}
	s.writeSession(w, sess)
}
