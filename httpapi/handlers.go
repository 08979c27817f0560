package httpapi

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/identity"
	"github.com/MrEthical07/authcore/middleware"
)

type credentialsRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type resetRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (s *server) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, response{Message: "Email and password are required"})
		return
	}

	rec, err := s.engine.Register(r.Context(), authcore.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, response{
		Success: true,
		Message: "User created successfully. Please check your email for verification.",
		User:    viewOf(rec),
	})
}

func (s *server) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, response{Message: "Email and password are required"})
		return
	}

	sess, err := s.engine.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeSession(w, sess)
}

func (s *server) writeSession(w http.ResponseWriter, sess *authcore.Session) {
	s.setSessionCookie(w, sess.Token, sess.ExpiresAt)
	expires := sess.ExpiresAt
	writeJSON(w, http.StatusOK, response{
		Success:   true,
		Message:   "Login successful",
		Token:     sess.Token,
		ExpiresAt: &expires,
		User:      viewOf(sess.Identity),
	})
}

func (s *server) logout(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.Credential(r)
	if ok {
		if err := s.engine.Logout(r.Context(), token); err != nil && !isSessionError(err) {
			s.writeError(w, err)
			return
		}
	}
	s.setSessionCookie(w, "", time.Time{})
	writeJSON(w, http.StatusOK, response{Success: true, Message: "Successfully signed out"})
}

func (s *server) session(w http.ResponseWriter, r *http.Request) {
	claims, _ := authcore.ClaimsFromContext(r.Context())
	writeJSON(w, http.StatusOK, response{
		Success: true,
		Message: "Session active",
		Session: &sessionView{
			UserID:    claims.IdentityID,
			Email:     claims.Email,
			Provider:  string(claims.Provider),
			ExpiresAt: claims.ExpiresAt,
		},
	})
}

// guardError answers guard rejections in the API's JSON shape.
func (s *server) guardError(w http.ResponseWriter, _ *http.Request, err error) {
	s.writeError(w, err)
}

func (s *server) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Email == "" {
		writeJSON(w, http.StatusBadRequest, response{Message: "Email is required"})
		return
	}
	if err := s.engine.RequestPasswordReset(r.Context(), req.Email); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response{Success: true, Message: "If an account exists for this email, a password reset email has been sent"})
}

func (s *server) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Token == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, response{Message: "All fields are required"})
		return
	}
	if err := s.engine.ConfirmPasswordReset(r.Context(), req.Token, req.Password); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response{Success: true, Message: "Password has been reset successfully"})
}

func (s *server) verify(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		writeJSON(w, http.StatusBadRequest, response{Message: "Verification token is required"})
		return
	}
	if err := s.engine.ConfirmEmail(r.Context(), token); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response{Success: true, Message: "Email verified successfully"})
}

func (s *server) resendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Email == "" {
		writeJSON(w, http.StatusBadRequest, response{Message: "Email is required"})
		return
	}
	if err := s.engine.ResendVerification(r.Context(), req.Email); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response{Success: true, Message: "If the account needs verification, a new email has been sent"})
}

func (s *server) confirm(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Email == "" {
		writeJSON(w, http.StatusBadRequest, response{Message: "Email is required"})
		return
	}
	if err := s.engine.ConfirmEmailByAddress(r.Context(), req.Email); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response{Success: true, Message: "Email confirmed successfully"})
}

func (s *server) requireAdminKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get("X-Admin-Key")
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(s.opts.AdminKey)) != 1 {
			writeJSON(w, http.StatusUnauthorized, response{Message: "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) setSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	c := &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	if token == "" {
		c.MaxAge = -1
	} else {
		c.Expires = expires
	}
	http.SetCookie(w, c)
}

func isSessionError(err error) bool {
	status, _ := errorStatus(err)
	return status == http.StatusUnauthorized
}

func viewOf(rec *identity.Identity) *userView {
	if rec == nil {
		return nil
	}
	return &userView{
		ID:          rec.ID,
		Email:       rec.Email,
		DisplayName: rec.DisplayName,
		Verified:    rec.Verified,
		Provider:    string(rec.Provider),
	}
}
