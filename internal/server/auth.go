package server

import (
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/Mark577-code/tech-blog/internal/auth"
)

type loginResponse struct {
	User  auth.User `json:"user"`
	Token string    `json:"token"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Password string `json:"password"`
	}
	if err := decode(w, r, &body); err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Password == "" {
		fail(w, http.StatusBadRequest, "password is required")
		return
	}
	if !s.Auth.VerifyPassword(body.Password) {
		log.WithField("remote", r.RemoteAddr).Warn("Failed admin login")
		fail(w, http.StatusUnauthorized, "wrong password")
		return
	}

	user := s.Auth.Admin()
	token, err := s.Auth.IssueToken(user)
	if err != nil {
		log.WithError(err).Error("issuing token")
		fail(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.Auth.SetCookie(w, token)
	ok(w, loginResponse{User: user, Token: token}, "logged in")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.Auth.ClearCookie(w)
	ok(w, nil, "logged out")
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u := auth.FromContext(r.Context())
	if u == nil {
		fail(w, http.StatusUnauthorized, "not logged in")
		return
	}
	ok(w, u, "")
}
