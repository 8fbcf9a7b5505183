package server

import (
	"net/http"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(r, &req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	user, session, err := s.auth.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	s.setSessionCookie(w, session)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "username": user.Username})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(r, &req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	user, session, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	s.setSessionCookie(w, session)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "username": user.Username})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		if err := s.auth.Logout(r.Context(), cookie.Value); err != nil {
			writeError(w, err)
			return
		}
	}
	s.clearSessionCookie(w)
	writeOK(w)
}
