package server

import (
	"net/http"

	"github.com/jwulff/picorelay/internal/auth"
	"github.com/jwulff/picorelay/internal/domain"
)

// SessionCookieName is the cookie carrying the opaque session id.
const SessionCookieName = "relay_session"

func (s *Server) setSessionCookie(w http.ResponseWriter, session *domain.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// sessionUserID resolves the request's session cookie to a user id, or
// auth.ErrNoSession when the cookie is absent, unknown, or expired.
func (s *Server) sessionUserID(r *http.Request) (string, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return "", auth.ErrNoSession
	}
	return s.auth.Authenticate(r.Context(), cookie.Value)
}
