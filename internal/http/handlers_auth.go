package http

import (
	"context"
	"net/http"

	"gastos/internal/core"
	"gastos/internal/log"
)

// AuthAPI is the account surface the handlers depend on.
type AuthAPI interface {
	Register(ctx context.Context, in core.Credentials) (core.Session, error)
	Login(ctx context.Context, in core.Credentials) (core.Session, error)
	Profile(ctx context.Context, userID int64) (core.Profile, error)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in core.Credentials
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	session, err := s.auth.Register(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "User registered",
		log.FieldUserID, session.ID, log.FieldOperation, log.OpRegister)
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in core.Credentials
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	session, err := s.auth.Login(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// handleLogout acknowledges the request. Tokens stay valid until they expire.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	profile, err := s.auth.Profile(r.Context(), uid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
