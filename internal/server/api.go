package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sfaret/stipslite/internal/auth"
	"github.com/sfaret/stipslite/internal/store"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (s *Server) writeSession(w http.ResponseWriter, r *http.Request, p auth.Principal) {
	sess, expires, err := s.sessions.Create(r.Context(), p)
	if err != nil {
		log.Error().Err(err).Msg("create session")
		writeError(w, http.StatusInternalServerError, "could not create session")
		return
	}
	auth.SetCookie(w, r, s.cookieName, sess.Token, expires)
	writeJSON(w, http.StatusOK, map[string]any{
		"email":      sess.Email,
		"role":       sess.Role,
		"expires_at": expires.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleAPIAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := auth.AdminLogin(req.Email, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	s.writeSession(w, r, auth.Principal{Email: auth.AdminEmail, Role: auth.RoleAdmin})
}

func (s *Server) handleAPILogin(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if !auth.IsAccountRole(req.Role) {
		writeError(w, http.StatusBadRequest, "role must be one of student, va, print-center")
		return
	}
	u, err := s.accounts.Login(r.Context(), req.Email, req.Password, req.Role)
	switch {
	case errors.Is(err, auth.ErrAccountsDisabled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	case err != nil:
		log.Error().Err(err).Msg("account login")
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	s.writeSession(w, r, auth.Principal{Email: u.Email, Role: u.Role, UserID: u.ID})
}

func (s *Server) handleAPILogout(w http.ResponseWriter, r *http.Request) {
	if p := auth.FromContext(r.Context()); p != nil {
		if err := s.sessions.Destroy(r.Context(), p.Token); err != nil {
			log.Error().Err(err).Msg("destroy session")
		}
	}
	auth.ClearCookie(w, s.cookieName)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAPISession(w http.ResponseWriter, r *http.Request) {
	p := auth.FromContext(r.Context())
	if p == nil {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"principal":     p,
	})
}

func (s *Server) handleAPIPlans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.Plans)
}

func (s *Server) handleAPIPrintCenters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.FilterPrintCenters(r.URL.Query().Get("q")))
}

func (s *Server) handleAPIAssistants(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.Assistants)
}

func (s *Server) handleAPITasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.Tasks)
}

func (s *Server) handleAPIActivity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := auth.FromContext(ctx)

	var (
		entries []store.Activity
		err     error
	)
	if p.IsAdmin() {
		entries, err = s.db.RecentActivity(ctx, adminListLimit)
	} else {
		entries, err = s.db.ActivityFor(ctx, p.Email, adminListLimit)
	}
	if err != nil {
		log.Error().Err(err).Msg("list activity")
		writeError(w, http.StatusInternalServerError, "could not list activity")
		return
	}
	if entries == nil {
		entries = []store.Activity{}
	}
	writeJSON(w, http.StatusOK, entries)
}
