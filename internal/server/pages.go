package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/sfaret/stipslite/internal/auth"
	"github.com/sfaret/stipslite/internal/flows"
	"github.com/sfaret/stipslite/internal/store"
)

const (
	dashboardListLimit = 10
	adminListLimit     = 20
)

func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "landing.html", "Welcome", map[string]any{
		"Roles":    auth.AccountRoles,
		"Accounts": s.accounts != nil,
		"Plans":    s.catalog.Plans,
	}, nil)
}

// accountRole returns the {role} URL parameter when it names an account role.
func accountRole(r *http.Request) (string, bool) {
	role := chi.URLParam(r, "role")
	return role, auth.IsAccountRole(role)
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	role, ok := accountRole(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	s.render(w, r, http.StatusOK, "login.html", auth.RoleLabel(role)+" login", map[string]any{
		"Role":      role,
		"Action":    auth.LoginPath(role),
		"SignupURL": "/signup/" + role,
		"Available": s.accounts != nil,
	}, nil)
}

func (s *Server) handleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	role, ok := accountRole(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	back := auth.LoginPath(role)
	if err := r.ParseForm(); err != nil {
		redirectWith(w, r, back, "error", "Could not read the form.")
		return
	}

	u, err := s.accounts.Login(r.Context(), r.PostFormValue("email"), r.PostFormValue("password"), role)
	switch {
	case errors.Is(err, auth.ErrAccountsDisabled):
		redirectWith(w, r, back, "error", "Sign-in is unavailable right now.")
		return
	case errors.Is(err, auth.ErrInvalidCredentials):
		redirectWith(w, r, back, "error", "Email or password is incorrect.")
		return
	case err != nil:
		log.Error().Err(err).Str("role", role).Msg("account login")
		redirectWith(w, r, back, "error", "Something went wrong. Please try again.")
		return
	}

	if !s.startSession(w, r, auth.Principal{Email: u.Email, Role: u.Role, UserID: u.ID}) {
		redirectWith(w, r, back, "error", "Something went wrong. Please try again.")
		return
	}
	redirectWith(w, r, auth.DashboardPath(role), "success", "Welcome back, "+u.Name+".")
}

func (s *Server) handleSignupPage(w http.ResponseWriter, r *http.Request) {
	role, ok := accountRole(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	s.render(w, r, http.StatusOK, "signup.html", auth.RoleLabel(role)+" sign up", map[string]any{
		"Role":        role,
		"Action":      "/signup/" + role,
		"LoginURL":    auth.LoginPath(role),
		"Available":   s.accounts != nil,
		"MinPassword": auth.MinPasswordLen,
	}, nil)
}

func (s *Server) handleSignupSubmit(w http.ResponseWriter, r *http.Request) {
	role, ok := accountRole(r)
	if !ok {
		http.NotFound(w, r)
		return
	}
	back := "/signup/" + role
	if err := r.ParseForm(); err != nil {
		redirectWith(w, r, back, "error", "Could not read the form.")
		return
	}
	if r.PostFormValue("password") != r.PostFormValue("confirm") {
		redirectWith(w, r, back, "error", "Passwords do not match.")
		return
	}

	u, err := s.accounts.Register(r.Context(), r.PostFormValue("email"), r.PostFormValue("name"), r.PostFormValue("password"), role)
	switch {
	case errors.Is(err, auth.ErrAccountsDisabled):
		redirectWith(w, r, back, "error", "Sign-up is unavailable right now.")
		return
	case errors.Is(err, auth.ErrEmailTaken):
		redirectWith(w, r, back, "error", "That email is already registered.")
		return
	case errors.Is(err, auth.ErrInvalidAccount):
		redirectWith(w, r, back, "error", validationMessage(err))
		return
	case err != nil:
		log.Error().Err(err).Str("role", role).Msg("account signup")
		redirectWith(w, r, back, "error", "Something went wrong. Please try again.")
		return
	}

	p := auth.Principal{Email: u.Email, Role: u.Role, UserID: u.ID}
	s.recordActivity(r.Context(), &p, "signup", "")
	if !s.startSession(w, r, p) {
		redirectWith(w, r, auth.LoginPath(role), "success", "Account created. Please log in.")
		return
	}
	redirectWith(w, r, auth.DashboardPath(role), "success", "Account created. Welcome, "+u.Name+".")
}

// validationMessage turns "invalid account details: password must be..." into
// a sentence for the form.
func validationMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, ": "); i >= 0 {
		msg = msg[i+2:]
	}
	if msg == "" {
		return "Please check the form."
	}
	return strings.ToUpper(msg[:1]) + msg[1:] + "."
}

func (s *Server) handleAdminLoginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "login.html", "Admin login", map[string]any{
		"Role":      auth.RoleAdmin,
		"Action":    "/admin/login",
		"Available": true,
	}, nil)
}

func (s *Server) handleAdminLoginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		redirectWith(w, r, "/admin/login", "error", "Could not read the form.")
		return
	}
	if err := auth.AdminLogin(r.PostFormValue("email"), r.PostFormValue("password")); err != nil {
		redirectWith(w, r, "/admin/login", "error", "Invalid admin credentials.")
		return
	}
	if !s.startSession(w, r, auth.Principal{Email: auth.AdminEmail, Role: auth.RoleAdmin}) {
		redirectWith(w, r, "/admin/login", "error", "Something went wrong. Please try again.")
		return
	}
	redirectWith(w, r, "/admin", "success", "Signed in as admin.")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if p := auth.FromContext(r.Context()); p != nil {
		if err := s.sessions.Destroy(r.Context(), p.Token); err != nil {
			log.Error().Err(err).Msg("destroy session")
		}
	}
	auth.ClearCookie(w, s.cookieName)
	redirectWith(w, r, "/", "success", "You have been logged out.")
}

// startSession creates a session for p and sets the cookie.
func (s *Server) startSession(w http.ResponseWriter, r *http.Request, p auth.Principal) bool {
	sess, expires, err := s.sessions.Create(r.Context(), p)
	if err != nil {
		log.Error().Err(err).Str("role", p.Role).Msg("create session")
		return false
	}
	auth.SetCookie(w, r, s.cookieName, sess.Token, expires)
	return true
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	p := auth.FromContext(r.Context())
	http.Redirect(w, r, auth.DashboardPath(p.Role), http.StatusSeeOther)
}

func (s *Server) handleStudentDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := auth.FromContext(ctx)
	data := map[string]any{}

	if u, err := s.accounts.Get(ctx, p.UserID); err == nil && u != nil {
		data["Name"] = u.Name
	}
	sub, err := s.db.ActiveSubscription(ctx, p.UserID)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if sub != nil {
		data["Subscription"] = sub
		if plan, ok := s.catalog.Plan(sub.PlanID); ok {
			data["Plan"] = plan
		}
	}
	activity, err := s.db.ActivityFor(ctx, p.Email, dashboardListLimit)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	data["Activity"] = activity
	searches, err := s.db.RecentFlowRuns(ctx, store.FlowRunFilter{ActorEmail: p.Email, Limit: dashboardListLimit})
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	data["Searches"] = searches

	s.render(w, r, http.StatusOK, "dashboard_student.html", "Student dashboard", data, nil)
}

func (s *Server) handleVADashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := auth.FromContext(ctx)

	runs, err := s.db.RecentFlowRuns(ctx, store.FlowRunFilter{Flow: flows.TaskSearch, ActorEmail: p.Email, Limit: dashboardListLimit})
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "dashboard_va.html", "VA dashboard", map[string]any{
		"Runs":       runs,
		"Tasks":      s.catalog.Tasks,
		"Assistants": s.catalog.Assistants,
	}, nil)
}

func (s *Server) handlePrintCenterDashboard(w http.ResponseWriter, r *http.Request) {
	runs, err := s.db.RecentFlowRuns(r.Context(), store.FlowRunFilter{Flow: flows.PrintLocationSearch, Limit: dashboardListLimit})
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "dashboard_print_center.html", "Print center dashboard", map[string]any{
		"Centers": s.catalog.PrintCenters,
		"Runs":    runs,
	}, nil)
}

func (s *Server) handleAdminDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	counts, err := s.db.CountUsersByRole(ctx)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	subs, err := s.db.CountActiveSubscriptions(ctx)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	activity, err := s.db.RecentActivity(ctx, adminListLimit)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	convs, err := s.chat.Conversations(ctx, adminListLimit)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	users, err := s.db.ListUsers(ctx, "", adminListLimit)
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	type roleCount struct {
		Role  string
		Count int
	}
	var roleCounts []roleCount
	for _, role := range auth.AccountRoles {
		roleCounts = append(roleCounts, roleCount{Role: role, Count: counts[role]})
	}

	s.render(w, r, http.StatusOK, "dashboard_admin.html", "Admin dashboard", map[string]any{
		"Counts":        roleCounts,
		"Subscriptions": subs,
		"Plans":         s.catalog.Plans,
		"Activity":      activity,
		"Conversations": convs,
		"Users":         users,
		"Model":         s.flows.Available(),
		"Accounts":      s.accounts != nil,
	}, nil)
}

func (s *Server) handlePlans(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{"Plans": s.catalog.Plans, "Current": "", "CanSubscribe": false}
	if p := auth.FromContext(r.Context()); p != nil && p.UserID != "" {
		sub, err := s.db.ActiveSubscription(r.Context(), p.UserID)
		if err != nil {
			s.internalError(w, r, err)
			return
		}
		if sub != nil {
			data["Current"] = sub.PlanID
		}
		data["CanSubscribe"] = true
	}
	s.render(w, r, http.StatusOK, "plans.html", "Plans", data, nil)
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	p := auth.FromContext(r.Context())
	plan, ok := s.catalog.Plan(chi.URLParam(r, "planID"))
	if !ok {
		redirectWith(w, r, "/plans", "error", "That plan does not exist.")
		return
	}
	if _, err := s.db.Subscribe(r.Context(), p.UserID, plan.ID); err != nil {
		log.Error().Err(err).Str("plan", plan.ID).Msg("subscribe")
		redirectWith(w, r, "/plans", "error", "Could not update your subscription.")
		return
	}
	s.recordActivity(r.Context(), p, "subscribe", plan.ID)
	redirectWith(w, r, "/plans", "success", "You are now on the "+plan.Name+" plan.")
}

func (s *Server) handlePrintCenters(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	s.render(w, r, http.StatusOK, "print_centers.html", "Print centers", map[string]any{
		"Query":   q,
		"Centers": s.catalog.FilterPrintCenters(q),
	}, nil)
}

func (s *Server) handleAssistants(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "assistants.html", "Virtual assistants", map[string]any{
		"Assistants": s.catalog.Assistants,
	}, nil)
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	log.Error().Err(err).Str("path", r.URL.Path).Msg("internal error")
	http.Error(w, "internal server error", http.StatusInternalServerError)
}
