// Package server is the portal's HTTP layer: server-rendered pages, the JSON
// API, the support chat websocket and the metrics endpoint.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/sfaret/stipslite/internal/auth"
	"github.com/sfaret/stipslite/internal/catalog"
	"github.com/sfaret/stipslite/internal/chat"
	"github.com/sfaret/stipslite/internal/flows"
	"github.com/sfaret/stipslite/internal/store"
)

// Deps are the services the server routes requests to. Accounts may be nil,
// which disables account sign-up and login.
type Deps struct {
	DB         *store.DB
	Flows      *flows.Runner
	Catalog    *catalog.Catalog
	Accounts   *auth.Accounts
	Sessions   *auth.Sessions
	Chat       *chat.Service
	CookieName string
	Version    string
	// Registry receives the HTTP collectors and backs /metrics. Nil creates
	// a private registry.
	Registry *prometheus.Registry
}

// Server is the portal HTTP server.
type Server struct {
	db         *store.DB
	flows      *flows.Runner
	catalog    *catalog.Catalog
	accounts   *auth.Accounts
	sessions   *auth.Sessions
	chat       *chat.Service
	cookieName string
	version    string
	started    time.Time

	registry *prometheus.Registry
	metrics  *httpMetrics
	pages    *renderer
	upgrader websocket.Upgrader
	router   chi.Router
}

// New creates a Server. It panics if the embedded templates fail to parse.
func New(d Deps) *Server {
	if d.CookieName == "" {
		d.CookieName = "stipslite_session"
	}
	if d.Registry == nil {
		d.Registry = prometheus.NewRegistry()
	}
	s := &Server{
		db:         d.DB,
		flows:      d.Flows,
		catalog:    d.Catalog,
		accounts:   d.Accounts,
		sessions:   d.Sessions,
		chat:       d.Chat,
		cookieName: d.CookieName,
		version:    d.Version,
		started:    time.Now(),
		registry:   d.Registry,
		metrics:    newHTTPMetrics(d.Registry),
		pages:      mustParseTemplates(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	s.sessions.Subscribe(s.recordSessionEvent)
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(requestID)
	r.Use(s.logRequests)
	r.Use(auth.Middleware(s.sessions, s.cookieName))

	r.Handle("/static/*", http.StripPrefix("/static/", staticHandler()))
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Get("/", s.handleLanding)

	r.Get("/login/{role}", s.handleLoginPage)
	r.Post("/login/{role}", s.handleLoginSubmit)
	r.Get("/signup/{role}", s.handleSignupPage)
	r.Post("/signup/{role}", s.handleSignupSubmit)
	r.Get("/admin/login", s.handleAdminLoginPage)
	r.Post("/admin/login", s.handleAdminLoginSubmit)
	r.Post("/logout", s.handleLogout)

	r.Get("/plans", s.handlePlans)
	r.Get("/print-centers", s.handlePrintCenters)
	r.Get("/assistants", s.handleAssistants)

	r.Get("/search/internet", s.handleSearchPage(flows.InternetSearch))
	r.Post("/search/internet", s.handleSearchSubmit(flows.InternetSearch))
	r.Get("/search/print-locations", s.handleSearchPage(flows.PrintLocationSearch))
	r.Post("/search/print-locations", s.handleSearchSubmit(flows.PrintLocationSearch))
	r.Get("/search/tasks", s.handleSearchPage(flows.TaskSearch))
	r.Post("/search/tasks", s.handleSearchSubmit(flows.TaskSearch))

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole())
		r.Get("/dashboard", s.handleDashboard)
		r.Get("/support", s.handleSupport)
		r.Post("/support/messages", s.handleSupportPost)
		r.Get("/support/ws", s.handleSupportWS)
	})
	r.With(auth.RequireRole(auth.AccountRoles...)).Post("/plans/{planID}/subscribe", s.handleSubscribe)
	r.With(auth.RequireRole(auth.RoleStudent)).Get("/student", s.handleStudentDashboard)
	r.With(auth.RequireRole(auth.RoleVA)).Get("/va", s.handleVADashboard)
	r.With(auth.RequireRole(auth.RolePrintCenter)).Get("/print-center", s.handlePrintCenterDashboard)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(auth.RoleAdmin))
		r.Get("/admin", s.handleAdminDashboard)
		r.Post("/support/{conversation}/messages", s.handleSupportReply)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/flows/internet-search", s.handleFlowAPI(flows.InternetSearch))
		r.Post("/flows/print-location-search", s.handleFlowAPI(flows.PrintLocationSearch))
		r.Post("/flows/task-search", s.handleFlowAPI(flows.TaskSearch))

		r.Post("/auth/admin", s.handleAPIAdminLogin)
		r.Post("/auth/login", s.handleAPILogin)
		r.Post("/auth/logout", s.handleAPILogout)
		r.Get("/auth/session", s.handleAPISession)

		r.Get("/plans", s.handleAPIPlans)
		r.Get("/print-centers", s.handleAPIPrintCenters)
		r.Get("/assistants", s.handleAPIAssistants)
		r.Get("/tasks", s.handleAPITasks)

		r.With(auth.RequireRole()).Get("/activity", s.handleAPIActivity)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.PingContext(r.Context()); err != nil {
		dbOK = false
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  s.version,
		"uptime":   time.Since(s.started).Seconds(),
		"db":       dbOK,
		"model":    s.flows.Available(),
		"accounts": s.accounts != nil,
	})
}

// recordActivity writes an activity row. Failures are logged only.
func (s *Server) recordActivity(ctx context.Context, p *auth.Principal, action, detail string) {
	if p == nil {
		return
	}
	a := &store.Activity{ActorEmail: p.Email, Role: p.Role, Action: action, Detail: detail}
	if err := s.db.AddActivity(context.WithoutCancel(ctx), a); err != nil {
		log.Error().Err(err).Str("action", action).Msg("record activity")
	}
}

func (s *Server) recordSessionEvent(ctx context.Context, ev auth.Event) {
	s.recordActivity(ctx, &ev.Principal, ev.Kind, "")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
