// Package web is the portal's HTTP surface: a chi router serving the public
// pages, the auth API, the role-gated dashboards and their mutation
// endpoints, and a Server-Sent Events stream of the change feed.
package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"reliefportal/internal/adapters/auth"
	"reliefportal/internal/adapters/changefeed"
	"reliefportal/internal/adapters/http/middleware"
	"reliefportal/internal/adapters/http/perf"
	accountstore "reliefportal/internal/adapters/storage/account"
	alertstore "reliefportal/internal/adapters/storage/alert"
	donationstore "reliefportal/internal/adapters/storage/donation"
	rolestore "reliefportal/internal/adapters/storage/role"
	shiftstore "reliefportal/internal/adapters/storage/shift"
	signupstore "reliefportal/internal/adapters/storage/signup"
	"reliefportal/internal/application/coordinator"
	"reliefportal/internal/application/session"
	"reliefportal/internal/domain/account"
	"reliefportal/internal/domain/identity"
)

// Stores holds all storage dependencies.
type Stores struct {
	Accounts  accountstore.Store
	Roles     rolestore.Store
	Alerts    alertstore.Store
	Shifts    shiftstore.Store
	Signups   signupstore.Store
	Donations donationstore.Store
}

// Config tunes the HTTP layer.
type Config struct {
	EnforceCapacity    bool
	CSRF               middleware.CSRFConfig
	RateLimitPerSecond int
	SlowRequest        time.Duration
}

// Deps holds everything the server wires into handlers.
type Deps struct {
	Stores    Stores
	Auth      *auth.Provider
	Registry  *session.Registry
	Hub       *changefeed.Hub
	Collector *perf.Collector
	Ping      func(ctx context.Context) error
	Now       func() time.Time
}

// Server owns the router and the per-session coordinators.
type Server struct {
	cfg     Config
	deps    Deps
	limiter *middleware.RateLimiter
	router  chi.Router

	mu           sync.Mutex
	coordinators map[string]*coordinator.Coordinator
	unsubscribe  func()
}

// NewServer builds the router.
// PRE: deps.Auth, deps.Registry and deps.Hub are set
func NewServer(cfg Config, deps Deps) *Server {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if cfg.RateLimitPerSecond <= 0 {
		cfg.RateLimitPerSecond = 10
	}
	s := &Server{
		cfg:          cfg,
		deps:         deps,
		limiter:      middleware.NewRateLimiter(cfg.RateLimitPerSecond, time.Second),
		coordinators: make(map[string]*coordinator.Coordinator),
	}
	s.unsubscribe = deps.Auth.OnAuthStateChange(func(ev identity.AuthEvent) {
		if ev.Type == identity.EventSignedOut {
			s.dropCoordinator(ev.Session.ID)
		}
	})
	s.router = s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run performs background upkeep until ctx is done.
func (s *Server) Run(ctx context.Context) {
	s.limiter.Run(ctx)
}

// Close releases the server's subscriptions.
func (s *Server) Close() {
	s.unsubscribe()
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(
		chimw.RequestID,
		chimw.Recoverer,
		middleware.Timing(s.deps.Collector, s.cfg.SlowRequest),
		middleware.SecurityHeaders,
		middleware.RateLimit(s.limiter),
		middleware.CSRF(s.cfg.CSRF),
		middleware.Auth(s.deps.Auth, s.deps.Registry),
	)

	r.Get("/", s.handleHome)
	r.Get("/auth", s.handleAuthPage)
	r.Get("/healthz", s.handleHealth)
	r.With(middleware.RequirePage(account.RoleAdmin)).Get("/admin", s.handleAdminPage)
	r.With(middleware.RequirePage(account.RoleVolunteer)).Get("/volunteer", s.handleVolunteerPage)
	r.With(middleware.RequirePage(account.RoleDonor)).Get("/donor", s.handleDonorPage)

	r.Route("/api", func(r chi.Router) {
		r.Get("/alerts/active", s.handleActiveAlerts)
		r.Get("/stats/public", s.handlePublicStats)
		r.Get("/changes", s.handleChanges)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/sign-up", s.handleSignUp)
			r.Post("/sign-in", s.handleSignIn)
			r.Post("/sign-out", s.handleSignOut)
			r.Get("/session", s.handleSession)
			r.With(middleware.RequireUser).Post("/refresh", s.handleRefresh)
			r.With(middleware.RequireUser).Post("/role", s.handleSelectRole)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAPI(account.RoleAdmin))
			r.Get("/dashboard", s.handleAdminDashboard)
			r.Post("/alerts", s.handleCreateAlert)
			r.Post("/alerts/{id}/deactivate", s.handleSetAlertActive(false))
			r.Post("/alerts/{id}/activate", s.handleSetAlertActive(true))
			r.Post("/shifts", s.handleCreateShift)
			r.Post("/shifts/{id}/cancel", s.handleCancelShift)
			r.Post("/shifts/{id}/complete", s.handleShiftMutation(mutationComplete))
			r.Get("/users", s.handleUsers)
			r.Post("/users/promote", s.handlePromoteUser)
			r.Post("/users/{id}/roles/{role}/revoke", s.handleRevokeRole)
			r.Get("/activity", s.handleActivity)
			r.Get("/perf", s.handlePerf)
		})

		r.Route("/volunteer", func(r chi.Router) {
			r.Use(middleware.RequireAPI(account.RoleVolunteer))
			r.Get("/dashboard", s.handleVolunteerDashboard)
			r.Post("/shifts/{id}/signup", s.handleShiftMutation(mutationSignUp))
			r.Post("/shifts/{id}/cancel", s.handleShiftMutation(mutationCancel))
			r.Post("/shifts/{id}/complete", s.handleShiftMutation(mutationComplete))
		})

		r.Route("/donor", func(r chi.Router) {
			r.Use(middleware.RequireAPI(account.RoleDonor))
			r.Get("/dashboard", s.handleDonorDashboard)
			r.Post("/donations", s.handleRecordDonation)
		})
	})
	return r
}

func generateID() string {
	return uuid.New().String()
}
