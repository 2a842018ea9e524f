// Package server wires the router, middleware, and handlers into the HTTP
// server that fronts the club API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pitchside/pitchside/internal/activity"
	"github.com/pitchside/pitchside/internal/auth"
	"github.com/pitchside/pitchside/internal/blob"
	"github.com/pitchside/pitchside/internal/content"
	"github.com/pitchside/pitchside/internal/handler"
	"github.com/pitchside/pitchside/internal/hooks"
	"github.com/pitchside/pitchside/internal/metrics"
	"github.com/pitchside/pitchside/internal/model"
	"github.com/pitchside/pitchside/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host              string
	Port              int
	ShutdownTimeout   time.Duration
	CORSOrigins       []string
	RequestsPerMinute int
	Version           string
}

// DefaultConfig returns a Config with sensible production defaults. The
// dashboard is served from arbitrary origins, so CORS is wide open by
// default; authentication is the bearer token, not the origin.
func DefaultConfig() Config {
	return Config{
		Host:              "0.0.0.0",
		Port:              8080,
		ShutdownTimeout:   30 * time.Second,
		CORSOrigins:       []string{"*"},
		RequestsPerMinute: 300,
		Version:           "dev",
	}
}

// Server is the top-level HTTP server. It owns the Chi router, the blob
// store, and every service built over it.
type Server struct {
	cfg        Config
	router     chi.Router
	blobs      blob.Store
	users      *auth.UserService
	recorder   *activity.Recorder
	calendar   hooks.CalendarSync
	notifier   hooks.Notifier
	metrics    *metrics.Metrics
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a new Server, wires up all routes and middleware, and returns
// it ready to listen. Call ListenAndServe to start accepting connections.
func New(cfg Config, blobs blob.Store, users *auth.UserService, recorder *activity.Recorder,
	calendar hooks.CalendarSync, notifier hooks.Notifier, logger *slog.Logger) (*Server, error) {

	m, err := metrics.New(prometheus.NewRegistry())
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	s := &Server{
		cfg:      cfg,
		blobs:    blobs,
		users:    users,
		recorder: recorder,
		calendar: calendar,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
	}
	s.setupRouter()
	return s, nil
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(s.metrics.Middleware)
	r.Use(middleware.RateLimit(s.cfg.RequestsPerMinute))
	r.Use(chimw.Compress(5))

	sys := handler.NewSystemHandler(s.blobs, s.recorder, s.cfg.Version)
	r.Get("/healthz", sys.Health)
	r.Get("/readyz", sys.Ready)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	requireAuth := middleware.RequireAuth(s.users, s.metrics)
	requireSuper := middleware.RequireSuperAdmin(s.users, s.metrics)
	optionalAuth := middleware.OptionalAuth(s.users)

	// Admin users. POST routes its own actions because login is
	// unauthenticated while the rest of the actions on the same route need
	// a super-admin token.
	usersHandler := handler.NewUsersHandler(s.users, s.recorder)
	r.Post("/admin-users", usersHandler.Post)
	r.Get("/admin-users", usersHandler.List)
	r.Delete("/admin-users", usersHandler.Delete)

	// Content collections. Reads are public; mutations need a token plus
	// the section permission.
	mountContent(s, r, "fixtures", model.KeyFixtures, "fixture", "fixtures", model.PermFixtures,
		func() *model.Fixture { return &model.Fixture{} }, s.fixtureChanged)
	mountContent(s, r, "news", model.KeyNews, "news item", "news", model.PermNews,
		func() *model.NewsItem { return &model.NewsItem{} }, s.contentChanged)
	mountContent(s, r, "players", model.KeyPlayers, "player", "players", model.PermPlayers,
		func() *model.Player { return &model.Player{} }, s.contentChanged)
	mountContent(s, r, "sponsors", model.KeySponsors, "sponsor", "sponsors", model.PermSponsors,
		func() *model.Sponsor { return &model.Sponsor{} }, s.contentChanged)
	mountContent(s, r, "contacts", model.KeyContacts, "contact", "contacts", model.PermContacts,
		func() *model.Contact { return &model.Contact{} }, s.contentChanged)
	mountContent(s, r, "teams", model.KeyTeams, "team", "teams", model.PermTeams,
		func() *model.Team { return &model.Team{} }, s.contentChanged)
	mountContent(s, r, "gallery", model.KeyGallery, "image", "images", model.PermGallery,
		func() *model.GalleryImage { return &model.GalleryImage{} }, s.contentChanged)
	mountContent(s, r, "vps", model.KeyVPs, "vice-president", "vps", model.PermVPWall,
		func() *model.VicePresident { return &model.VicePresident{} }, s.contentChanged)

	// Site settings: public read with secrets stripped, permissioned write.
	settings := handler.NewSettingsHandler(s.blobs, s.contentChanged)
	r.With(optionalAuth).Get("/site-settings", settings.Get)
	r.With(requireAuth, middleware.RequirePermission(model.PermSettings)).Put("/site-settings", settings.Put)

	// Audit trail, super-admins only.
	r.With(requireSuper).Get("/activity-log", sys.ActivityLog)

	s.router = r
}

// mountContent registers the five routes of one content collection.
func mountContent[T model.Item](s *Server, r chi.Router, section, key, typeName, pluralKey, perm string,
	newT func() T, onChange handler.ChangeListener) {

	store := content.NewStore(s.blobs, key, typeName, newT)
	h := handler.NewContentHandler(store, section, pluralKey, onChange)

	requireAuth := middleware.RequireAuth(s.users, s.metrics)
	requirePerm := middleware.RequirePermission(perm)

	r.Get("/"+section, h.List)
	r.With(requireAuth, requirePerm).Post("/"+section, h.Create)
	r.With(requireAuth, requirePerm).Put("/"+section, h.Update)
	r.With(requireAuth, requirePerm).Delete("/"+section, h.Delete)
	r.With(requireAuth, requirePerm).Post("/"+section+"-bulk", h.Bulk)
}

// contentChanged records the mutation in the audit trail and fires the
// notifier hook.
func (s *Server) contentChanged(ctx context.Context, actor *model.AdminUser, section, action, id, label string) {
	actorEmail := ""
	if actor != nil {
		actorEmail = actor.Email
	}
	s.recorder.Record(ctx, actorEmail, action, section, label)
	if s.notifier != nil {
		go s.notifier.ContentChanged(context.WithoutCancel(ctx), section, action, label)
	}
}

// fixtureChanged is contentChanged plus the calendar sync hook.
func (s *Server) fixtureChanged(ctx context.Context, actor *model.AdminUser, section, action, id, label string) {
	s.contentChanged(ctx, actor, section, action, id, label)
	if s.calendar == nil {
		return
	}
	hctx := context.WithoutCancel(ctx)
	switch action {
	case "create":
		go s.calendar.FixtureCreated(hctx, id, label)
	case "update":
		go s.calendar.FixtureUpdated(hctx, id, label)
	case "delete":
		go s.calendar.FixtureDeleted(hctx, id, label)
	}
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or SIGTERM
// is received. It then performs a graceful shutdown, draining in-flight
// requests before closing the blob store.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	if err := s.blobs.Close(); err != nil {
		s.logger.Error("close blob store", "error", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
