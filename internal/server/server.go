// Package server wires the application together: storage, services,
// handlers, middleware, and routes all meet here. It is the composition
// root — nothing else in the codebase constructs cross-layer dependencies.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/involvex/involvex-server/internal/account"
	"github.com/involvex/involvex-server/internal/auth"
	"github.com/involvex/involvex-server/internal/handler"
	"github.com/involvex/involvex-server/internal/kvstore"
	"github.com/involvex/involvex-server/internal/middleware"
	"github.com/involvex/involvex-server/internal/notify"
	"github.com/involvex/involvex-server/internal/trending"
)

// trendingCacheTTL bounds how stale a trending feed can get before the next
// request refetches it from GitHub or npm.
const trendingCacheTTL = 10 * time.Minute

// Config holds server configuration, loaded from the environment in main.
type Config struct {
	Port   int
	DBPath string

	// Auth is optional: when JWTSecret or the Discord credentials are
	// missing, the server runs in guest-only mode and the /auth routes
	// are not registered.
	JWTSecret           string
	DiscordClientID     string
	DiscordClientSecret string
	DiscordCallbackURL  string

	// NotificationsEnabled routes subscription events to the log-backed
	// notifier instead of the disabled no-op provider.
	NotificationsEnabled bool
}

// Server owns the router and the database connection. The connection is
// closed during graceful shutdown in Start.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *kvstore.DB
}

// New assembles the full dependency chain:
//
//	kvstore.DB → account.Store → handlers → routes
//
// Each layer receives only the interface it needs; handlers never see the
// key-value store and the store never sees HTTP.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	db, err := kvstore.NewSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	// === Services ===
	var notifier notify.Provider = notify.Disabled{}
	if s.config.NotificationsEnabled {
		notifier = notify.NewLogProvider(s.logger)
	}
	accounts := account.New(s.db, notifier, s.logger)

	cache := trending.NewCache(trendingCacheTTL)
	github := trending.NewGitHubClient(cache, s.logger)
	npm := trending.NewNpmClient(cache, s.logger)

	// === Auth (optional) ===
	// Without a JWT secret and Discord credentials the server runs
	// guest-only: no /auth routes, no /api/me.
	var (
		tokens      *auth.TokenService
		authHandler *handler.AuthHandler
	)
	if s.config.JWTSecret != "" && s.config.DiscordClientID != "" && s.config.DiscordClientSecret != "" {
		var err error
		tokens, err = auth.NewTokenService(s.config.JWTSecret)
		if err != nil {
			return fmt.Errorf("creating token service: %w", err)
		}
		discord := auth.NewDiscordProvider(
			s.config.DiscordClientID,
			s.config.DiscordClientSecret,
			s.config.DiscordCallbackURL,
		)
		authHandler = handler.NewAuthHandler(discord, tokens, accounts, s.logger)
	} else {
		s.logger.Warn("Discord auth disabled — JWT_SECRET or Discord credentials not set, running guest-only")
	}

	// === Handlers ===
	accountHandler := handler.NewAccountHandler(accounts, s.logger)
	subscriptionHandler := handler.NewSubscriptionHandler(accounts, s.logger)
	trendingHandler := handler.NewTrendingHandler(github, npm, s.logger)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/account", accountHandler.HandleGet)
		r.Patch("/account", accountHandler.HandleUpdate)
		r.Patch("/account/preferences", accountHandler.HandleUpdatePreferences)
		r.Delete("/account", accountHandler.HandleClear)

		r.Get("/subscriptions/repos", subscriptionHandler.HandleListRepos)
		r.Post("/subscriptions/repos", subscriptionHandler.HandleSubscribeRepo)
		r.Get("/subscriptions/repos/*", subscriptionHandler.HandleCheckRepo)
		r.Delete("/subscriptions/repos/*", subscriptionHandler.HandleUnsubscribeRepo)

		r.Get("/subscriptions/packages", subscriptionHandler.HandleListPackages)
		r.Post("/subscriptions/packages", subscriptionHandler.HandleSubscribePackage)
		r.Get("/subscriptions/packages/*", subscriptionHandler.HandleCheckPackage)
		r.Delete("/subscriptions/packages/*", subscriptionHandler.HandleUnsubscribePackage)

		r.Get("/trending/repos", trendingHandler.HandleRepos)
		r.Get("/trending/packages", trendingHandler.HandlePackages)

		if authHandler != nil {
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAuth(tokens))
				r.Get("/me", authHandler.HandleMe)
			})
		}
	})

	if authHandler != nil {
		s.router.Route("/auth", func(r chi.Router) {
			r.Get("/discord/login", authHandler.HandleDiscordLogin)
			r.Get("/discord/callback", authHandler.HandleDiscordCallback)
			r.Post("/logout", authHandler.HandleLogout)
		})
	}

	return nil
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully: stop accepting connections, drain in-flight requests, close
// the database so the WAL is flushed.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
