// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the wiring layer. It decides:
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → Server.New() opens sqlite.DB and the Spoonacular client
//	sqlite.DB + provider → catalog.Cache
//	sqlite.DB → User/Social/SavedItem/Intolerance services
//	SavedItemService + Cache → recommendation Engine
//	services → handlers → routes
//
// Everything is assembled in one place (build), the composition root.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/piecemeal/internal/auth"
	"github.com/sakif/piecemeal/internal/catalog"
	"github.com/sakif/piecemeal/internal/config"
	"github.com/sakif/piecemeal/internal/handler"
	"github.com/sakif/piecemeal/internal/metrics"
	"github.com/sakif/piecemeal/internal/middleware"
	"github.com/sakif/piecemeal/internal/provider/spoonacular"
	sqliteRepo "github.com/sakif/piecemeal/internal/repository/sqlite"
	"github.com/sakif/piecemeal/internal/service"
)

// rateLimitedBody is the envelope sent when a client exceeds the /api limit.
const rateLimitedBody = `{"success":false,"error_code":0,"error_message":"too many requests"}`

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection. Start closes it after the HTTP
// server has drained.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New opens the database and wires every layer on top of it. The recipe
// provider is only created when an API key is configured; without one the
// catalog serves what it has cached.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	var provider catalog.Provider
	if cfg.Spoonacular.Enabled() {
		provider = spoonacular.New(spoonacular.Config{
			APIKey:              cfg.Spoonacular.APIKey,
			BaseURL:             cfg.Spoonacular.BaseURL,
			Timeout:             cfg.Spoonacular.Timeout,
			RequestsPerSecond:   cfg.Spoonacular.RequestsPerSecond,
			Burst:               cfg.Spoonacular.Burst,
			BreakerMinRequests:  cfg.Spoonacular.BreakerMinRequests,
			BreakerFailureRatio: cfg.Spoonacular.BreakerFailureRatio,
			BreakerInterval:     cfg.Spoonacular.BreakerInterval,
			BreakerTimeout:      cfg.Spoonacular.BreakerTimeout,
		}, logger)
	} else {
		logger.Warn("spoonacular api key not set, catalog lookups are cache-only")
	}

	s, err := build(cfg, db, provider, logger)
	if err != nil {
		db.Close() // Clean up DB if route setup fails
		return nil, err
	}
	return s, nil
}

// build assembles the services and routes over an open database. provider
// may be nil.
func build(cfg *config.Config, db *sqliteRepo.DB, provider catalog.Provider, logger *slog.Logger) (*Server, error) {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}
	if err := s.setupRoutes(provider); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// setupRoutes configures all middleware and route handlers. The full route
// list lives on the handler types.
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns a unique ID to each request (for tracing)
// 2. RealIP: extracts the client IP from proxy headers (rate limiting keys on it)
// 3. Recoverer: turns panics into 500s
// 4. Logger and Metrics: one log line and one sample per request
func (s *Server) setupRoutes(provider catalog.Provider) error {
	cfg := s.config

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Metrics)

	// === Services ===
	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordServiceWithCost(cfg.Auth.BcryptCost)

	cache := catalog.NewCache(s.db, provider, s.logger)
	users := service.NewUserService(s.db, passwords, nil, s.logger)
	social := service.NewSocialService(s.db, s.logger)
	saved := service.NewSavedItemService(s.db, nil, s.logger)
	intolerances := service.NewIntoleranceService(s.db)
	engine := service.NewEngine(saved, cache, service.EngineOptions{
		Dedupe:               cfg.Recommend.Dedupe,
		LimitPerFriend:       cfg.Recommend.LimitPerFriend,
		FriendLimit:          cfg.Recommend.FriendLimit,
		MaxConcurrentSources: cfg.Recommend.MaxConcurrentSources,
		SourceTimeout:        cfg.Recommend.SourceTimeout,
	}, s.logger)
	authService := service.NewAuthService(users, tokens, s.logger)
	profiles := service.NewProfileService(users, saved, social, intolerances)

	var google *auth.GoogleProvider
	if cfg.Auth.GoogleEnabled() {
		google = auth.NewGoogleProvider(cfg.Auth.GoogleClientID, cfg.Auth.GoogleClientSecret, cfg.Auth.GoogleCallbackURL)
	}

	// === Handlers ===
	authHandler := handler.NewAuthHandler(authService, google, cfg.Auth.TokenTTL, cfg.Server.CookieSecure, s.logger)
	userHandler := handler.NewUserHandler(users, s.logger)
	profileHandler := handler.NewProfileHandler(profiles, s.logger)
	friendHandler := handler.NewFriendHandler(social, s.logger)
	savedHandler := handler.NewSavedHandler(saved, engine, s.logger)
	intoleranceHandler := handler.NewIntoleranceHandler(intolerances, s.logger)
	catalogHandler := handler.NewCatalogHandler(cache, intolerances, s.logger)
	healthHandler := handler.NewHealthHandler(s.db, s.logger)

	s.router.Get("/healthz", healthHandler.HandleHealth)
	s.router.Handle("/metrics", metrics.Handler())

	onLimit := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(rateLimitedBody))
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.Server.RateLimitRequests, cfg.Server.RateLimitWindow, onLimit))

		// === Public ===
		r.Post("/signup", authHandler.HandleSignup)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)
		if google != nil {
			r.Get("/auth/google/login", authHandler.HandleGoogleLogin)
			r.Get("/auth/google/callback", authHandler.HandleGoogleCallback)
		}

		r.Get("/users/get", userHandler.HandleGet)
		r.Get("/users/search", userHandler.HandleSearch)

		// Catalog reads and profiles work signed out. Signed in, searches also
		// honour the user's intolerances and owners see their whole profile.
		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalAuth(tokens))
			r.Get("/users/profile", profileHandler.HandleGet)
			r.Get("/recipe-info/get", catalogHandler.HandleGetRecipe)
			r.Get("/recipe-info/search", catalogHandler.HandleSearchRecipes)
			r.Get("/recipe-info/get-similar", catalogHandler.HandleSimilarRecipes)
			r.Get("/recipe-info/get-random", catalogHandler.HandleRandomRecipes)
			r.Get("/ingredient-info/get", catalogHandler.HandleGetIngredient)
			r.Get("/ingredient-info/search", catalogHandler.HandleSearchIngredients)
		})

		// === Signed in ===
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))

			r.Get("/account/get", userHandler.HandleAccount)
			r.Post("/account/update", userHandler.HandleUpdate)
			r.Post("/account/update-password", userHandler.HandleUpdatePassword)
			r.Post("/account/delete", userHandler.HandleDelete)

			r.Get("/friends/get", friendHandler.HandleGet)
			r.Post("/friends/send-request", friendHandler.HandleSendRequest)
			r.Post("/friends/handle-request", friendHandler.HandleRequest)
			r.Get("/friends/get-sent-requests", friendHandler.HandleSentRequests)
			r.Get("/friends/get-received-requests", friendHandler.HandleReceivedRequests)

			r.Route("/user-recipes", func(r chi.Router) {
				r.Get("/get", savedHandler.HandleGetRecipes)
				r.Post("/add", savedHandler.HandleAddRecipe)
				r.Post("/delete", savedHandler.HandleDeleteRecipe)
				r.Get("/get-top", savedHandler.HandleTopRecipes)
				r.Get("/get-friend-top", savedHandler.HandleFriendTopRecipes)
				r.Get("/get-recommended", savedHandler.HandleRecommendRecipes)
			})
			r.Route("/user-ingredients", func(r chi.Router) {
				r.Get("/get", savedHandler.HandleGetIngredients)
				r.Post("/add", savedHandler.HandleAddIngredient)
				r.Post("/delete", savedHandler.HandleDeleteIngredient)
				r.Get("/get-top", savedHandler.HandleTopIngredients)
				r.Get("/get-friend-top", savedHandler.HandleFriendTopIngredients)
				r.Get("/get-recommended", savedHandler.HandleRecommendIngredients)
			})

			r.Get("/user-intolerances/get", intoleranceHandler.HandleGet)
			r.Post("/user-intolerances/add", intoleranceHandler.HandleAdd)
			r.Post("/user-intolerances/delete", intoleranceHandler.HandleDelete)
		})
	})

	return nil
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (Server.ShutdownTimeout)
// 3. Close the database connection (flushes WAL, releases file lock)
func (s *Server) Start() error {
	defer s.db.Close()

	cfg := s.config.Server
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.String("addr", srv.Addr),
			slog.String("database", s.config.Database.Path),
			slog.Bool("provider", s.config.Spoonacular.Enabled()),
			slog.Bool("google_login", s.config.Auth.GoogleEnabled()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
