// Package server wires configuration, storage, services and handlers into an
// HTTP server.
//
// DEPENDENCY FLOW:
//
//	config.Config → sqlite.DB + storage.BlobStore
//	             → FolderService / CardService / OrderService (/ AuthService)
//	             → handlers → chi routes → CORS → http.Server
//
// This is the composition root: nothing else in the module constructs
// concrete dependencies.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/sakif/cardbox/internal/auth"
	"github.com/sakif/cardbox/internal/config"
	"github.com/sakif/cardbox/internal/handler"
	"github.com/sakif/cardbox/internal/middleware"
	sqliteRepo "github.com/sakif/cardbox/internal/repository/sqlite"
	"github.com/sakif/cardbox/internal/service"
	"github.com/sakif/cardbox/internal/storage"
)

const shutdownTimeout = 30 * time.Second

// Server owns the database and blob store for its lifetime.
type Server struct {
	router chi.Router
	config *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
	blobs  storage.BlobStore
}

// New opens the database (applying migrations), opens the configured blob
// store and builds the routes.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg.DBPath != sqliteRepo.MemoryPath {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sqliteRepo.New(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	blobs, err := openBlobStore(ctx, cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("opening blob store: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
		blobs:  blobs,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

func openBlobStore(ctx context.Context, cfg *config.Config) (storage.BlobStore, error) {
	switch cfg.StorageDriver {
	case config.StorageS3:
		store, err := storage.NewS3Store(ctx, storage.S3Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StorageLocal:
		store, err := storage.NewLocalStore(cfg.UploadDir)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// setupRoutes registers every endpoint.
//
// ROUTES:
//
//	GET    /up                              health check
//	GET    /blobs/*                         stored images
//	GET    /api/folders, /folders           root trees
//	GET    /api/folders/{id}, /folders/{id} one tree
//	GET    /cards, /cards/{id}
//
// Mutating routes require a token when auth is on:
//
//	POST   /folders
//	PATCH  /folders/sort
//	PATCH  /folders/{id} (also PUT)
//	DELETE /folders/{id}
//	POST   /cards
//	PATCH  /cards/sort, /api/cards/sort
//	PATCH  /cards/{id} (also PUT)
//	DELETE /cards/{id}
//
// With auth on, POST /auth/login, POST /auth/logout and GET /auth/me exist too.
//
// Static segments such as "sort" take precedence over {id} in chi.
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	tree := service.NewTreeBuilder(s.config.PublicBaseURL)
	folderService := service.NewFolderService(s.db, s.blobs, tree, s.logger)
	cardService := service.NewCardService(s.db, s.blobs, service.CardOptions{
		BaseURL:       s.config.PublicBaseURL,
		MaxImageBytes: s.config.MaxImageBytes,
	}, s.logger)
	orderService := service.NewOrderService(s.db, s.logger)

	folders := handler.NewFolderHandler(folderService, s.logger)
	cards := handler.NewCardHandler(cardService, s.config.MaxImageBytes, s.logger)
	order := handler.NewOrderHandler(orderService, s.logger)
	blobs := handler.NewBlobHandler(s.blobs, s.logger)
	health := handler.NewHealthHandler(s.db, s.logger)

	requireAuth, err := s.setupAuth()
	if err != nil {
		return err
	}

	s.router.Get("/up", health.HandleUp)
	s.router.Get("/blobs/*", blobs.HandleGet)

	s.router.Get("/api/folders", folders.HandleList)
	s.router.Get("/api/folders/{id}", folders.HandleGet)
	s.router.Get("/folders", folders.HandleList)
	s.router.Get("/folders/{id}", folders.HandleGet)
	s.router.Get("/cards", cards.HandleList)
	s.router.Get("/cards/{id}", cards.HandleGet)

	s.router.Group(func(r chi.Router) {
		r.Use(requireAuth)

		r.Post("/folders", folders.HandleCreate)
		r.Patch("/folders/sort", order.HandleSortFolders)
		r.Patch("/folders/{id}", folders.HandleUpdate)
		r.Put("/folders/{id}", folders.HandleUpdate)
		r.Delete("/folders/{id}", folders.HandleDelete)

		r.Post("/cards", cards.HandleCreate)
		r.Patch("/cards/sort", order.HandleSortCards)
		r.Patch("/api/cards/sort", order.HandleSortCards)
		r.Patch("/cards/{id}", cards.HandleUpdate)
		r.Put("/cards/{id}", cards.HandleUpdate)
		r.Delete("/cards/{id}", cards.HandleDelete)
	})

	return nil
}

// setupAuth registers the auth routes and returns the middleware guarding
// mutating routes. With auth disabled the middleware is a pass-through.
func (s *Server) setupAuth() (func(http.Handler) http.Handler, error) {
	if !s.config.AuthEnabled() {
		s.logger.Warn("JWT_SECRET and ADMIN_PASSWORD_HASH not set, the API is open")
		return func(next http.Handler) http.Handler { return next }, nil
	}

	tokens, err := auth.NewTokenService(s.config.JWTSecret, auth.DefaultTTL)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}
	authService := service.NewAuthService(s.config.AdminPasswordHash, tokens, auth.NewPasswordService(auth.DefaultCost), s.logger)
	authHandler := handler.NewAuthHandler(authService, s.config.SecureCookies, s.logger)
	requireAuth := auth.RequireAuth(tokens)

	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)
		r.With(requireAuth).Get("/me", authHandler.HandleMe)
	})
	return requireAuth, nil
}

// Handler returns the full handler chain, CORS included.
// CORS wraps the router so OPTIONS preflights never reach auth.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   s.config.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-Id"},
		ExposedHeaders:   []string{"Location", "X-Request-Id"},
		AllowCredentials: true,
	})
	return c.Handler(s.router)
}

// Start serves until ctx is cancelled, then drains in-flight requests and
// closes the database.
func (s *Server) Start(ctx context.Context) error {
	defer s.Close()

	srv := &http.Server{
		Addr:              s.config.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
			slog.String("storage", s.config.StorageDriver),
			slog.Bool("auth", s.config.AuthEnabled()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// Close releases the database.
func (s *Server) Close() error {
	return s.db.Close()
}
