// Package server wires the catalog together and runs the HTTP server.
//
// COMPOSITION ROOT:
//
//	sqlite.DB (store) → service.CatalogService → handler.* → chi routes
//
// metrics.Metrics is shared: the service reports operations to it and the
// Metrics middleware reports requests to it.
//
// The server owns the database handle and closes it after the HTTP server
// has drained on shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/biblioteca/internal/handler"
	"github.com/sakif/biblioteca/internal/metrics"
	"github.com/sakif/biblioteca/internal/middleware"
	sqliteRepo "github.com/sakif/biblioteca/internal/repository/sqlite"
	"github.com/sakif/biblioteca/internal/service"
	"github.com/sakif/biblioteca/web"
)

// Config holds server configuration.
type Config struct {
	Addr            string
	DBPath          string
	ShutdownTimeout time.Duration
	// Clock overrides "today" for status derivation. Nil means the system clock.
	Clock service.Clock
}

// Server holds the router and everything it depends on.
type Server struct {
	router  *chi.Mux
	config  Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	metrics *metrics.Metrics
}

// New opens the store at cfg.DBPath (creating the tables if needed) and
// builds the routes.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		db:      db,
		metrics: metrics.New(),
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures middleware and routes.
//
// GET    /                         → catalog page (HTML)
// GET    /api/books                → books with status
// POST   /api/books                → add book
// GET    /api/books/{id}           → one book
// DELETE /api/books/{id}           → remove book and its loans
// POST   /api/books/{id}/loans     → register loan
// POST   /api/books/{id}/return    → mark latest open loan returned
// GET    /api/loans                → loans with status
// GET    /api/choices              → program and location lists
// GET    /export/{books,loans}.{csv,pdf}
// GET    /metrics                  → Prometheus
//
// Middleware order: RequestID first so Logger can print the id; Recoverer
// last so a panic reaches Logger and Metrics as a 500.
func (s *Server) setupRoutes() error {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Metrics(s.metrics))
	s.router.Use(chimiddleware.Recoverer)

	catalog := service.NewCatalogService(s.db, s.config.Clock, s.metrics, s.logger)

	pageHandler, err := handler.NewPageHandler(catalog, web.Templates, s.logger)
	if err != nil {
		return fmt.Errorf("creating page handler: %w", err)
	}
	s.router.Get("/", pageHandler.HandleIndex)

	catalogHandler := handler.NewCatalogHandler(catalog, s.logger)
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/books", catalogHandler.HandleListBooks)
		r.Post("/books", catalogHandler.HandleCreateBook)
		r.Get("/books/{id}", catalogHandler.HandleGetBook)
		r.Delete("/books/{id}", catalogHandler.HandleDeleteBook)
		r.Post("/books/{id}/loans", catalogHandler.HandleRegisterLoan)
		r.Post("/books/{id}/return", catalogHandler.HandleMarkReturned)
		r.Get("/loans", catalogHandler.HandleListLoans)
		r.Get("/choices", catalogHandler.HandleChoices)
	})

	exportHandler := handler.NewExportHandler(catalog, s.logger)
	s.router.Route("/export", func(r chi.Router) {
		r.Get("/books.csv", exportHandler.HandleBooks(handler.FormatCSV))
		r.Get("/books.pdf", exportHandler.HandleBooks(handler.FormatPDF))
		r.Get("/loans.csv", exportHandler.HandleLoans(handler.FormatCSV))
		r.Get("/loans.pdf", exportHandler.HandleLoans(handler.FormatPDF))
	})

	s.router.Handle("/metrics", s.metrics.Handler())

	return nil
}

// Handler exposes the router, for tests and for embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database.
func (s *Server) Close() error {
	return s.db.Close()
}

// Start listens on cfg.Addr and blocks until SIGINT/SIGTERM or a server
// error. On a signal it stops accepting connections, waits up to
// ShutdownTimeout for in-flight requests, then closes the database.
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		s.db.Close()
		return fmt.Errorf("listening on %s: %w", s.config.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the server on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer s.db.Close()

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.String("url", "http://"+ln.Addr().String()),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.Serve(ln)
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		timeout := s.config.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
