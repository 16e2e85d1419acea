// Package server exposes the HTTP API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/Marcos415/cotacoesview/internal/di"
)

// Server is the HTTP API server.
type Server struct {
	container *di.Container
	router    chi.Router
	http      *http.Server
	log       zerolog.Logger
}

// New creates the server and mounts all routes.
func New(container *di.Container) *Server {
	s := &Server{
		container: container,
		log:       container.Log.With().Str("service", "server").Logger(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		// The stream endpoint holds its connection open, so the
		// request timeout applies to everything else.
		r.Get("/portfolio/stream", s.handlePortfolioStream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))

			r.Get("/health", s.handleHealth)
			r.Get("/system", s.handleSystem)

			r.Get("/portfolio", s.handlePortfolio)
			r.Get("/portfolio/history", s.handlePortfolioHistory)
			r.Get("/portfolio/positions/{symbol}", s.handlePosition)

			r.Route("/transactions", func(r chi.Router) {
				r.Get("/", s.handleListTransactions)
				r.Post("/", s.handleCreateTransaction)
				r.Get("/{id}", s.handleGetTransaction)
				r.Put("/{id}", s.handleUpdateTransaction)
				r.Delete("/{id}", s.handleDeleteTransaction)
			})

			r.Get("/symbols", s.handleSymbols)
			r.Get("/quotes/{symbol}", s.handleQuote)
			r.Get("/history/{symbol}", s.handleHistory)
			r.Get("/predictions/{symbol}", s.handlePrediction)
			r.Get("/charts/{symbol}", s.handleChart)
			r.Get("/news", s.handleNews)
		})
	})

	s.router = r
	s.http = &http.Server{
		Addr:        fmt.Sprintf(":%d", container.Config.Port),
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// No write timeout: the stream endpoint keeps its
		// connection open indefinitely
		IdleTimeout: 120 * time.Second,
	}

	return s
}

// Router returns the mounted router, used by tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start begins serving requests. Blocks until the listener stops.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("HTTP server listening")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
