// Package http serves the liveness endpoint. It is deliberately
// independent of all bot state: the process answering at all is the
// health signal.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-guild-bot/internal/config"
	"github.com/go-guild-bot/internal/transport/http/handler"
	appmiddleware "github.com/go-guild-bot/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds the liveness router.
func NewRouter(cfg *config.Config) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// 5 requests/second, burst of 10 — external pingers poll, humans don't.
	rl := appmiddleware.NewRateLimiter(rate.Limit(5), 10)
	r.Use(rl.Limit)

	healthH := handler.NewHealthHandler()

	r.Get("/", healthH.Alive)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/health-check/{action}", healthH.Ping)
		r.Post("/health-check/{action}", healthH.Ping)
	})

	return r
}
