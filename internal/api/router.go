/**
 * @description
 * This file sets up the HTTP router for the ledger-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lumenbank/ledger-service/internal/app"
)

// Routes creates and returns the router for the ledger service.
func Routes(h *LedgerHandlers, auth *app.Authenticator) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Unauthenticated identity endpoints.
	r.Post("/auth/signup", h.SignupHandler)
	r.Post("/auth/login", h.LoginHandler)

	// Group routes that require an authenticated principal.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(auth))

		r.Get("/me", h.MeHandler)
		r.Get("/accounts", h.ListAccountsHandler)
		r.Post("/accounts", h.CreateAccountHandler)
		r.Get("/accounts/defaults", h.DefaultAccountsHandler)
		r.Put("/accounts/{accountNumber}/default", h.SetDefaultAccountHandler)

		r.Post("/transfers", h.SubmitTransferHandler)
	})

	return r
}
