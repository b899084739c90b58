/**
 * @description
 * This file sets up the HTTP router for the settlement-service. It defines
 * the API endpoints, associates them with their corresponding handlers, and
 * applies any necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SettlementRoutes creates and returns a new router for the settlement service.
func SettlementRoutes(h *SettlementHandlers) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(h.auth))

		r.Post("/users", h.InitializeUserHandler)
		r.Get("/users/me", h.GetOwnProfileHandler)
		r.Patch("/users/kyc", h.UpdateKycStatusHandler)

		r.Post("/transfers", h.InitiateTransferHandler)
		r.Get("/transfers/{address}", h.GetTransferHandler)
		r.Post("/transfers/{address}/confirm", h.ConfirmTransferHandler)
		r.Post("/transfers/{address}/cancel", h.CancelTransferHandler)

		r.Post("/providers", h.RegisterProviderHandler)
		r.Get("/providers/{address}", h.GetProviderHandler)
		r.Patch("/providers/availability", h.UpdateProviderAvailabilityHandler)

		r.Post("/withdrawals", h.RequestWithdrawalHandler)
		r.Get("/withdrawals/{address}", h.GetWithdrawalHandler)
		r.Post("/withdrawals/{address}/provider", h.SelectProviderHandler)
		r.Post("/withdrawals/{address}/finalize", h.FinalizeWithdrawalHandler)
		r.Post("/withdrawals/{address}/cancel", h.CancelWithdrawalHandler)
	})

	return r
}
