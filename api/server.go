/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/treasury, /api/budgets/*, /api/archive   Ledgers
  /api/transactions/*, /api/canbuy              Money movements
  /api/taxes/*, /api/loan-repayment, /api/controls/*   Policy
  /api/tick, /api/reset, /api/saves/*           Simulation
  /api/scenarios/*                              Demo scenarios

SECURITY NOTE:
  No authentication middleware. All endpoints are public; run behind a
  trusted proxy.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/treasury", h.GetTreasury)
		r.Get("/archive", h.ListArchive)
		r.Get("/canbuy", h.CanBuy)

		r.Route("/budgets", func(r chi.Router) {
			r.Get("/", h.ListBudgets)
			r.Get("/{rel}", h.GetBudget)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Post("/", h.CreateTransaction)
			r.Post("/force", h.ForceTransaction)
		})

		r.Route("/taxes", func(r chi.Router) {
			r.Get("/", h.ListTaxes)
			r.Post("/unlock", h.UnlockTaxes)
			r.Get("/{line}", h.GetTax)
			r.Put("/{line}", h.SetTaxRate)
			r.Post("/{line}/enable", h.EnableTax)
			r.Post("/{line}/disable", h.DisableTax)
			r.Post("/{line}/lock", h.LockTax)
		})

		r.Get("/loan-repayment", h.GetLoanRepayment)
		r.Put("/loan-repayment", h.SetLoanRepayment)

		r.Route("/controls", func(r chi.Router) {
			r.Get("/{line}", h.GetControl)
			r.Put("/{line}", h.SetControl)
		})

		r.Post("/tick", h.TickSimulation)
		r.Post("/reset", h.ResetTreasury)

		r.Route("/saves", func(r chi.Router) {
			r.Get("/", h.ListSaves)
			r.Post("/", h.CreateSave)
			r.Post("/{id}/load", h.LoadSave)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
